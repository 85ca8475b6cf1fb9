package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jwhit732/vto-mvp/internal/infra"
	"github.com/jwhit732/vto-mvp/internal/providers/genai"
	"github.com/jwhit732/vto-mvp/internal/ratelimit"
)

// Generator is the provider contract the try-on handler depends on.
type Generator interface {
	TryOn(ctx context.Context, person, garment genai.ImagePart, instruction string) (string, error)
}

// App carries the handler dependencies.
type App struct {
	Config    *infra.Config
	Logger    infra.Logger
	Limiter   *ratelimit.Limiter
	Generator Generator
}

func NewApp(cfg *infra.Config, logger infra.Logger, limiter *ratelimit.Limiter, gen Generator) *App {
	return &App{Config: cfg, Logger: logger, Limiter: limiter, Generator: gen}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the stable external error shape. RetryAfter and Type are
// populated for rate-limit responses only.
type errorResponse struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter,omitempty"`
	Type       string `json:"type,omitempty"`
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, errorResponse{Error: message})
}
