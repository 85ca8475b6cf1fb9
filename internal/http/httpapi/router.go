package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/jwhit732/vto-mvp/internal/http/handlers"
	"github.com/jwhit732/vto-mvp/internal/infra"
	"github.com/jwhit732/vto-mvp/internal/middleware"
)

func NewRouter(app *handlers.App, logger infra.Logger, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(logger, lookup),
		middleware.CORS(app.Config.AllowedOrigins),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/limits", app.Limits)
	r.Post("/v1/tryon", app.TryOn)

	return r
}
