package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jwhit732/vto-mvp/internal/http/handlers"
	httpapi "github.com/jwhit732/vto-mvp/internal/http/httpapi"
	"github.com/jwhit732/vto-mvp/internal/infra"
	"github.com/jwhit732/vto-mvp/internal/infra/geoip"
	"github.com/jwhit732/vto-mvp/internal/middleware"
	"github.com/jwhit732/vto-mvp/internal/providers/genai"
	"github.com/jwhit732/vto-mvp/internal/ratelimit"
)

func main() {
	// .env is optional.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY is not set; try-on requests will fail until it is configured")
	}

	// Country tagging in the access log is optional.
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable, continuing without country tagging")
	}
	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
		if closer, ok := resolver.(*geoip.Resolver); ok {
			defer closer.Close()
		}
	}

	client := genai.NewClient(genai.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: nil,
		Logger:     &logger,
	})

	limiter := ratelimit.New(ratelimit.Config{
		SoftLimit:   cfg.RateSoftLimit,
		HardLimit:   cfg.RateHardLimit,
		GlobalLimit: cfg.RateGlobalLimit,
		DelayWindow: cfg.RateDelayWindow,
	})

	app := handlers.NewApp(cfg, logger, limiter, client)
	router := httpapi.NewRouter(app, logger, lookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("model", client.Model()).Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
