package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins []string
	GeoIPDBPath    string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// UpstreamTimeout bounds a single provider call. Kept under typical
	// gateway limits so the caller sees our error, not the gateway's.
	UpstreamTimeout time.Duration

	RateSoftLimit   int
	RateHardLimit   int
	RateGlobalLimit int
	RateDelayWindow time.Duration
	// ChargeOnFailure controls whether quota is consumed before dispatching
	// the provider call (a failed generation still counts) or only after a
	// successful one.
	ChargeOnFailure bool
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. A missing GEMINI_API_KEY is deliberately not a
// startup error; the provider client reports it per call instead.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash-image-preview"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		UpstreamTimeout:  time.Second * time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 55)),
		RateSoftLimit:    getEnvInt("RATE_LIMIT_SOFT_PER_DAY", 30),
		RateHardLimit:    getEnvInt("RATE_LIMIT_HARD_PER_DAY", 40),
		RateGlobalLimit:  getEnvInt("RATE_LIMIT_GLOBAL_PER_DAY", 400),
		RateDelayWindow:  time.Second * time.Duration(getEnvInt("RATE_LIMIT_DELAY_SECONDS", 60)),
		ChargeOnFailure:  getEnvBool("RATE_LIMIT_CHARGE_ON_FAILURE", true),
	}

	if cfg.RateSoftLimit > cfg.RateHardLimit {
		return nil, fmt.Errorf("RATE_LIMIT_SOFT_PER_DAY (%d) must not exceed RATE_LIMIT_HARD_PER_DAY (%d)", cfg.RateSoftLimit, cfg.RateHardLimit)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
