package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwhit732/vto-mvp/internal/ratelimit"
)

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// CountryLookup resolves ISO country codes for an IP address. A nil lookup
// disables country tagging.
type CountryLookup func(ip string) (string, error)

// Logger emits one structured access-log line per request, tagged with the
// resolved client identity and, when a lookup is wired, its country.
func Logger(l zerolog.Logger, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			ip := ratelimit.ClientIdentity(r)
			event := l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.status).
				Dur("duration", time.Since(start)).
				Str("ip", ip).
				Str("request_id", RequestIDFromContext(r.Context()))
			if lookup != nil {
				if country, err := lookup(ip); err == nil && country != "" {
					event = event.Str("country", country)
				}
			}
			event.Msg("request")
		})
	}
}
