package ratelimit

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientIdentity(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{
			name:       "forwarded single ip",
			forwarded:  "203.0.113.1",
			remoteAddr: "198.51.100.10:1234",
			want:       "203.0.113.1",
		},
		{
			name:       "forwarded multiple ips use first",
			forwarded:  " 203.0.113.1 , 198.51.100.2 ",
			remoteAddr: "198.51.100.10:1234",
			want:       "203.0.113.1",
		},
		{
			name:       "invalid forwarded falls back to real ip",
			forwarded:  "invalid",
			realIP:     "203.0.113.7",
			remoteAddr: "198.51.100.10:1234",
			want:       "203.0.113.7",
		},
		{
			name:       "real ip without forwarded",
			realIP:     "203.0.113.7",
			remoteAddr: "198.51.100.10:1234",
			want:       "203.0.113.7",
		},
		{
			name:       "remote host fallback",
			remoteAddr: "198.51.100.10:1234",
			want:       "198.51.100.10",
		},
		{
			name:       "mapped ipv4 prefix stripped",
			forwarded:  "::ffff:203.0.113.1",
			remoteAddr: "198.51.100.10:1234",
			want:       "203.0.113.1",
		},
		{
			name:       "ipv6 forwarded",
			forwarded:  "2001:db8::1",
			remoteAddr: net.JoinHostPort("2001:db8::2", "443"),
			want:       "2001:db8::1",
		},
		{
			name:       "ipv6 remote fallback",
			remoteAddr: net.JoinHostPort("2001:db8::2", "443"),
			want:       "2001:db8::2",
		},
		{
			name:       "remote without port",
			remoteAddr: "203.0.113.1",
			want:       "203.0.113.1",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := ClientIdentity(req); got != tc.want {
				t.Fatalf("ClientIdentity() = %q, want %q", got, tc.want)
			}
		})
	}
}
