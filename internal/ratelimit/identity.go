package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// ClientIdentity resolves the network identity used as the rate-limit key:
// the first valid X-Forwarded-For entry, then X-Real-IP, then the connection
// address. IPv6-mapped IPv4 addresses are reduced to their IPv4 form so the
// same client never keys two records.
func ClientIdentity(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if ip == "" {
				continue
			}
			if net.ParseIP(ip) != nil {
				return stripMappedPrefix(ip)
			}
		}
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		if net.ParseIP(ip) != nil {
			return stripMappedPrefix(ip)
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if net.ParseIP(host) != nil {
			return stripMappedPrefix(host)
		}
	} else if net.ParseIP(r.RemoteAddr) != nil {
		return stripMappedPrefix(r.RemoteAddr)
	}

	return r.RemoteAddr
}

func stripMappedPrefix(ip string) string {
	return strings.TrimPrefix(ip, "::ffff:")
}
