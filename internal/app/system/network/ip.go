// Package network resolves the client address recorded on sessions and
// login attempts.
package network

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP extracts the originating client IP from the request.
//
// Proxy headers are consulted first: the leftmost X-Forwarded-For entry
// is the original client when the app runs behind a load balancer, then
// X-Real-IP. Without either the remote address is used with its port
// stripped. The result feeds the login-attempt ledger and session origin
// metadata; it is informational, never an authorization input.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if idx := strings.Index(xff, ","); idx != -1 {
			first = xff[:idx]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
