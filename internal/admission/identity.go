package admission

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the rate-limit identity of a request. Resolution order:
// first X-Forwarded-For entry, then X-Real-IP, then the socket address.
// It never fails: malformed or absent data degrades to "unknown", which is
// one shared bucket for all unidentifiable clients.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return first
		}
	}

	if rip := strings.TrimSpace(r.Header.Get("X-Real-IP")); rip != "" {
		return rip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	// Some listeners hand over a bare address with no port.
	if net.ParseIP(r.RemoteAddr) != nil {
		return r.RemoteAddr
	}
	return "unknown"
}
