package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/recordqa/internal/core"
)

// withRequester adds the client IP and User-Agent to the request context
// so job logs can say who started them.
func withRequester(r *http.Request) context.Context {
	return core.ContextWithRequester(r.Context(), clientIP(r), r.UserAgent())
}

// clientIP returns RemoteAddr without its port. TrustedRealIP has already
// replaced it with the forwarded address when the proxy is trusted.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
