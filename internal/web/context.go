package web

import (
	"context"
	"net"
	"net/http"

	"github.com/JonMunkholm/mediadata/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to context for analysis logs.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithClientIP(ctx, clientIP(r))
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return ctx
}

// clientIP returns RemoteAddr without its port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
