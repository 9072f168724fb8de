package core

import "context"

type contextKey string

const (
	ctxKeyClientIP  contextKey = "client_ip"
	ctxKeyUserAgent contextKey = "user_agent"
)

// ContextWithClientIP records the caller's IP for analysis logs.
func ContextWithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyClientIP, ip)
}

// ContextWithUserAgent records the caller's User-Agent for analysis logs.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// ClientIPFromContext returns the IP stored by ContextWithClientIP.
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyClientIP).(string); ok {
		return v
	}
	return ""
}

// UserAgentFromContext returns the User-Agent stored by ContextWithUserAgent.
func UserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}

// requestAttrs returns log attributes for the caller, if known.
func requestAttrs(ctx context.Context) []any {
	var attrs []any
	if ip := ClientIPFromContext(ctx); ip != "" {
		attrs = append(attrs, "client_ip", ip)
	}
	if ua := UserAgentFromContext(ctx); ua != "" {
		attrs = append(attrs, "user_agent", ua)
	}
	return attrs
}
