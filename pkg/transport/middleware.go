package transport

import "context"

// Middleware wraps a TurnHandler. Chain(a, b, c) produces a(b(c(h))): the
// first middleware runs first on the way in.
type Middleware func(TurnHandler) TurnHandler

// Chain composes middleware into one.
func Chain(middlewares ...Middleware) Middleware {
	return func(next TurnHandler) TurnHandler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

// RequestIDFromContext returns the request ID in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID returns ctx carrying id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
