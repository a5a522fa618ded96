package transport

import (
	"context"

	"github.com/rhuss/kontrakt/pkg/api"
)

// RequestID makes sure the context carries a request ID, keeping one set
// by the HTTP adapter from X-Request-ID.
func RequestID() Middleware {
	return func(next TurnHandler) TurnHandler {
		return TurnHandlerFunc(func(ctx context.Context, userID string, req *api.TurnRequest) (*api.TurnResponse, error) {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, api.NewRequestID())
			}
			return next.HandleTurn(ctx, userID, req)
		})
	}
}
