package transport

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/rhuss/kontrakt/pkg/api"
)

// Recovery turns a panic in the handler into a server error. The panic
// value is logged, never returned to the client.
func Recovery() Middleware {
	return func(next TurnHandler) TurnHandler {
		return TurnHandlerFunc(func(ctx context.Context, userID string, req *api.TurnRequest) (resp *api.TurnResponse, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("turn handler panicked",
						"panic", r,
						"request_id", RequestIDFromContext(ctx),
						"stack", string(debug.Stack()),
					)
					resp = nil
					retErr = api.NewServerError("internal server error")
				}
			}()
			return next.HandleTurn(ctx, userID, req)
		})
	}
}
