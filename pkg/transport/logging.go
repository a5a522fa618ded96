package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/kontrakt/pkg/api"
)

// Logging logs one entry per turn with the request ID, user, outcome and
// duration. Message text is never logged.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next TurnHandler) TurnHandler {
		return TurnHandlerFunc(func(ctx context.Context, userID string, req *api.TurnRequest) (*api.TurnResponse, error) {
			start := time.Now()
			resp, err := next.HandleTurn(ctx, userID, req)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("user", userID),
				slog.Int("message_bytes", len(req.Message)),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "turn failed", attrs...)
				return resp, err
			}
			attrs = append(attrs,
				slog.String("turn", resp.ID),
				slog.String("state", resp.State),
				slog.Bool("degraded", resp.Degraded),
			)
			logger.LogAttrs(ctx, slog.LevelInfo, "turn completed", attrs...)
			return resp, nil
		})
	}
}
