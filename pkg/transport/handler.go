package transport

import (
	"context"

	"github.com/rhuss/kontrakt/pkg/api"
)

// TurnHandler runs one conversational turn for userID.
type TurnHandler interface {
	HandleTurn(ctx context.Context, userID string, req *api.TurnRequest) (*api.TurnResponse, error)
}

// TurnHandlerFunc adapts a function to TurnHandler.
type TurnHandlerFunc func(ctx context.Context, userID string, req *api.TurnRequest) (*api.TurnResponse, error)

// HandleTurn calls f.
func (f TurnHandlerFunc) HandleTurn(ctx context.Context, userID string, req *api.TurnRequest) (*api.TurnResponse, error) {
	return f(ctx, userID, req)
}

// HistoryHandler exposes a user's transcript.
type HistoryHandler interface {
	GetHistory(ctx context.Context, userID string) (*api.HistoryResponse, error)
	ClearHistory(ctx context.Context, userID string) error
}

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f HealthCheckFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
