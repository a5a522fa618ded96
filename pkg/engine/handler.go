package engine

import (
	"context"
	"errors"

	"github.com/rhuss/kontrakt/pkg/api"
	"github.com/rhuss/kontrakt/pkg/session"
	"github.com/rhuss/kontrakt/pkg/transport"
)

var (
	_ transport.TurnHandler    = (*Engine)(nil)
	_ transport.HistoryHandler = (*Engine)(nil)
)

// HandleTurn implements transport.TurnHandler.
func (e *Engine) HandleTurn(ctx context.Context, userID string, req *api.TurnRequest) (*api.TurnResponse, error) {
	res, err := e.ProcessTurn(ctx, userID, req.Message)
	if errors.Is(err, ErrInvalidUser) {
		return nil, api.NewUnauthorizedError("no user identity")
	}
	if err != nil {
		return nil, err
	}

	resp := &api.TurnResponse{
		ID:       res.TurnID,
		Object:   "assistant.turn",
		Answer:   res.Answer,
		State:    string(res.State),
		Splice:   string(res.Splice),
		Appended: res.Appended,
		Degraded: res.Degraded,
	}
	for _, err := range res.Errors {
		resp.Warnings = append(resp.Warnings, warning(err))
	}
	return resp, nil
}

// GetHistory implements transport.HistoryHandler.
func (e *Engine) GetHistory(ctx context.Context, userID string) (*api.HistoryResponse, error) {
	sess, err := e.History(ctx, userID)
	if errors.Is(err, ErrInvalidUser) {
		return nil, api.NewUnauthorizedError("no user identity")
	}
	if err != nil {
		return nil, storeAPIError(err)
	}

	resp := &api.HistoryResponse{
		Object:   "assistant.history",
		UserID:   userID,
		Messages: sess.Messages,
	}
	if !sess.LastUpdatedAt.IsZero() {
		updated := sess.LastUpdatedAt
		resp.LastUpdatedAt = &updated
		if exp := e.ExpiresAt(sess); !exp.IsZero() {
			resp.ExpiresAt = &exp
		}
	}
	return resp, nil
}

// ClearHistory implements transport.HistoryHandler.
func (e *Engine) ClearHistory(ctx context.Context, userID string) error {
	err := e.Reset(ctx, userID)
	if errors.Is(err, ErrInvalidUser) {
		return api.NewUnauthorizedError("no user identity")
	}
	if err != nil && ctx.Err() == nil {
		return storeAPIError(err)
	}
	return err
}

func storeAPIError(err error) error {
	var se *session.StoreError
	if errors.As(err, &se) {
		return api.NewUnavailableError("session store unavailable")
	}
	return err
}

// warning is the client-facing description of a turn error. Store and
// model details stay in the server log.
func warning(err error) string {
	var (
		se *session.StoreError
		me *ModelError
	)
	switch {
	case errors.As(err, &se):
		return "session_" + se.Op + "_failed"
	case errors.As(err, &me):
		return "model_unavailable"
	default:
		return "transcript_invalid"
	}
}
