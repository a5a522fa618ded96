package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rhuss/kontrakt/pkg/render"
	"github.com/rhuss/kontrakt/pkg/session"
	"github.com/rhuss/kontrakt/pkg/transcript"
)

// History returns the current transcript of userID, applying the
// staleness rule. A user without a live session gets an empty session.
func (e *Engine) History(ctx context.Context, userID string) (*transcript.Session, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	sess, err := e.store.Load(ctx, userID)
	if errors.Is(err, session.ErrNotFound) {
		return &transcript.Session{UserID: userID, Messages: []transcript.Message{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Reset clears the transcript of userID. It waits for any running turn
// of the user to finish first.
func (e *Engine) Reset(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUser
	}
	release, err := e.locks.acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()

	if err := e.store.Clear(ctx, userID); err != nil {
		return err
	}
	e.logger.Info("session cleared", "user", userID)
	return nil
}

// RenderHistory renders the transcript of userID through the prompt
// template, the way the model sees it.
func (e *Engine) RenderHistory(ctx context.Context, userID string) (string, error) {
	sess, err := e.History(ctx, userID)
	if err != nil {
		return "", err
	}
	return e.prompt.String(render.PromptData{
		System:  e.cfg.SystemPrompt,
		History: render.ToRenderForm(sess.Messages),
	})
}

// ExpiresAt returns when sess goes stale, or the zero time when the store
// does not expose its TTL or the session was never saved.
func (e *Engine) ExpiresAt(sess *transcript.Session) time.Time {
	ttl, ok := e.store.(interface{ TTL() time.Duration })
	if !ok || sess == nil || sess.LastUpdatedAt.IsZero() {
		return time.Time{}
	}
	return sess.LastUpdatedAt.Add(ttl.TTL())
}
