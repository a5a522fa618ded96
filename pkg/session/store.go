package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/kontrakt/pkg/debug"
	"github.com/rhuss/kontrakt/pkg/observability"
	"github.com/rhuss/kontrakt/pkg/transcript"
)

// DefaultTTL is how long a session survives without activity.
const DefaultTTL = 10 * time.Minute

// Store loads and saves transcripts through a Backend.
type Store struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the inactivity window. Non-positive values keep DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for expiry and cleanup messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore returns a Store backed by b.
func NewStore(b Backend, opts ...Option) *Store {
	s := &Store{
		backend: b,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured inactivity window.
func (s *Store) TTL() time.Duration { return s.ttl }

// Backend returns the name of the underlying backend.
func (s *Store) Backend() string { return s.backend.Name() }

// Load returns the session for userID. It returns ErrNotFound when no row
// exists and ErrExpired when the row was stale; in the latter case the row
// has been deleted. Backend failures and undecodable rows are *StoreError.
func (s *Store) Load(ctx context.Context, userID string) (*transcript.Session, error) {
	start := time.Now()
	row, err := s.backend.Get(ctx, userID)
	s.observe("load", start, err)

	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.storeErr("load", userID, err)
	}

	now := s.now()
	if now.Sub(row.UpdatedAt) >= s.ttl {
		s.expire(ctx, row, now)
		return nil, ErrExpired
	}

	var msgs []transcript.Message
	if err := json.Unmarshal(row.Data, &msgs); err != nil {
		return nil, s.storeErr("load", userID, fmt.Errorf("decoding transcript: %w", err))
	}

	debug.Log("session", "loaded", "user", userID, "messages", len(msgs), "age", now.Sub(row.UpdatedAt))

	return &transcript.Session{
		UserID:        userID,
		Messages:      msgs,
		LastUpdatedAt: row.UpdatedAt,
	}, nil
}

// Save replaces the transcript of userID and stamps it with the current
// time.
func (s *Store) Save(ctx context.Context, userID string, msgs []transcript.Message) error {
	if msgs == nil {
		msgs = []transcript.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return s.storeErr("save", userID, fmt.Errorf("encoding transcript: %w", err))
	}

	start := time.Now()
	err = s.backend.Upsert(ctx, Row{UserID: userID, Data: data, UpdatedAt: s.now()})
	s.observe("save", start, err)
	if err != nil {
		return s.storeErr("save", userID, err)
	}

	debug.Log("session", "saved", "user", userID, "messages", len(msgs), "bytes", len(data))
	return nil
}

// Clear deletes the session of userID. Clearing an absent session succeeds.
func (s *Store) Clear(ctx context.Context, userID string) error {
	start := time.Now()
	err := s.backend.Delete(ctx, userID)
	s.observe("clear", start, err)
	if err != nil {
		return s.storeErr("clear", userID, err)
	}
	return nil
}

// HealthCheck delegates to the backend.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.backend.HealthCheck(ctx)
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// expire removes a stale row. Failures are logged only: the caller is told
// the session is gone either way, and the next load retries the delete.
func (s *Store) expire(ctx context.Context, row *Row, now time.Time) {
	start := time.Now()
	removed, err := s.backend.DeleteIfUnchanged(ctx, row.UserID, row.UpdatedAt)
	s.observe("expire", start, err)
	if err != nil {
		s.logger.Warn("failed to delete expired session",
			"user", row.UserID, "backend", s.backend.Name(), "error", err)
		return
	}
	if removed {
		observability.SessionsExpiredTotal.WithLabelValues(s.backend.Name()).Inc()
	}
	s.logger.Debug("session expired",
		"user", row.UserID, "idle", now.Sub(row.UpdatedAt), "ttl", s.ttl, "removed", removed)
}

func (s *Store) storeErr(op, userID string, err error) *StoreError {
	return &StoreError{Op: op, Backend: s.backend.Name(), UserID: userID, Err: err}
}

func (s *Store) observe(op string, start time.Time, err error) {
	status := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	name := s.backend.Name()
	observability.SessionStoreOpsTotal.WithLabelValues(name, op, status).Inc()
	observability.SessionStoreLatency.WithLabelValues(name, op).Observe(time.Since(start).Seconds())
}
