package session

import (
	"context"
	"time"
)

// Row is the persisted form of a session.
type Row struct {
	UserID    string
	Data      []byte
	UpdatedAt time.Time
}

// Backend is the key-value persistence a Store is built on. Implementations
// must be safe for concurrent use.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Get returns the row for userID, or ErrNotFound.
	Get(ctx context.Context, userID string) (*Row, error)

	// Upsert inserts or replaces the row for row.UserID.
	Upsert(ctx context.Context, row Row) error

	// Delete removes the row for userID. Deleting an absent row is not an
	// error.
	Delete(ctx context.Context, userID string) error

	// DeleteIfUnchanged removes the row only if its timestamp still equals
	// updatedAt, so a concurrent writer's fresh row survives expiry. It
	// reports whether a row was removed.
	DeleteIfUnchanged(ctx context.Context, userID string, updatedAt time.Time) (bool, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error
}
