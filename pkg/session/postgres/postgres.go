// Package postgres provides a PostgreSQL session.Backend. It uses pgx/v5
// for connection pooling and stores each transcript as a JSONB document
// keyed by user.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/kontrakt/pkg/session"
)

// Backend is a PostgreSQL-backed session.Backend.
type Backend struct {
	pool *pgxpool.Pool
}

var _ session.Backend = (*Backend)(nil)

// New creates a PostgreSQL backend with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	b := &Backend{pool: pool}

	if cfg.MigrateOnStart {
		if err := b.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return b, nil
}

// Pool exposes the connection pool so other components (the contract
// lookup) can share it.
func (b *Backend) Pool() *pgxpool.Pool { return b.pool }

func (b *Backend) Name() string { return "postgres" }

func (b *Backend) Get(ctx context.Context, userID string) (*session.Row, error) {
	row := session.Row{UserID: userID}
	err := b.pool.QueryRow(ctx,
		"SELECT messages, updated_at FROM chat_sessions WHERE user_id = $1",
		userID,
	).Scan(&row.Data, &row.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &row, nil
}

func (b *Backend) Upsert(ctx context.Context, row session.Row) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO chat_sessions (user_id, messages, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET messages = EXCLUDED.messages, updated_at = EXCLUDED.updated_at
	`, row.UserID, string(row.Data), row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, userID string) error {
	if _, err := b.pool.Exec(ctx, "DELETE FROM chat_sessions WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (b *Backend) DeleteIfUnchanged(ctx context.Context, userID string, updatedAt time.Time) (bool, error) {
	result, err := b.pool.Exec(ctx,
		"DELETE FROM chat_sessions WHERE user_id = $1 AND updated_at = $2",
		userID, updatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("deleting expired session: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// HealthCheck verifies the database connection.
func (b *Backend) HealthCheck(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}
