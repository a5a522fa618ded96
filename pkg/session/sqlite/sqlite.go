// Package sqlite provides a SQLite session.Backend for single-node
// deployments that still want sessions to survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rhuss/kontrakt/pkg/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	user_id    TEXT PRIMARY KEY,
	messages   TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated_at ON chat_sessions(updated_at);
`

// Backend is a SQLite-backed session.Backend. Timestamps are stored as
// Unix nanoseconds.
type Backend struct {
	db *sql.DB
}

var _ session.Backend = (*Backend)(nil)

// New opens (and if needed creates) the database at path. ":memory:" gives
// a private in-memory database.
func New(ctx context.Context, path string) (*Backend, error) {
	if path == "" {
		path = "./data/kontrakt.db"
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// from being split across connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Backend{db: db}, nil
}

func (b *Backend) Name() string { return "sqlite" }

func (b *Backend) Get(ctx context.Context, userID string) (*session.Row, error) {
	var data string
	var nanos int64
	err := b.db.QueryRowContext(ctx,
		"SELECT messages, updated_at FROM chat_sessions WHERE user_id = ?",
		userID,
	).Scan(&data, &nanos)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &session.Row{UserID: userID, Data: []byte(data), UpdatedAt: time.Unix(0, nanos)}, nil
}

func (b *Backend) Upsert(ctx context.Context, row session.Row) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (user_id, messages, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET messages = excluded.messages, updated_at = excluded.updated_at
	`, row.UserID, string(row.Data), row.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, userID string) error {
	if _, err := b.db.ExecContext(ctx, "DELETE FROM chat_sessions WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (b *Backend) DeleteIfUnchanged(ctx context.Context, userID string, updatedAt time.Time) (bool, error) {
	res, err := b.db.ExecContext(ctx,
		"DELETE FROM chat_sessions WHERE user_id = ? AND updated_at = ?",
		userID, updatedAt.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("deleting expired session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting expired session: %w", err)
	}
	return n > 0, nil
}

func (b *Backend) HealthCheck(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *Backend) Close() error {
	return b.db.Close()
}
