package contracts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS contracts (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    counterparty  TEXT NOT NULL DEFAULT '',
    contract_type TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT '',
    start_date    DATE,
    end_date      DATE,
    summary       TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_contracts_name ON contracts (lower(name));
`

const dateLayout = "2006-01-02"

// PostgresLookup reads contracts from the application's contracts table.
type PostgresLookup struct {
	pool *pgxpool.Pool
}

var _ Lookup = (*PostgresLookup)(nil)

// NewPostgresLookup wraps an existing pool.
func NewPostgresLookup(pool *pgxpool.Pool) *PostgresLookup {
	return &PostgresLookup{pool: pool}
}

// EnsureSchema creates the contracts table when it does not exist.
func (l *PostgresLookup) EnsureSchema(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("creating contracts schema: %w", err)
	}
	return nil
}

// Put inserts or replaces a contract.
func (l *PostgresLookup) Put(ctx context.Context, c Contract) error {
	start, err := parseDate(c.StartDate)
	if err != nil {
		return fmt.Errorf("contract %q start date: %w", c.Name, err)
	}
	end, err := parseDate(c.EndDate)
	if err != nil {
		return fmt.Errorf("contract %q end date: %w", c.Name, err)
	}

	_, err = l.pool.Exec(ctx, `
		INSERT INTO contracts (id, name, counterparty, contract_type, status, start_date, end_date, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			counterparty = EXCLUDED.counterparty,
			contract_type = EXCLUDED.contract_type,
			status = EXCLUDED.status,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			summary = EXCLUDED.summary`,
		c.ID, c.Name, c.Counterparty, c.Type, c.Status, start, end, c.Summary,
	)
	if err != nil {
		return fmt.Errorf("storing contract %q: %w", c.Name, err)
	}
	return nil
}

// FindByName implements Lookup.
func (l *PostgresLookup) FindByName(ctx context.Context, name string) (*Contract, error) {
	var (
		c          Contract
		start, end *time.Time
	)
	err := l.pool.QueryRow(ctx, `
		SELECT id, name, counterparty, contract_type, status, start_date, end_date, summary
		FROM contracts
		WHERE lower(name) = $1`,
		normalizeName(name),
	).Scan(&c.ID, &c.Name, &c.Counterparty, &c.Type, &c.Status, &start, &end, &c.Summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying contract %q: %w", name, err)
	}
	if start != nil {
		c.StartDate = start.Format(dateLayout)
	}
	if end != nil {
		c.EndDate = end.Format(dateLayout)
	}
	return &c, nil
}

// Close releases the pool.
func (l *PostgresLookup) Close() {
	l.pool.Close()
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
