// Package redis provides a Redis session.Backend for multi-node
// deployments. Each session is a hash holding the encoded transcript and
// its last-activity timestamp.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/kontrakt/pkg/session"
)

const (
	defaultPrefix = "kontrakt:session:"
	fieldData     = "data"
	fieldUpdated  = "updated_at"
)

// deleteIfUnchanged removes the key only if its timestamp field still
// matches ARGV[1].
var deleteIfUnchanged = goredis.NewScript(`
if redis.call("HGET", KEYS[1], "updated_at") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Config holds Redis connection configuration.
type Config struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// Prefix is the key prefix for all session keys (default: "kontrakt:session:").
	Prefix string
	// Retention lets Redis drop abandoned sessions on its own. It should be
	// longer than the session TTL; zero keeps keys until they are deleted.
	Retention time.Duration
	// PoolSize is the connection pool size (default: 10).
	PoolSize int
}

// Backend implements session.Backend using Redis.
type Backend struct {
	client    *goredis.Client
	prefix    string
	retention time.Duration
	mu        sync.RWMutex
	closed    bool
}

var _ session.Backend = (*Backend)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewFromClient(client, cfg.Prefix, cfg.Retention), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *goredis.Client, prefix string, retention time.Duration) *Backend {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Backend{client: client, prefix: prefix, retention: retention}
}

func (b *Backend) key(userID string) string {
	return b.prefix + userID
}

func (b *Backend) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return session.ErrClosed
	}
	return nil
}

func (b *Backend) Name() string { return "redis" }

func (b *Backend) Get(ctx context.Context, userID string) (*session.Row, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	fields, err := b.client.HGetAll(ctx, b.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if len(fields) == 0 {
		return nil, session.ErrNotFound
	}

	nanos, err := strconv.ParseInt(fields[fieldUpdated], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", fieldUpdated, err)
	}

	return &session.Row{
		UserID:    userID,
		Data:      []byte(fields[fieldData]),
		UpdatedAt: time.Unix(0, nanos),
	}, nil
}

func (b *Backend) Upsert(ctx context.Context, row session.Row) error {
	if err := b.checkOpen(); err != nil {
		return err
	}

	key := b.key(row.UserID)
	_, err := b.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldData, string(row.Data),
			fieldUpdated, strconv.FormatInt(row.UpdatedAt.UnixNano(), 10),
		)
		if b.retention > 0 {
			pipe.Expire(ctx, key, b.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, userID string) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	if err := b.client.Del(ctx, b.key(userID)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (b *Backend) DeleteIfUnchanged(ctx context.Context, userID string, updatedAt time.Time) (bool, error) {
	if err := b.checkOpen(); err != nil {
		return false, err
	}
	n, err := deleteIfUnchanged.Run(ctx, b.client,
		[]string{b.key(userID)},
		strconv.FormatInt(updatedAt.UnixNano(), 10),
	).Int()
	if err != nil {
		return false, fmt.Errorf("deleting expired session: %w", err)
	}
	return n > 0, nil
}

func (b *Backend) HealthCheck(ctx context.Context) error {
	if err := b.checkOpen(); err != nil {
		return err
	}
	return b.client.Ping(ctx).Err()
}

// Close closes the underlying client. Further calls return session.ErrClosed.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.client.Close()
}
