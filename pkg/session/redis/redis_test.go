package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rhuss/kontrakt/pkg/session"
	"github.com/rhuss/kontrakt/pkg/transcript"
)

func setupMiniredis(t *testing.T, retention time.Duration) (*miniredis.Miniredis, *Backend) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	backend := NewFromClient(client, "test:", retention)

	t.Cleanup(func() {
		_ = backend.Close()
	})
	return mr, backend
}

func TestRedisBackend_UpsertAndGet(t *testing.T) {
	mr, backend := setupMiniredis(t, 0)
	ctx := context.Background()
	now := time.Now()

	if err := backend.Upsert(ctx, session.Row{UserID: "u1", Data: []byte("[]"), UpdatedAt: now}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	row, err := backend.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(row.Data) != "[]" {
		t.Errorf("Data = %s", row.Data)
	}
	if !row.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", row.UpdatedAt, now)
	}
	if !mr.Exists("test:u1") {
		t.Error("expected key test:u1 in redis")
	}
	if ttl := mr.TTL("test:u1"); ttl != 0 {
		t.Errorf("TTL = %v, want none", ttl)
	}
}

func TestRedisBackend_GetMissing(t *testing.T) {
	_, backend := setupMiniredis(t, 0)
	if _, err := backend.Get(context.Background(), "nobody"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisBackend_Retention(t *testing.T) {
	mr, backend := setupMiniredis(t, time.Hour)
	ctx := context.Background()

	backend.Upsert(ctx, session.Row{UserID: "u1", Data: []byte("[]"), UpdatedAt: time.Now()})
	if ttl := mr.TTL("test:u1"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := backend.Get(ctx, "u1"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected key dropped after retention, got %v", err)
	}
}

func TestRedisBackend_DeleteIfUnchanged(t *testing.T) {
	_, backend := setupMiniredis(t, 0)
	ctx := context.Background()
	now := time.Now()

	backend.Upsert(ctx, session.Row{UserID: "u1", Data: []byte("[]"), UpdatedAt: now})

	removed, err := backend.DeleteIfUnchanged(ctx, "u1", now.Add(-time.Second))
	if err != nil || removed {
		t.Fatalf("stale timestamp: removed=%v err=%v", removed, err)
	}
	removed, err = backend.DeleteIfUnchanged(ctx, "u1", now)
	if err != nil || !removed {
		t.Fatalf("matching timestamp: removed=%v err=%v", removed, err)
	}
	if _, err := backend.Get(ctx, "u1"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisBackend_Delete(t *testing.T) {
	_, backend := setupMiniredis(t, 0)
	ctx := context.Background()

	backend.Upsert(ctx, session.Row{UserID: "u1", Data: []byte("[]"), UpdatedAt: time.Now()})
	if err := backend.Delete(ctx, "u1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := backend.Delete(ctx, "u1"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
}

func TestRedisBackend_Closed(t *testing.T) {
	_, backend := setupMiniredis(t, 0)
	backend.Close()

	if _, err := backend.Get(context.Background(), "u1"); !errors.Is(err, session.ErrClosed) {
		t.Errorf("Get after close = %v, want ErrClosed", err)
	}
	if err := backend.HealthCheck(context.Background()); !errors.Is(err, session.ErrClosed) {
		t.Errorf("HealthCheck after close = %v, want ErrClosed", err)
	}
}

func TestRedisBackend_ServerDown(t *testing.T) {
	mr, backend := setupMiniredis(t, 0)
	mr.Close()

	store := session.NewStore(backend)
	_, err := store.Load(context.Background(), "u1")
	var storeErr *session.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected *StoreError, got %v", err)
	}
}

func TestRedisBackend_StoreExpiry(t *testing.T) {
	_, backend := setupMiniredis(t, 0)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := session.NewStore(backend, session.WithClock(clock))
	ctx := context.Background()

	if err := store.Save(ctx, "u1", []transcript.Message{transcript.UserText("Hello"), transcript.ModelText("Hi")}); err != nil {
		t.Fatal(err)
	}
	now = now.Add(session.DefaultTTL)

	if _, err := store.Load(ctx, "u1"); !errors.Is(err, session.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := backend.Get(ctx, "u1"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expired row still present: %v", err)
	}
}
