package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rhuss/kontrakt/pkg/session"
)

func TestBackend_UpsertAndGet(t *testing.T) {
	b := New(0)
	ctx := context.Background()
	now := time.Now()

	data := []byte(`[{"role":"user","content":[{"text":"hi"}]}]`)
	if err := b.Upsert(ctx, session.Row{UserID: "u1", Data: data, UpdatedAt: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Mutating the caller's buffer must not leak into the stored row.
	data[0] = 'X'

	row, err := b.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.Data[0] != '[' {
		t.Errorf("stored data aliased caller buffer: %s", row.Data)
	}
	if !row.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", row.UpdatedAt, now)
	}
}

func TestBackend_GetMissing(t *testing.T) {
	b := New(0)
	_, err := b.Get(context.Background(), "nobody")
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBackend_UpsertOverwrites(t *testing.T) {
	b := New(0)
	ctx := context.Background()
	t0 := time.Now()

	b.Upsert(ctx, session.Row{UserID: "u1", Data: []byte("a"), UpdatedAt: t0})
	b.Upsert(ctx, session.Row{UserID: "u1", Data: []byte("b"), UpdatedAt: t0.Add(time.Second)})

	row, _ := b.Get(ctx, "u1")
	if string(row.Data) != "b" {
		t.Errorf("data = %s, want b", row.Data)
	}
	if b.Len() != 1 {
		t.Errorf("Len = %d, want 1", b.Len())
	}
}

func TestBackend_DeleteIsIdempotent(t *testing.T) {
	b := New(0)
	ctx := context.Background()
	b.Upsert(ctx, session.Row{UserID: "u1", Data: []byte("a"), UpdatedAt: time.Now()})

	for i := 0; i < 2; i++ {
		if err := b.Delete(ctx, "u1"); err != nil {
			t.Fatalf("delete #%d: %v", i, err)
		}
	}
	if _, err := b.Get(ctx, "u1"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBackend_DeleteIfUnchanged(t *testing.T) {
	b := New(0)
	ctx := context.Background()
	t0 := time.Now()
	b.Upsert(ctx, session.Row{UserID: "u1", Data: []byte("a"), UpdatedAt: t0})

	removed, err := b.DeleteIfUnchanged(ctx, "u1", t0.Add(-time.Minute))
	if err != nil || removed {
		t.Fatalf("stale timestamp: removed=%v err=%v", removed, err)
	}
	removed, err = b.DeleteIfUnchanged(ctx, "u1", t0)
	if err != nil || !removed {
		t.Fatalf("matching timestamp: removed=%v err=%v", removed, err)
	}
	removed, _ = b.DeleteIfUnchanged(ctx, "u1", t0)
	if removed {
		t.Error("second delete reported removal")
	}
}

func TestBackend_LRUEviction(t *testing.T) {
	b := New(2)
	ctx := context.Background()
	now := time.Now()

	b.Upsert(ctx, session.Row{UserID: "a", Data: []byte("1"), UpdatedAt: now})
	b.Upsert(ctx, session.Row{UserID: "b", Data: []byte("2"), UpdatedAt: now})

	// Touch "a" so "b" becomes the least recently used.
	if _, err := b.Get(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	b.Upsert(ctx, session.Row{UserID: "c", Data: []byte("3"), UpdatedAt: now})

	if _, err := b.Get(ctx, "b"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected b evicted, got %v", err)
	}
	for _, id := range []string{"a", "c"} {
		if _, err := b.Get(ctx, id); err != nil {
			t.Errorf("expected %s present, got %v", id, err)
		}
	}
}

func TestBackend_Closed(t *testing.T) {
	b := New(0)
	b.Close()
	ctx := context.Background()

	if _, err := b.Get(ctx, "u1"); !errors.Is(err, session.ErrClosed) {
		t.Errorf("Get after close = %v", err)
	}
	if err := b.Upsert(ctx, session.Row{UserID: "u1"}); !errors.Is(err, session.ErrClosed) {
		t.Errorf("Upsert after close = %v", err)
	}
	if err := b.HealthCheck(ctx); !errors.Is(err, session.ErrClosed) {
		t.Errorf("HealthCheck after close = %v", err)
	}
}
