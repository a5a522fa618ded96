package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/kontrakt/pkg/session"
	"github.com/rhuss/kontrakt/pkg/transcript"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestSQLiteBackend_UpsertAndGet(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, b.Upsert(ctx, session.Row{UserID: "u1", Data: []byte("[]"), UpdatedAt: now}))

	row, err := b.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(row.Data))
	assert.True(t, row.UpdatedAt.Equal(now), "UpdatedAt = %v, want %v", row.UpdatedAt, now)

	later := now.Add(time.Minute)
	require.NoError(t, b.Upsert(ctx, session.Row{UserID: "u1", Data: []byte(`[{"role":"user","content":[{"text":"x"}]}]`), UpdatedAt: later}))
	row, err = b.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Contains(t, string(row.Data), `"x"`)
	assert.True(t, row.UpdatedAt.Equal(later))
}

func TestSQLiteBackend_GetMissing(t *testing.T) {
	b := newTestBackend(t)
	_, err := b.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSQLiteBackend_DeleteIfUnchanged(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, b.Upsert(ctx, session.Row{UserID: "u1", Data: []byte("[]"), UpdatedAt: now}))

	removed, err := b.DeleteIfUnchanged(ctx, "u1", now.Add(-time.Second))
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = b.DeleteIfUnchanged(ctx, "u1", now)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = b.Get(ctx, "u1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSQLiteBackend_DeleteAbsent(t *testing.T) {
	b := newTestBackend(t)
	assert.NoError(t, b.Delete(context.Background(), "nobody"))
}

func TestSQLiteBackend_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")
	ctx := context.Background()

	b, err := New(ctx, path)
	require.NoError(t, err)
	store := session.NewStore(b)
	require.NoError(t, store.Save(ctx, "u1", []transcript.Message{transcript.UserText("Hello"), transcript.ModelText("Hi")}))
	require.NoError(t, b.Close())

	b, err = New(ctx, path)
	require.NoError(t, err)
	defer b.Close()

	sess, err := session.NewStore(b).Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "Hi", sess.Messages[1].Text())
}

func TestSQLiteBackend_StoreExpiry(t *testing.T) {
	b := newTestBackend(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := session.NewStore(b, session.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "u1", []transcript.Message{transcript.UserText("Hello")}))
	now = now.Add(session.DefaultTTL)

	_, err := store.Load(ctx, "u1")
	assert.ErrorIs(t, err, session.ErrExpired)

	_, err = b.Get(ctx, "u1")
	assert.ErrorIs(t, err, session.ErrNotFound)
}
