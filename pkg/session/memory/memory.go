// Package memory provides an in-memory session.Backend for tests and
// single-process deployments. Sessions are lost when the process restarts.
// Optional LRU eviction bounds the number of users kept.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rhuss/kontrakt/pkg/session"
)

type entry struct {
	row     session.Row
	lruElem *list.Element
}

// Backend is an in-memory session.Backend with optional LRU eviction.
type Backend struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently used
	maxSize int        // 0 = unlimited
	closed  bool
}

var _ session.Backend = (*Backend)(nil)

// New creates an in-memory backend. If maxSize is 0 the backend grows
// without limit; otherwise the least recently used session is evicted
// when the limit is reached.
func New(maxSize int) *Backend {
	return &Backend{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

func (b *Backend) Name() string { return "memory" }

func (b *Backend) Get(_ context.Context, userID string) (*session.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, session.ErrClosed
	}
	e, ok := b.entries[userID]
	if !ok {
		return nil, session.ErrNotFound
	}
	b.lruList.MoveToFront(e.lruElem)

	row := e.row
	row.Data = append([]byte(nil), e.row.Data...)
	return &row, nil
}

func (b *Backend) Upsert(_ context.Context, row session.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return session.ErrClosed
	}
	row.Data = append([]byte(nil), row.Data...)

	if e, ok := b.entries[row.UserID]; ok {
		e.row = row
		b.lruList.MoveToFront(e.lruElem)
		return nil
	}

	if b.maxSize > 0 && len(b.entries) >= b.maxSize {
		b.evictOldest()
	}
	b.entries[row.UserID] = &entry{row: row, lruElem: b.lruList.PushFront(row.UserID)}
	return nil
}

func (b *Backend) Delete(_ context.Context, userID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return session.ErrClosed
	}
	b.remove(userID)
	return nil
}

func (b *Backend) DeleteIfUnchanged(_ context.Context, userID string, updatedAt time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false, session.ErrClosed
	}
	e, ok := b.entries[userID]
	if !ok || !e.row.UpdatedAt.Equal(updatedAt) {
		return false, nil
	}
	b.remove(userID)
	return true, nil
}

// Len returns the number of stored sessions.
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func (b *Backend) HealthCheck(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return session.ErrClosed
	}
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *Backend) remove(userID string) {
	if e, ok := b.entries[userID]; ok {
		b.lruList.Remove(e.lruElem)
		delete(b.entries, userID)
	}
}

// evictOldest removes the least recently used session. Caller holds mu.
func (b *Backend) evictOldest() {
	back := b.lruList.Back()
	if back == nil {
		return
	}
	b.remove(back.Value.(string))
}
