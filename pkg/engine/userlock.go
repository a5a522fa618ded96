package engine

import (
	"context"
	"sync"

	"github.com/rhuss/kontrakt/pkg/observability"
)

// userLocks serializes turns per user. Waiters are served in arrival
// order; a waiter whose context ends leaves the queue.
type userLocks struct {
	mu    sync.Mutex
	users map[string]*userQueue
}

type userQueue struct {
	held    bool
	waiters []chan struct{}
}

func newUserLocks() *userLocks {
	return &userLocks{users: make(map[string]*userQueue)}
}

// acquire blocks until the caller owns the lock of userID. The returned
// func releases it and is safe to call more than once.
func (l *userLocks) acquire(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	q, ok := l.users[userID]
	if !ok {
		q = &userQueue{}
		l.users[userID] = q
	}
	if !q.held {
		q.held = true
		l.mu.Unlock()
		return l.releaser(userID), nil
	}
	ready := make(chan struct{})
	q.waiters = append(q.waiters, ready)
	l.mu.Unlock()

	observability.TurnsWaiting.Inc()
	defer observability.TurnsWaiting.Dec()

	select {
	case <-ready:
		return l.releaser(userID), nil
	case <-ctx.Done():
		l.mu.Lock()
		removed := false
		for i, w := range q.waiters {
			if w == ready {
				q.waiters = append(q.waiters[:i:i], q.waiters[i+1:]...)
				removed = true
				break
			}
		}
		l.mu.Unlock()
		if !removed {
			// Ownership was handed over while the context ended.
			l.release(userID)
		}
		return nil, ctx.Err()
	}
}

func (l *userLocks) releaser(userID string) func() {
	var once sync.Once
	return func() { once.Do(func() { l.release(userID) }) }
}

// release hands the lock to the next waiter, or drops the queue when
// nobody waits.
func (l *userLocks) release(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q, ok := l.users[userID]
	if !ok {
		return
	}
	if len(q.waiters) > 0 {
		next := q.waiters[0]
		q.waiters = q.waiters[1:]
		close(next)
		return
	}
	delete(l.users, userID)
}

// waiting returns the number of queued turns for userID.
func (l *userLocks) waiting(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if q, ok := l.users[userID]; ok {
		return len(q.waiters)
	}
	return 0
}
