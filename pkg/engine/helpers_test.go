package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rhuss/kontrakt/pkg/model"
	"github.com/rhuss/kontrakt/pkg/session"
	"github.com/rhuss/kontrakt/pkg/session/memory"
	"github.com/rhuss/kontrakt/pkg/transcript"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyStore wraps a real store and fails the operations it is told to.
type flakyStore struct {
	*session.Store
	loadErr error
	saveErr error
	saves   int
}

func (f *flakyStore) Load(ctx context.Context, userID string) (*transcript.Session, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.Store.Load(ctx, userID)
}

func (f *flakyStore) Save(ctx context.Context, userID string, msgs []transcript.Message) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.Save(ctx, userID, msgs)
}

func storeErr(op string) error {
	return &session.StoreError{Op: op, Backend: "memory", UserID: "u", Err: errors.New("connection reset")}
}

type fixture struct {
	clock *testClock
	store *flakyStore
}

func newFixture() *fixture {
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return &fixture{
		clock: clock,
		store: &flakyStore{Store: session.NewStore(memory.New(0), session.WithClock(clock.Now))},
	}
}

func (f *fixture) engine(t *testing.T, m model.Model) *Engine {
	t.Helper()
	e, err := New(f.store, m, Config{SystemPrompt: "You help with contracts."},
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func (f *fixture) seed(t *testing.T, user string, msgs ...transcript.Message) {
	t.Helper()
	if err := f.store.Store.Save(context.Background(), user, msgs); err != nil {
		t.Fatalf("seeding %s: %v", user, err)
	}
}

func (f *fixture) transcript(t *testing.T, user string) []transcript.Message {
	t.Helper()
	sess, err := f.store.Store.Load(context.Background(), user)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("loading %s: %v", user, err)
	}
	return sess.Messages
}

// reply answers every turn with a single model text message.
func reply(text string) model.Func {
	return func(context.Context, *model.Request) (*model.Result, error) {
		return &model.Result{FinalText: text, NewMessages: []transcript.Message{transcript.ModelText(text)}}, nil
	}
}

func texts(msgs []transcript.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.Role) + ":" + m.Text()
	}
	return out
}

func hasError[T error](errs []error) bool {
	for _, err := range errs {
		var target T
		if errors.As(err, &target) {
			return true
		}
	}
	return false
}
