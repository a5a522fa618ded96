package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/kontrakt/pkg/api"
	kdebug "github.com/rhuss/kontrakt/pkg/debug"
	"github.com/rhuss/kontrakt/pkg/model"
	"github.com/rhuss/kontrakt/pkg/observability"
	"github.com/rhuss/kontrakt/pkg/render"
	"github.com/rhuss/kontrakt/pkg/session"
	"github.com/rhuss/kontrakt/pkg/transcript"
)

// SessionStore is the transcript persistence the engine needs.
// *session.Store implements it.
type SessionStore interface {
	Load(ctx context.Context, userID string) (*transcript.Session, error)
	Save(ctx context.Context, userID string, msgs []transcript.Message) error
	Clear(ctx context.Context, userID string) error
}

var _ SessionStore = (*session.Store)(nil)

// Engine runs conversational turns.
type Engine struct {
	store  SessionStore
	model  model.Model
	cfg    Config
	logger *slog.Logger
	locks  *userLocks
	prompt *render.Template
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine. Store and model must not be nil.
func New(store SessionStore, m model.Model, cfg Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: session store must not be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("engine: model must not be nil")
	}
	prompt, err := render.NewTemplate(cfg.PromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e := &Engine{
		store:  store,
		model:  m,
		cfg:    cfg,
		logger: slog.Default(),
		locks:  newUserLocks(),
		prompt: prompt,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// TurnResult reports one turn. Answer is set for every turn that was not
// cancelled.
type TurnResult struct {
	TurnID string
	Answer string

	// State is the terminal state; Transitions lists every state the
	// turn went through, starting with StateIdle.
	State       State
	Transitions []State

	Splice SpliceMode

	// Appended counts the messages added to the transcript, including
	// the user message.
	Appended  int
	Persisted bool

	// Degraded is set when a store or model failure shaped the turn.
	Degraded bool

	// Errors holds the *session.StoreError, *ModelError and
	// *transcript.InvariantError values met during the turn.
	Errors []error

	Usage model.Usage
}

func (r *TurnResult) enter(s State) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

func (r *TurnResult) fail(err error) {
	r.Errors = append(r.Errors, err)
}

// ProcessTurn runs one turn for userID. The only errors returned are
// ErrInvalidUser and the context's error when the turn was cancelled;
// nothing is persisted in those cases.
func (e *Engine) ProcessTurn(ctx context.Context, userID, text string) (*TurnResult, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}

	start := time.Now()
	res := &TurnResult{TurnID: api.NewTurnID()}
	res.enter(StateIdle)

	release, err := e.locks.acquire(ctx, userID)
	if err != nil {
		observability.TurnsTotal.WithLabelValues("cancelled").Inc()
		return nil, err
	}
	defer release()

	logger := e.logger.With("user", userID, "turn", res.TurnID)

	// Load.
	res.enter(StateLoading)
	history, err := e.load(ctx, userID)
	if err != nil {
		if ctx.Err() != nil {
			return e.cancelled(ctx, res, start)
		}
		logger.Warn("failed to load session, continuing with empty history", "error", err)
		res.Degraded = true
		res.fail(err)
		history = nil
	}

	// Project.
	res.enter(StateProjecting)
	projector := render.Projector{OnDrop: func(msg, part int, err error) {
		logger.Warn("dropping unserializable part", "message", msg, "part", part, "error", err)
		observability.RenderDroppedPartsTotal.Inc()
	}}
	rendered := projector.Project(history)
	e.tracePrompt(rendered, text)

	// Invoke.
	res.enter(StateInvoking)
	out, err := e.model.Generate(ctx, &model.Request{
		UserID:      userID,
		System:      e.cfg.SystemPrompt,
		History:     rendered,
		UserMessage: text,
	})
	if err == nil && out == nil {
		err = errors.New("model returned no result")
	}
	if err != nil {
		if ctx.Err() != nil {
			return e.cancelled(ctx, res, start)
		}
		return e.modelFailed(ctx, logger, res, userID, history, text, err, start)
	}
	res.Usage = out.Usage

	// Splice.
	res.enter(StateSplicing)
	tail, mode := splice(len(rendered), out)
	full := make([]transcript.Message, 0, len(history)+1+len(tail))
	full = append(full, history...)
	full = append(full, transcript.UserText(text))
	full = append(full, tail...)
	res.Splice = mode
	res.Appended = 1 + len(tail)
	res.Answer = answerText(out, tail)
	observability.SpliceTotal.WithLabelValues(string(mode)).Inc()
	kdebug.Log("engine", "spliced", "user", userID, "mode", mode, "appended", res.Appended)

	e.validate(logger, res, full)

	// Persist.
	res.enter(StatePersisting)
	if ctx.Err() != nil {
		return e.cancelled(ctx, res, start)
	}
	e.persist(ctx, logger, res, userID, full)

	res.enter(StateDone)
	e.finish(res, start)
	return res, nil
}

// load returns the stored history. A missing or expired session is an
// empty history.
func (e *Engine) load(ctx context.Context, userID string) ([]transcript.Message, error) {
	sess, err := e.store.Load(ctx, userID)
	if errors.Is(err, session.ErrNotFound) {
		if errors.Is(err, session.ErrExpired) {
			kdebug.Log("engine", "session expired, starting fresh", "user", userID)
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess.Messages, nil
}

// modelFailed finishes a turn whose model call failed: the user message
// is still recorded and the fallback answer returned.
func (e *Engine) modelFailed(ctx context.Context, logger *slog.Logger, res *TurnResult, userID string, history []transcript.Message, text string, cause error, start time.Time) (*TurnResult, error) {
	merr := &ModelError{Model: e.model.Name(), Err: cause}
	logger.Error("model invocation failed", "model", e.model.Name(), "error", cause)

	res.enter(StateErrored)
	res.fail(merr)
	res.Degraded = true
	res.Answer = e.cfg.fallbackAnswer()
	res.Splice = SpliceUserOnly
	res.Appended = 1
	observability.SpliceTotal.WithLabelValues(string(SpliceUserOnly)).Inc()

	full := make([]transcript.Message, 0, len(history)+1)
	full = append(full, history...)
	full = append(full, transcript.UserText(text))
	e.validate(logger, res, full)
	e.persist(ctx, logger, res, userID, full)

	e.finish(res, start)
	return res, nil
}

func (e *Engine) validate(logger *slog.Logger, res *TurnResult, msgs []transcript.Message) {
	err := transcript.ValidateMessages(msgs)
	if err == nil {
		return
	}
	var inv *transcript.InvariantError
	if errors.As(err, &inv) {
		observability.InvariantViolationsTotal.Add(float64(len(inv.Violations)))
	}
	logger.Warn("transcript violates invariants, saving anyway", "error", err)
	res.fail(err)
}

func (e *Engine) persist(ctx context.Context, logger *slog.Logger, res *TurnResult, userID string, msgs []transcript.Message) {
	if err := e.store.Save(ctx, userID, msgs); err != nil {
		logger.Error("failed to save session", "error", err)
		res.Degraded = true
		res.fail(err)
		return
	}
	res.Persisted = true
}

func (e *Engine) cancelled(ctx context.Context, res *TurnResult, start time.Time) (*TurnResult, error) {
	res.enter(StateErrored)
	observability.TurnsTotal.WithLabelValues("cancelled").Inc()
	observability.TurnDuration.Observe(time.Since(start).Seconds())
	return nil, ctx.Err()
}

func (e *Engine) finish(res *TurnResult, start time.Time) {
	outcome := "ok"
	switch {
	case res.State == StateErrored:
		outcome = "errored"
	case res.Degraded:
		outcome = "degraded"
	}
	observability.TurnsTotal.WithLabelValues(outcome).Inc()
	observability.TurnDuration.Observe(time.Since(start).Seconds())
}

// tracePrompt logs the rendered prompt at TRACE level.
func (e *Engine) tracePrompt(history []render.RenderMessage, text string) {
	if !kdebug.TraceIsEnabled("engine") {
		return
	}
	prompt, err := e.prompt.String(render.PromptData{
		System:      e.cfg.SystemPrompt,
		History:     history,
		UserMessage: text,
	})
	if err != nil {
		return
	}
	kdebug.Trace("engine", "prompt", "text", kdebug.Truncate(prompt, 4096))
}
