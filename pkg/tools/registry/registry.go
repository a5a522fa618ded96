package registry

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	kdebug "github.com/rhuss/kontrakt/pkg/debug"
	"github.com/rhuss/kontrakt/pkg/observability"
	"github.com/rhuss/kontrakt/pkg/tools"
)

// DefaultConcurrency bounds parallel handler execution in Dispatch.
const DefaultConcurrency = 4

// Registry maps tool names to tools. It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex

	// order keeps registration order for listing.
	order []string
	tools map[string]*tools.Tool

	sources []Source

	concurrency int
	logger      *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithConcurrency sets how many handlers Dispatch runs at once.
func WithConcurrency(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		tools:       make(map[string]*tools.Tool),
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Names are first-come, first-served: registering a
// name twice keeps the first tool, logs a warning and returns false.
func (r *Registry) Register(t tools.Tool) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tools[t.Name]; ok {
		r.logger.Warn("tool name conflict, keeping first registration",
			"tool", t.Name,
			"winner", existing.Source,
			"loser", t.Source,
		)
		return false, nil
	}
	r.tools[t.Name] = &t
	r.order = append(r.order, t.Name)
	return true, nil
}

// MustRegister is Register that panics on an invalid tool.
func (r *Registry) MustRegister(t tools.Tool) {
	if _, err := r.Register(t); err != nil {
		panic(err)
	}
}

// RegisterSource adds every tool of src. Invalid tools are skipped with a
// warning; an error listing the source's tools is returned as is.
func (r *Registry) RegisterSource(ctx context.Context, src Source) error {
	list, err := src.Tools(ctx)
	if err != nil {
		return fmt.Errorf("listing tools of %s: %w", src.Name(), err)
	}

	added := 0
	for _, t := range list {
		ok, err := r.Register(t)
		if err != nil {
			r.logger.Warn("skipping invalid tool", "source", src.Name(), "tool", t.Name, "error", err)
			continue
		}
		if ok {
			added++
		}
	}

	r.mu.Lock()
	r.sources = append(r.sources, src)
	r.mu.Unlock()

	r.logger.Info("registered tool source", "source", src.Name(), "tools", added)
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (tools.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return tools.Tool{}, false
	}
	return *t, true
}

// Tools lists registered tools in registration order.
func (r *Registry) Tools() []tools.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]tools.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.tools[name])
	}
	return out
}

// Invoke runs the named tool. Every failure (unknown tool, invalid input,
// handler error, panic) is returned as a *tools.ToolError.
func (r *Registry) Invoke(ctx context.Context, name string, input any) (output any, err error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		observability.ToolInvocationsTotal.WithLabelValues(name, "unknown").Inc()
		return nil, &tools.ToolError{Tool: name, Code: tools.CodeUnknownTool, Message: fmt.Sprintf("no tool named %q", name)}
	}

	if err := t.CheckInput(input); err != nil {
		observability.ToolInvocationsTotal.WithLabelValues(name, "invalid_input").Inc()
		return nil, &tools.ToolError{Tool: name, Code: tools.CodeInvalidInput, Message: err.Error()}
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool handler panicked",
				"tool", name,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			output = nil
			err = &tools.ToolError{Tool: name, Code: tools.CodePanic, Message: fmt.Sprintf("tool %q failed unexpectedly", name)}
			observability.ToolInvocationsTotal.WithLabelValues(name, "panic").Inc()
			observability.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
	}()

	kdebug.Log("tools", "invoke", "tool", name, "source", t.Source)

	output, err = t.Handler(ctx, input)

	status := "success"
	if err != nil {
		status = "error"
		err = tools.AsToolError(name, err)
	}
	observability.ToolInvocationsTotal.WithLabelValues(name, status).Inc()
	observability.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	return output, err
}

// Respond runs a call and returns the Result to place in the transcript.
// A ToolError becomes the result's payload.
func (r *Registry) Respond(ctx context.Context, call tools.Call) tools.Result {
	out, err := r.Invoke(ctx, call.Name, call.Input)
	if err != nil {
		te := tools.AsToolError(call.Name, err)
		r.logger.Warn("tool call failed", "tool", call.Name, "call_id", call.ID, "code", te.Code, "error", te.Message)
		return tools.Result{CallID: call.ID, Name: call.Name, Output: te.Payload(), IsError: true}
	}
	return tools.Result{CallID: call.ID, Name: call.Name, Output: out}
}

// Dispatch runs calls concurrently, bounded by the registry's concurrency,
// after filtering them against allowed (empty allows all). Results come
// back in call order.
func (r *Registry) Dispatch(ctx context.Context, calls []tools.Call, allowed []string) []tools.Result {
	results := make([]tools.Result, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, call := range calls {
		filtered := tools.FilterAllowedTools([]tools.Call{call}, allowed)
		if len(filtered.Rejected) > 0 {
			results[i] = filtered.Rejected[0]
			continue
		}
		g.Go(func() error {
			results[i] = r.Respond(gctx, call)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Close closes all registered sources, returning the last error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var lastErr error
	for _, src := range r.sources {
		if err := src.Close(); err != nil {
			r.logger.Warn("failed to close tool source", "source", src.Name(), "error", err)
			lastErr = err
		}
	}
	return lastErr
}
