// Package model defines the boundary between the turn orchestrator and the
// language model. A Model receives the projected history plus the new
// user message and reports the canonical messages its turn produced.
package model

import (
	"context"

	"github.com/rhuss/kontrakt/pkg/render"
	"github.com/rhuss/kontrakt/pkg/transcript"
)

// Request is one model invocation.
type Request struct {
	// UserID identifies the conversation, for logging and backend
	// user attribution.
	UserID string

	// System is an optional system prompt prepended to the history.
	System string

	History     []render.RenderMessage
	UserMessage string
}

// Usage counts tokens across every backend call of a turn.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Result is what a model turn produced. Implementations fill whichever
// of the message fields they can; the orchestrator picks NewMessages
// first, then FullSequence, then FallbackMessage, then Candidates.
type Result struct {
	FinalText string

	// NewMessages are the canonical messages produced by this turn, in
	// order, excluding the user message.
	NewMessages []transcript.Message

	// FullSequence is the whole conversation echoed back: history, the
	// user message, then the new messages.
	FullSequence []transcript.Message

	// FallbackMessage is used when neither of the above carries new
	// messages.
	FallbackMessage *transcript.Message

	// Candidates are alternative final messages. The first one is
	// canonical.
	Candidates []transcript.Message

	Usage Usage
}

// Model produces one assistant turn.
type Model interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Result, error)
}

// Func adapts a function to the Model interface.
type Func func(ctx context.Context, req *Request) (*Result, error)

// Name returns "func".
func (f Func) Name() string { return "func" }

// Generate calls f.
func (f Func) Generate(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}
