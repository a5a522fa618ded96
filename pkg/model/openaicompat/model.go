package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rhuss/kontrakt/pkg/api"
	kdebug "github.com/rhuss/kontrakt/pkg/debug"
	"github.com/rhuss/kontrakt/pkg/model"
	"github.com/rhuss/kontrakt/pkg/observability"
	"github.com/rhuss/kontrakt/pkg/render"
	"github.com/rhuss/kontrakt/pkg/tools"
	"github.com/rhuss/kontrakt/pkg/transcript"
)

const (
	providerName = "openaicompat"

	// DefaultMaxToolRounds bounds the tool loop of a single turn.
	DefaultMaxToolRounds = 5
)

// ToolRunner is the part of the tool registry the model needs.
type ToolRunner interface {
	Tools() []tools.Tool
	Dispatch(ctx context.Context, calls []tools.Call, allowed []string) []tools.Result
}

// Config configures a Model.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration

	// MaxToolRounds is the number of tool-call rounds before the backend
	// is asked for a final answer with tools disabled.
	MaxToolRounds int

	// AllowedTools restricts which registered tools may run. Empty
	// allows all.
	AllowedTools []string

	Temperature *float64
	MaxTokens   *int

	// Choices is the number of completions to request. Extra choices of
	// the final round become Result.Candidates.
	Choices int
}

// Model is a model.Model backed by a Chat Completions endpoint.
type Model struct {
	cfg    Config
	client *Client
	tools  ToolRunner
	logger *slog.Logger
}

var _ model.Model = (*Model)(nil)

// New creates a Model. runner may be nil, which disables tools.
func New(cfg Config, runner ToolRunner, logger *slog.Logger) *Model {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = DefaultMaxToolRounds
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{
		cfg:    cfg,
		client: NewClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout),
		tools:  runner,
		logger: logger,
	}
}

// Name returns the configured backend model name.
func (m *Model) Name() string { return m.cfg.Model }

// Client exposes the underlying HTTP client.
func (m *Model) Client() *Client { return m.client }

// Generate runs one assistant turn.
func (m *Model) Generate(ctx context.Context, req *model.Request) (*model.Result, error) {
	messages := toChatMessages(req.System, req.History, req.UserMessage, m.logger)
	defs := m.toolDefs()

	var (
		result model.Result
		usage  model.Usage
	)

	for round := 0; ; round++ {
		chatReq := &ChatCompletionRequest{
			Model:       m.cfg.Model,
			Messages:    messages,
			Temperature: m.cfg.Temperature,
			MaxTokens:   m.cfg.MaxTokens,
			User:        req.UserID,
		}
		if m.cfg.Choices > 1 {
			chatReq.N = m.cfg.Choices
		}
		toolsEnabled := len(defs) > 0 && round < m.cfg.MaxToolRounds
		if len(defs) > 0 {
			chatReq.Tools = defs
			if !toolsEnabled {
				chatReq.ToolChoice = "none"
			}
		}

		resp, err := m.complete(ctx, chatReq)
		if err != nil {
			return nil, err
		}
		if resp.Usage != nil {
			usage.InputTokens += resp.Usage.PromptTokens
			usage.OutputTokens += resp.Usage.CompletionTokens
			usage.TotalTokens += resp.Usage.TotalTokens
		}

		choice := resp.Choices[0].Message
		if len(choice.ToolCalls) == 0 || !toolsEnabled {
			final := contentText(choice.Content)
			result.FinalText = final
			result.NewMessages = append(result.NewMessages, transcript.ModelText(final))
			for _, c := range resp.Choices[1:] {
				result.Candidates = append(result.Candidates, transcript.ModelText(contentText(c.Message.Content)))
			}
			result.Usage = usage
			return &result, nil
		}

		calls, requestMsg, assistant := m.toolRound(choice)
		kdebug.Log("model", "tool round", "round", round+1, "calls", len(calls))

		results := m.tools.Dispatch(ctx, calls, m.cfg.AllowedTools)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		responseMsg := transcript.Message{Role: transcript.RoleTool}
		messages = append(messages, assistant)
		for _, r := range results {
			responseMsg.Parts = append(responseMsg.Parts, transcript.ToolResponse(r.Name, r.Output).WithCallID(r.CallID))
			messages = append(messages, ChatMessage{Role: "tool", ToolCallID: r.CallID, Content: outputText(r.Output)})
		}
		result.NewMessages = append(result.NewMessages, requestMsg, responseMsg)
	}
}

// toolRound converts the backend's tool calls into registry calls, the
// canonical model message recording them, and the assistant message to
// send back.
func (m *Model) toolRound(msg ChatMessage) ([]tools.Call, transcript.Message, ChatMessage) {
	requestMsg := transcript.Message{Role: transcript.RoleModel}
	if text := contentText(msg.Content); text != "" {
		requestMsg.Parts = append(requestMsg.Parts, transcript.Text(text))
	}

	assistant := ChatMessage{Role: "assistant", Content: msg.Content}
	calls := make([]tools.Call, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		if tc.ID == "" {
			tc.ID = api.NewCallID()
		}
		if tc.Type == "" {
			tc.Type = "function"
		}
		input := parseArguments(tc.Function.Arguments)
		calls = append(calls, tools.Call{ID: tc.ID, Name: tc.Function.Name, Input: input})
		requestMsg.Parts = append(requestMsg.Parts, transcript.ToolRequest(tc.Function.Name, input).WithCallID(tc.ID))
		assistant.ToolCalls = append(assistant.ToolCalls, tc)
	}
	return calls, requestMsg, assistant
}

func (m *Model) complete(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	start := time.Now()
	resp, err := m.client.Complete(ctx, req)
	elapsed := time.Since(start).Seconds()
	observability.ProviderLatency.WithLabelValues(providerName, m.cfg.Model).Observe(elapsed)

	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues(providerName, m.cfg.Model, "error").Inc()
		return nil, err
	}
	observability.ProviderRequestsTotal.WithLabelValues(providerName, m.cfg.Model, "success").Inc()
	if resp.Usage != nil {
		observability.ProviderTokensTotal.WithLabelValues(providerName, m.cfg.Model, "input").Add(float64(resp.Usage.PromptTokens))
		observability.ProviderTokensTotal.WithLabelValues(providerName, m.cfg.Model, "output").Add(float64(resp.Usage.CompletionTokens))
	}
	return resp, nil
}

func (m *Model) toolDefs() []ChatTool {
	if m.tools == nil {
		return nil
	}
	allowed := make(map[string]bool, len(m.cfg.AllowedTools))
	for _, n := range m.cfg.AllowedTools {
		allowed[n] = true
	}

	var defs []ChatTool
	for _, t := range m.tools.Tools() {
		if len(allowed) > 0 && !allowed[t.Name] {
			continue
		}
		defs = append(defs, ChatTool{
			Type: "function",
			Function: ChatFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return defs
}

// parseArguments decodes tool arguments. Arguments that are not valid
// JSON are passed on as the raw string so the registry can reject them.
func parseArguments(args string) any {
	if args == "" {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal([]byte(args), &v); err != nil {
		return args
	}
	return v
}

// outputText serializes a tool result for the backend.
func outputText(v any) string {
	s, err := render.Canonical(v)
	if err != nil {
		return fmt.Sprintf(`{"error":{"code":"unserializable","message":%q}}`, err.Error())
	}
	return s
}

// contentText extracts text from a message content, which backends send
// either as a string or as an array of typed parts.
func contentText(content any) string {
	switch c := content.(type) {
	case nil:
		return ""
	case string:
		return c
	case []any:
		var s string
		for _, part := range c {
			if m, ok := part.(map[string]any); ok {
				if text, ok := m["text"].(string); ok {
					s += text
				}
			}
		}
		return s
	default:
		return fmt.Sprint(c)
	}
}
