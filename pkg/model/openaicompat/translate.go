package openaicompat

import (
	"fmt"
	"log/slog"

	"github.com/rhuss/kontrakt/pkg/render"
	"github.com/rhuss/kontrakt/pkg/transcript"
)

// missingResponse is the tool message content sent for a recorded tool
// request that has no recorded response, since the backend rejects
// unanswered tool calls.
const missingResponse = `{"error":{"code":"no_response","message":"no tool response was recorded"}}`

// historyTranslator turns render messages into chat messages. Tool
// requests and responses are paired by call ID, or in order per tool name
// when the transcript carries no IDs.
type historyTranslator struct {
	logger  *slog.Logger
	out     []ChatMessage
	seq     int
	pending map[string][]string // tool name -> unanswered call IDs
	open    []string            // unanswered call IDs, in request order
}

func newHistoryTranslator(logger *slog.Logger) *historyTranslator {
	return &historyTranslator{logger: logger, pending: make(map[string][]string)}
}

// toChatMessages builds the message list for one backend call.
func toChatMessages(system string, history []render.RenderMessage, userMessage string, logger *slog.Logger) []ChatMessage {
	t := newHistoryTranslator(logger)
	if system != "" {
		t.out = append(t.out, ChatMessage{Role: "system", Content: system})
	}
	for _, m := range history {
		t.add(m)
	}
	t.closeOpen()
	t.out = append(t.out, ChatMessage{Role: "user", Content: userMessage})
	return t.out
}

func (t *historyTranslator) add(m render.RenderMessage) {
	switch m.Role {
	case transcript.RoleUser, transcript.RoleSystem:
		t.closeOpen()
		t.out = append(t.out, ChatMessage{Role: string(m.Role), Content: m.Text()})
	case transcript.RoleModel, transcript.RoleTool:
		text := m.Text()
		if text != "" || hasRequest(m) {
			t.closeOpen()
		}

		var calls []ChatToolCall
		var responses []ChatMessage
		for _, p := range m.Parts {
			switch p.Kind {
			case transcript.KindToolRequest:
				calls = append(calls, t.request(p))
			case transcript.KindToolResponse:
				if r, ok := t.response(p); ok {
					responses = append(responses, r)
				}
			}
		}

		if text != "" || len(calls) > 0 {
			msg := ChatMessage{Role: "assistant", ToolCalls: calls}
			if text != "" {
				msg.Content = text
			}
			t.out = append(t.out, msg)
		}
		t.out = append(t.out, responses...)
	}
}

func hasRequest(m render.RenderMessage) bool {
	for _, p := range m.Parts {
		if p.Kind == transcript.KindToolRequest {
			return true
		}
	}
	return false
}

func (t *historyTranslator) request(p render.RenderPart) ChatToolCall {
	id := p.CallID
	if id == "" {
		t.seq++
		id = fmt.Sprintf("call_hist_%d", t.seq)
	}
	t.pending[p.ToolName] = append(t.pending[p.ToolName], id)
	t.open = append(t.open, id)

	args := p.Input
	if args == "" {
		args = "{}"
	}
	return ChatToolCall{
		ID:       id,
		Type:     "function",
		Function: ChatFunctionCall{Name: p.ToolName, Arguments: args},
	}
}

func (t *historyTranslator) response(p render.RenderPart) (ChatMessage, bool) {
	queue := t.pending[p.ToolName]
	id := ""
	if p.CallID != "" {
		for i, q := range queue {
			if q == p.CallID {
				id = q
				queue = append(queue[:i:i], queue[i+1:]...)
				break
			}
		}
	} else if len(queue) > 0 {
		id, queue = queue[0], queue[1:]
	}
	if id == "" {
		t.logger.Debug("dropping tool response without matching request", "tool", p.ToolName, "call_id", p.CallID)
		return ChatMessage{}, false
	}
	t.pending[p.ToolName] = queue
	t.answer(id)

	return ChatMessage{Role: "tool", ToolCallID: id, Content: p.Output}, true
}

func (t *historyTranslator) answer(id string) {
	for i, o := range t.open {
		if o == id {
			t.open = append(t.open[:i:i], t.open[i+1:]...)
			return
		}
	}
}

// closeOpen answers every outstanding call before the next non-tool
// message.
func (t *historyTranslator) closeOpen() {
	for _, id := range t.open {
		t.out = append(t.out, ChatMessage{Role: "tool", ToolCallID: id, Content: missingResponse})
	}
	t.open = t.open[:0]
	for name := range t.pending {
		delete(t.pending, name)
	}
}
