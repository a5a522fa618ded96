package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rhuss/kontrakt/pkg/model/openaicompat"
	"github.com/rhuss/kontrakt/pkg/tools/builtins/contracts"
)

const mockModel = "mock-model"

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", handleChatCompletions)
	mux.HandleFunc("GET /v1/models", handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req openaicompat.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages must not be empty")
		return
	}

	resp := respond(&req)
	slog.Debug("mock completion", "messages", len(req.Messages), "tools", len(req.Tools), "finish", resp.Choices[0].FinishReason)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// respond picks the reply for req:
//   - after a tool result, a summary of the result;
//   - for a question naming a contract, a lookup call when the tool is offered;
//   - otherwise a fixed greeting.
func respond(req *openaicompat.ChatCompletionRequest) openaicompat.ChatCompletionResponse {
	last := req.Messages[len(req.Messages)-1]

	var msg openaicompat.ChatMessage
	finish := "stop"
	name := contractName(lastUserMessage(req))
	switch {
	case last.Role == "tool":
		msg = textMessage(summarizeToolResult(contentString(last.Content)))
	case name != "" && offersTool(req, contracts.ToolName):
		args, _ := json.Marshal(contracts.Input{ContractName: name})
		msg = openaicompat.ChatMessage{
			Role: "assistant",
			ToolCalls: []openaicompat.ChatToolCall{{
				ID:       fmt.Sprintf("call_mock_%d", len(req.Messages)),
				Type:     "function",
				Function: openaicompat.ChatFunctionCall{Name: contracts.ToolName, Arguments: string(args)},
			}},
		}
		finish = "tool_calls"
	default:
		msg = textMessage(basicAnswer(lastUserMessage(req)))
	}

	model := req.Model
	if model == "" {
		model = mockModel
	}
	resp := openaicompat.ChatCompletionResponse{
		ID:      "chatcmpl-mock",
		Object:  "chat.completion",
		Model:   model,
		Choices: []openaicompat.ChatChoice{{Index: 0, Message: msg, FinishReason: finish}},
		Usage:   &openaicompat.ChatUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}

	// Alternative choices only make sense for text answers.
	if finish == "stop" {
		text := contentString(msg.Content)
		for i := 1; i < req.N; i++ {
			resp.Choices = append(resp.Choices, openaicompat.ChatChoice{
				Index:        i,
				Message:      textMessage(fmt.Sprintf("(alternative %d) %s", i, text)),
				FinishReason: "stop",
			})
		}
	}
	return resp
}

func basicAnswer(user string) string {
	if strings.Contains(strings.ToLower(user), "count from 1 to 5") {
		return "1, 2, 3, 4, 5"
	}
	return "Hello! I can look up contracts for you. Ask me about one by name."
}

func summarizeToolResult(content string) string {
	var out contracts.Output
	if err := json.Unmarshal([]byte(content), &out); err != nil || !out.Found {
		return "I couldn't find a contract with that name."
	}
	return "Here is what I found: " + out.Details
}

// contractName extracts the contract a question is about: a quoted name
// wins, then the words after "about", then the words after "contract".
func contractName(text string) string {
	for _, q := range []string{`"`, "'"} {
		if start := strings.Index(text, q); start >= 0 {
			if end := strings.Index(text[start+1:], q); end > 0 {
				return strings.TrimSpace(text[start+1 : start+1+end])
			}
		}
	}

	lower := strings.ToLower(text)
	if !strings.Contains(lower, "contract") {
		return ""
	}

	var rest string
	if i := strings.LastIndex(lower, " about "); i >= 0 {
		rest = text[i+len(" about "):]
	} else if i := strings.Index(lower, "contract "); i >= 0 {
		rest = text[i+len("contract "):]
	}

	rest = strings.TrimRight(strings.TrimSpace(rest), "?.!")
	for _, prefix := range []string{"the ", "called ", "named ", "for "} {
		if len(rest) >= len(prefix) && strings.EqualFold(rest[:len(prefix)], prefix) {
			rest = rest[len(prefix):]
		}
	}
	if len(rest) >= len(" contract") && strings.EqualFold(rest[len(rest)-len(" contract"):], " contract") {
		rest = rest[:len(rest)-len(" contract")]
	}
	return strings.TrimSpace(rest)
}

func textMessage(text string) openaicompat.ChatMessage {
	return openaicompat.ChatMessage{Role: "assistant", Content: text}
}

func offersTool(req *openaicompat.ChatCompletionRequest, name string) bool {
	for _, t := range req.Tools {
		if t.Function.Name == name {
			return true
		}
	}
	return false
}

func lastUserMessage(req *openaicompat.ChatCompletionRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return contentString(req.Messages[i].Content)
		}
	}
	return ""
}

// contentString reads a message content that is either a string or an
// array of text parts.
func contentString(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		var b strings.Builder
		for _, part := range v {
			if m, ok := part.(map[string]any); ok {
				if text, ok := m["text"].(string); ok {
					b.WriteString(text)
				}
			}
		}
		return b.String()
	}
	return ""
}

func handleModels(w http.ResponseWriter, r *http.Request) {
	resp := openaicompat.ChatModelsResponse{
		Object: "list",
		Data:   []openaicompat.ChatModel{{ID: mockModel, Object: "model", OwnedBy: "kontrakt-mock"}},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	var body openaicompat.ChatErrorResponse
	body.Error.Message = msg
	body.Error.Type = "invalid_request_error"
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
