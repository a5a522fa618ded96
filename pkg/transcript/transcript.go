package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
	RoleTool   Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModel, RoleSystem, RoleTool:
		return true
	}
	return false
}

// PartKind discriminates the variants of Part.
type PartKind string

const (
	KindText         PartKind = "text"
	KindToolRequest  PartKind = "tool_request"
	KindToolResponse PartKind = "tool_response"
)

// Part is a tagged union. Kind selects which of the remaining fields are
// meaningful: Text for KindText, ToolName and Input for KindToolRequest,
// ToolName and Output for KindToolResponse. CallID optionally pairs a
// response with the request that caused it.
type Part struct {
	Kind     PartKind
	Text     string
	ToolName string
	Input    any
	Output   any
	CallID   string
}

// Text returns a text part.
func Text(s string) Part {
	return Part{Kind: KindText, Text: s}
}

// ToolRequest returns a tool request part.
func ToolRequest(name string, input any) Part {
	return Part{Kind: KindToolRequest, ToolName: name, Input: input}
}

// ToolResponse returns a tool response part.
func ToolResponse(name string, output any) Part {
	return Part{Kind: KindToolResponse, ToolName: name, Output: output}
}

// WithCallID returns a copy of p carrying the given call identifier.
func (p Part) WithCallID(id string) Part {
	p.CallID = id
	return p
}

// IsTool reports whether the part is a tool request or a tool response.
func (p Part) IsTool() bool {
	return p.Kind == KindToolRequest || p.Kind == KindToolResponse
}

type toolRequestWire struct {
	Name  string `json:"name"`
	Input any    `json:"input,omitempty"`
	Ref   string `json:"ref,omitempty"`
}

type toolResponseWire struct {
	Name   string `json:"name"`
	Output any    `json:"output,omitempty"`
	Ref    string `json:"ref,omitempty"`
}

type partWire struct {
	Text         *string           `json:"text,omitempty"`
	ToolRequest  *toolRequestWire  `json:"toolRequest,omitempty"`
	ToolResponse *toolResponseWire `json:"toolResponse,omitempty"`
}

// MarshalJSON encodes the part as an object with exactly one of the keys
// "text", "toolRequest" or "toolResponse".
func (p Part) MarshalJSON() ([]byte, error) {
	var w partWire
	switch p.Kind {
	case KindText:
		text := p.Text
		w.Text = &text
	case KindToolRequest:
		w.ToolRequest = &toolRequestWire{Name: p.ToolName, Input: p.Input, Ref: p.CallID}
	case KindToolResponse:
		w.ToolResponse = &toolResponseWire{Name: p.ToolName, Output: p.Output, Ref: p.CallID}
	default:
		return nil, fmt.Errorf("transcript: unknown part kind %q", p.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a part previously written by MarshalJSON. Objects
// carrying zero or several variants are rejected. Numbers inside tool
// payloads are kept as json.Number so large integers survive a reload.
func (p *Part) UnmarshalJSON(data []byte) error {
	var w partWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return err
	}

	set := 0
	if w.Text != nil {
		set++
	}
	if w.ToolRequest != nil {
		set++
	}
	if w.ToolResponse != nil {
		set++
	}
	if set != 1 {
		return errors.New("transcript: part must have exactly one of text, toolRequest, toolResponse")
	}

	switch {
	case w.Text != nil:
		*p = Text(*w.Text)
	case w.ToolRequest != nil:
		*p = ToolRequest(w.ToolRequest.Name, w.ToolRequest.Input).WithCallID(w.ToolRequest.Ref)
	default:
		*p = ToolResponse(w.ToolResponse.Name, w.ToolResponse.Output).WithCallID(w.ToolResponse.Ref)
	}
	return nil
}

// Message is one entry of a transcript.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"content"`
}

// UserText returns a user message with a single text part.
func UserText(s string) Message {
	return Message{Role: RoleUser, Parts: []Part{Text(s)}}
}

// ModelText returns a model message with a single text part.
func ModelText(s string) Message {
	return Message{Role: RoleModel, Parts: []Part{Text(s)}}
}

// Text concatenates the text parts of the message.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if p.Kind == KindText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// ToolRequests returns the tool request parts of the message.
func (m Message) ToolRequests() []Part {
	var out []Part
	for _, p := range m.Parts {
		if p.Kind == KindToolRequest {
			out = append(out, p)
		}
	}
	return out
}

// Session is the durable transcript of one user.
type Session struct {
	UserID        string    `json:"userId"`
	Messages      []Message `json:"messages"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// Clone returns a copy of the message slice so callers can append without
// aliasing the original backing array. Part payloads are shared.
func Clone(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = Message{Role: m.Role, Parts: append([]Part(nil), m.Parts...)}
	}
	return out
}
