package render

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rhuss/kontrakt/pkg/transcript"
)

// RenderPart is a Part whose structured payloads have been serialized.
type RenderPart struct {
	Kind     transcript.PartKind `json:"kind"`
	Text     string              `json:"text,omitempty"`
	ToolName string              `json:"toolName,omitempty"`
	Input    string              `json:"input,omitempty"`
	Output   string              `json:"output,omitempty"`
	CallID   string              `json:"callId,omitempty"`
}

// RenderMessage is the template-facing form of a transcript message.
type RenderMessage struct {
	Role  transcript.Role `json:"role"`
	Parts []RenderPart    `json:"parts"`
}

// RoleFlags are booleans derived from a role, for template conditionals.
type RoleFlags struct {
	IsUser  bool
	IsModel bool
	IsTool  bool
}

// Flags derives the role flags of a message. System messages set none.
func Flags(role transcript.Role) RoleFlags {
	return RoleFlags{
		IsUser:  role == transcript.RoleUser,
		IsModel: role == transcript.RoleModel,
		IsTool:  role == transcript.RoleTool,
	}
}

func (m RenderMessage) IsUser() bool  { return m.Role == transcript.RoleUser }
func (m RenderMessage) IsModel() bool { return m.Role == transcript.RoleModel }
func (m RenderMessage) IsTool() bool  { return m.Role == transcript.RoleTool }

// Text concatenates the text parts of the message.
func (m RenderMessage) Text() string {
	var buf bytes.Buffer
	for _, p := range m.Parts {
		if p.Kind == transcript.KindText {
			buf.WriteString(p.Text)
		}
	}
	return buf.String()
}

// DropFunc is told about every part the projector had to drop.
type DropFunc func(message, part int, err error)

// Projector converts canonical messages to render form.
type Projector struct {
	// OnDrop, if set, is called for each part whose payload could not be
	// serialized.
	OnDrop DropFunc
}

// ToRenderForm projects msgs without reporting dropped parts.
func ToRenderForm(msgs []transcript.Message) []RenderMessage {
	return Projector{}.Project(msgs)
}

// Project converts msgs to render form. It never fails as a whole: a part
// whose input or output cannot be serialized is omitted and its message
// keeps the remaining parts. The result has the same length and order as
// msgs.
func (p Projector) Project(msgs []transcript.Message) []RenderMessage {
	out := make([]RenderMessage, 0, len(msgs))
	for i, m := range msgs {
		rm := RenderMessage{Role: m.Role, Parts: make([]RenderPart, 0, len(m.Parts))}
		for j, part := range m.Parts {
			rp, err := projectPart(part)
			if err != nil {
				if p.OnDrop != nil {
					p.OnDrop(i, j, err)
				}
				continue
			}
			rm.Parts = append(rm.Parts, rp)
		}
		out = append(out, rm)
	}
	return out
}

func projectPart(p transcript.Part) (RenderPart, error) {
	rp := RenderPart{Kind: p.Kind, ToolName: p.ToolName, CallID: p.CallID}
	switch p.Kind {
	case transcript.KindText:
		rp.Text = p.Text
	case transcript.KindToolRequest:
		s, err := Canonical(p.Input)
		if err != nil {
			return RenderPart{}, fmt.Errorf("serialize input of %s: %w", p.ToolName, err)
		}
		rp.Input = s
	case transcript.KindToolResponse:
		s, err := Canonical(p.Output)
		if err != nil {
			return RenderPart{}, fmt.Errorf("serialize output of %s: %w", p.ToolName, err)
		}
		rp.Output = s
	default:
		return RenderPart{}, fmt.Errorf("unknown part kind %q", p.Kind)
	}
	return rp, nil
}

// Canonical serializes v to compact JSON with sorted object keys and no
// HTML escaping. Equal values always produce equal strings.
func Canonical(v any) (string, error) {
	if raw, ok := v.(json.RawMessage); ok {
		// Raw payloads are re-decoded so their key order is normalized too.
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var decoded any
		if err := dec.Decode(&decoded); err != nil {
			return "", err
		}
		v = decoded
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
