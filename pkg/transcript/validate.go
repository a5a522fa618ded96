package transcript

import (
	"fmt"
	"strings"
)

// Violation describes one broken structural rule. Part is -1 when the
// violation concerns the message as a whole.
type Violation struct {
	Message int
	Part    int
	Reason  string
}

func (v Violation) String() string {
	if v.Part < 0 {
		return fmt.Sprintf("message %d: %s", v.Message, v.Reason)
	}
	return fmt.Sprintf("message %d part %d: %s", v.Message, v.Part, v.Reason)
}

// InvariantError lists every violation found in a transcript.
type InvariantError struct {
	Violations []Violation
}

func (e *InvariantError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "transcript invariant violated: " + strings.Join(parts, "; ")
}

// Validate checks the structural rules of a transcript:
//
//   - every message has a known role and at least one part
//   - user and system messages contain only text
//   - model messages contain only text and tool requests
//   - tool messages contain only tool requests and tool responses
//   - every tool response is preceded by an unanswered tool request for
//     the same tool (matched by call ID when both carry one)
//
// It returns nil or an *InvariantError.
func Validate(s Session) error {
	return ValidateMessages(s.Messages)
}

// ValidateMessages is Validate for a bare message sequence.
func ValidateMessages(msgs []Message) error {
	var violations []Violation
	add := func(msg, part int, format string, args ...any) {
		violations = append(violations, Violation{Message: msg, Part: part, Reason: fmt.Sprintf(format, args...)})
	}

	pendingByName := make(map[string]int)
	pendingByCall := make(map[string]string)

	for i, m := range msgs {
		if !m.Role.Valid() {
			add(i, -1, "unknown role %q", m.Role)
			continue
		}
		if len(m.Parts) == 0 {
			add(i, -1, "%s message has no parts", m.Role)
			continue
		}

		for j, p := range m.Parts {
			if !allowed(m.Role, p.Kind) {
				add(i, j, "%s part not allowed in %s message", p.Kind, m.Role)
				continue
			}

			switch p.Kind {
			case KindToolRequest:
				if p.ToolName == "" {
					add(i, j, "tool request without tool name")
					continue
				}
				pendingByName[p.ToolName]++
				if p.CallID != "" {
					pendingByCall[p.CallID] = p.ToolName
				}
			case KindToolResponse:
				if p.ToolName == "" {
					add(i, j, "tool response without tool name")
					continue
				}
				if p.CallID != "" {
					if name, ok := pendingByCall[p.CallID]; ok {
						if name != p.ToolName {
							add(i, j, "tool response %q answers call %s issued for %q", p.ToolName, p.CallID, name)
						}
						delete(pendingByCall, p.CallID)
						pendingByName[name]--
						continue
					}
				}
				if pendingByName[p.ToolName] <= 0 {
					add(i, j, "tool response %q has no preceding request", p.ToolName)
					continue
				}
				pendingByName[p.ToolName]--
			}
		}
	}

	if len(violations) == 0 {
		return nil
	}
	return &InvariantError{Violations: violations}
}

func allowed(role Role, kind PartKind) bool {
	switch role {
	case RoleUser, RoleSystem:
		return kind == KindText
	case RoleModel:
		return kind == KindText || kind == KindToolRequest
	case RoleTool:
		return kind == KindToolRequest || kind == KindToolResponse
	}
	return false
}
