package tools

import (
	"errors"
	"fmt"
)

// ToolError codes.
const (
	CodeUnknownTool  = "unknown_tool"
	CodeNotAllowed   = "not_allowed"
	CodeInvalidInput = "invalid_input"
	CodeFailed       = "tool_failed"
	CodePanic        = "internal_error"
	CodeUnavailable  = "unavailable"
)

// ToolError is a failure reported back to the model as data.
type ToolError struct {
	Tool    string
	Code    string
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool %s: %s: %v", e.Tool, e.Message, e.Err)
	}
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Payload is the structured value stored in the tool response part.
func (e *ToolError) Payload() map[string]any {
	return map[string]any{
		"error": map[string]any{
			"code":    e.Code,
			"message": e.Message,
		},
	}
}

// AsToolError converts any handler error into a *ToolError for name.
func AsToolError(name string, err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		if te.Tool == "" {
			te.Tool = name
		}
		return te
	}
	return &ToolError{Tool: name, Code: CodeFailed, Message: err.Error(), Err: err}
}
