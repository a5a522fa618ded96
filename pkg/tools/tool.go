package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Handler runs a tool. Input is the decoded JSON the model produced; the
// returned value must be JSON-serializable.
type Handler func(ctx context.Context, input any) (any, error)

// Tool is a named, schema-described handler.
type Tool struct {
	Name         string
	Description  string
	InputSchema  json.RawMessage
	OutputSchema json.RawMessage
	Handler      Handler

	// Source names where the tool came from ("builtin", "mcp:<server>").
	Source string

	resolved *jsonschema.Resolved
}

// Validate checks the tool definition and compiles its input schema.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return errors.New("tool name is required")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}
	if len(t.InputSchema) == 0 {
		return nil
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
		return fmt.Errorf("tool %q: parsing input schema: %w", t.Name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("tool %q: resolving input schema: %w", t.Name, err)
	}
	t.resolved = resolved
	return nil
}

// CheckInput validates input against the compiled input schema. Tools
// without a schema accept anything.
func (t *Tool) CheckInput(input any) error {
	if t.resolved == nil {
		return nil
	}
	normalized, err := normalize(input)
	if err != nil {
		return err
	}
	return t.resolved.Validate(normalized)
}

// NewTool builds a Tool from a typed function. Schemas are inferred from
// In and Out, and the model's input is decoded into In before fn runs.
func NewTool[In, Out any](name, description string, fn func(context.Context, In) (Out, error)) (Tool, error) {
	inSchema, err := schemaFor[In]()
	if err != nil {
		return Tool{}, fmt.Errorf("tool %q: input schema: %w", name, err)
	}
	outSchema, err := schemaFor[Out]()
	if err != nil {
		return Tool{}, fmt.Errorf("tool %q: output schema: %w", name, err)
	}

	handler := func(ctx context.Context, input any) (any, error) {
		var in In
		if err := decodeInto(input, &in); err != nil {
			return nil, &ToolError{Tool: name, Code: CodeInvalidInput, Message: err.Error()}
		}
		return fn(ctx, in)
	}

	return Tool{
		Name:         name,
		Description:  description,
		InputSchema:  inSchema,
		OutputSchema: outSchema,
		Handler:      handler,
		Source:       "builtin",
	}, nil
}

func schemaFor[T any]() (json.RawMessage, error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// decodeInto converts a loosely typed JSON value into dst.
func decodeInto(input any, dst any) error {
	var data []byte
	switch v := input.(type) {
	case nil:
		data = []byte("{}")
	case json.RawMessage:
		data = v
	case string:
		// Some models send arguments as a JSON string.
		data = []byte(v)
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return err
		}
	}
	return json.Unmarshal(data, dst)
}

// normalize maps input onto the generic JSON value space the schema
// validator expects.
func normalize(input any) (any, error) {
	var out any
	if err := decodeInto(input, &out); err != nil {
		return nil, fmt.Errorf("input is not valid JSON: %w", err)
	}
	return out, nil
}

// Call is a model's request to invoke a tool.
type Call struct {
	// ID is the call identifier assigned by the model (may be empty).
	ID    string
	Name  string
	Input any
}

// Result is the outcome of a Call. Output is the payload for the tool
// response part; it carries an error object when IsError is set.
type Result struct {
	CallID  string
	Name    string
	Output  any
	IsError bool
}
