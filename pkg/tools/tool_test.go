package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type lookupInput struct {
	ContractName string `json:"contractName"`
}

type lookupOutput struct {
	Found bool   `json:"found"`
	Name  string `json:"name,omitempty"`
}

func TestNewToolDecodesInput(t *testing.T) {
	tool, err := NewTool("lookup", "Look up a contract",
		func(_ context.Context, in lookupInput) (lookupOutput, error) {
			return lookupOutput{Found: in.ContractName == "Acme", Name: in.ContractName}, nil
		})
	if err != nil {
		t.Fatalf("NewTool: %v", err)
	}
	if err := tool.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	inputs := []any{
		map[string]any{"contractName": "Acme"},
		json.RawMessage(`{"contractName":"Acme"}`),
		`{"contractName":"Acme"}`,
	}
	for _, in := range inputs {
		out, err := tool.Handler(context.Background(), in)
		if err != nil {
			t.Fatalf("handler(%v): %v", in, err)
		}
		if got := out.(lookupOutput); !got.Found || got.Name != "Acme" {
			t.Errorf("handler(%v) = %+v", in, got)
		}
	}
}

func TestNewToolSchemas(t *testing.T) {
	tool, err := NewTool("lookup", "", func(_ context.Context, in lookupInput) (lookupOutput, error) {
		return lookupOutput{}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var schema map[string]any
	if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
		t.Fatalf("input schema not JSON: %v", err)
	}
	if schema["type"] != "object" {
		t.Errorf("input schema type = %v", schema["type"])
	}
	props, _ := schema["properties"].(map[string]any)
	if _, ok := props["contractName"]; !ok {
		t.Errorf("input schema lacks contractName: %s", tool.InputSchema)
	}
	if len(tool.OutputSchema) == 0 {
		t.Error("output schema missing")
	}
}

func TestNewToolInvalidInput(t *testing.T) {
	tool, _ := NewTool("lookup", "", func(_ context.Context, in lookupInput) (lookupOutput, error) {
		return lookupOutput{}, nil
	})

	_, err := tool.Handler(context.Background(), "not json")
	var te *ToolError
	if !errors.As(err, &te) || te.Code != CodeInvalidInput {
		t.Fatalf("expected invalid_input ToolError, got %v", err)
	}
}

func TestCheckInput(t *testing.T) {
	tool := Tool{
		Name:        "lookup",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"contractName":{"type":"string"}},"required":["contractName"]}`),
		Handler:     func(context.Context, any) (any, error) { return nil, nil },
	}
	if err := tool.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if err := tool.CheckInput(map[string]any{"contractName": "Acme"}); err != nil {
		t.Errorf("valid input rejected: %v", err)
	}
	if err := tool.CheckInput(map[string]any{}); err == nil {
		t.Error("missing required property accepted")
	}
	if err := tool.CheckInput(map[string]any{"contractName": 7}); err == nil {
		t.Error("wrong property type accepted")
	}
}

func TestToolValidate(t *testing.T) {
	noop := func(context.Context, any) (any, error) { return nil, nil }
	tests := []struct {
		name    string
		tool    Tool
		wantErr string
	}{
		{"missing name", Tool{Handler: noop}, "name is required"},
		{"missing handler", Tool{Name: "x"}, "no handler"},
		{"bad schema", Tool{Name: "x", Handler: noop, InputSchema: json.RawMessage(`{`)}, "parsing input schema"},
		{"no schema", Tool{Name: "x", Handler: noop}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tool.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestAsToolError(t *testing.T) {
	plain := errors.New("database down")
	te := AsToolError("lookup", plain)
	if te.Code != CodeFailed || te.Tool != "lookup" || !errors.Is(te, plain) {
		t.Errorf("wrapped = %+v", te)
	}

	orig := &ToolError{Code: CodeUnavailable, Message: "later"}
	if got := AsToolError("lookup", orig); got != orig || got.Tool != "lookup" {
		t.Errorf("existing ToolError not reused: %+v", got)
	}

	payload := te.Payload()["error"].(map[string]any)
	if payload["code"] != CodeFailed || payload["message"] != "database down" {
		t.Errorf("payload = %v", payload)
	}
}
