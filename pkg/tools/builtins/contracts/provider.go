package contracts

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/rhuss/kontrakt/pkg/tools"
	"github.com/rhuss/kontrakt/pkg/tools/registry"
)

const (
	// ToolName is the name the model uses to call the lookup.
	ToolName = "getContractDetailsByName"

	// ToolDescription tells the model when to call the lookup.
	ToolDescription = "Look up a contract by its exact name and return its parties, status, dates and summary."
)

// Input is the tool's argument object.
type Input struct {
	ContractName string `json:"contractName" jsonschema:"the name of the contract, for example Acme NDA"`
}

// Output is the tool's result. Found is false for unknown names and for
// lookup failures.
type Output struct {
	Found    bool      `json:"found"`
	Contract *Contract `json:"contract,omitempty"`
	Details  string    `json:"details,omitempty"`
}

// Source contributes getContractDetailsByName to the registry.
type Source struct {
	lookup Lookup
	logger *slog.Logger
}

var _ registry.Source = (*Source)(nil)

// New creates a Source over lookup. A nil logger uses slog.Default().
func New(lookup Lookup, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{lookup: lookup, logger: logger}
}

// Name returns the source identifier.
func (s *Source) Name() string { return "contracts" }

// Tools returns the lookup tool.
func (s *Source) Tools(ctx context.Context) ([]tools.Tool, error) {
	t, err := tools.NewTool(ToolName, ToolDescription, s.Find)
	if err != nil {
		return nil, err
	}
	return []tools.Tool{t}, nil
}

// Close is a no-op; the lookup's owner closes it.
func (s *Source) Close() error { return nil }

// Find runs the lookup for in. Unknown names and lookup failures yield
// Found false; only an empty name or a done context is an error.
func (s *Source) Find(ctx context.Context, in Input) (Output, error) {
	name := strings.TrimSpace(in.ContractName)
	if name == "" {
		return Output{}, &tools.ToolError{Tool: ToolName, Code: tools.CodeInvalidInput, Message: "contractName must not be empty"}
	}

	c, err := s.lookup.FindByName(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		return Output{Found: false}, nil
	case err != nil:
		if ctx.Err() != nil {
			return Output{}, ctx.Err()
		}
		s.logger.Warn("contract lookup failed", "contract", name, "error", err)
		return Output{Found: false}, nil
	}
	return Output{Found: true, Contract: c, Details: c.Details()}, nil
}
