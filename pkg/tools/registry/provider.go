// Package registry owns the assistant's tools. Tools are registered one by
// one or contributed in bulk by a Source (the built-in contract tools, a
// connected MCP server). The model client never calls handlers directly:
// it goes through Invoke or Dispatch, which look the tool up, validate the
// input, recover from panics, record metrics and turn failures into
// ToolError payloads.
package registry

import (
	"context"

	"github.com/rhuss/kontrakt/pkg/tools"
)

// Source contributes a set of tools to the registry.
type Source interface {
	// Name returns a unique identifier for this source (e.g., "contracts").
	Name() string

	// Tools returns the tools this source contributes.
	Tools(ctx context.Context) ([]tools.Tool, error)

	// Close releases any resources held by the source.
	Close() error
}
