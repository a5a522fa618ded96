package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/rhuss/kontrakt/pkg/tools"
	"github.com/rhuss/kontrakt/pkg/tools/registry"
)

var _ registry.Source = (*Source)(nil)

// Source exposes one MCP server's tools to the registry.
type Source struct {
	client *Client
}

// NewSource wraps a connected client.
func NewSource(client *Client) *Source {
	return &Source{client: client}
}

// Connect dials every configured server and returns one Source per
// server. On failure, already opened sessions are closed.
func Connect(ctx context.Context, cfg Config) ([]*Source, error) {
	var sources []*Source
	for _, sc := range cfg.Servers {
		c := NewClient(sc)
		if err := c.Connect(ctx); err != nil {
			var errs []error
			errs = append(errs, err)
			for _, s := range sources {
				errs = append(errs, s.Close())
			}
			return nil, errors.Join(errs...)
		}
		sources = append(sources, NewSource(c))
	}
	return sources, nil
}

// Name returns "mcp:<server>".
func (s *Source) Name() string { return "mcp:" + s.client.Name() }

// Tools lists the server's tools. Each call queries the server again.
func (s *Source) Tools(ctx context.Context) ([]tools.Tool, error) {
	defs, err := s.client.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]tools.Tool, 0, len(defs))
	for _, d := range defs {
		t, err := s.client.convertTool(d, s.Name())
		if err != nil {
			return nil, fmt.Errorf("converting tool %q from %q: %w", d.Name, s.client.Name(), err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Close ends the server session.
func (s *Source) Close() error { return s.client.Close() }
