package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/kontrakt/pkg/tools/builtins/contracts"
)

// newServer exposes getContractDetailsByName backed by lookup.
func newServer(lookup contracts.Lookup, logger *slog.Logger) *mcp.Server {
	src := contracts.New(lookup, logger)

	server := mcp.NewServer(&mcp.Implementation{Name: "kontrakt-contracts", Version: "v1.0.0"}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        contracts.ToolName,
		Description: contracts.ToolDescription,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in contracts.Input) (*mcp.CallToolResult, contracts.Output, error) {
		out, err := src.Find(ctx, in)
		if err != nil {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
			}, contracts.Output{}, nil
		}
		return nil, out, nil
	})
	return server
}

func newMux(lookup contracts.Lookup, logger *slog.Logger) *http.ServeMux {
	server := newServer(lookup, logger)
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return mux
}
