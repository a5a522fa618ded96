// Package mcp connects the assistant to external MCP (Model Context
// Protocol) servers. Each configured server becomes a registry.Source:
// its tools are discovered at startup and registered under their MCP
// names, and invoking one of them forwards the call to the server.
//
// The package wraps the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk). Servers are reached over
// streamable HTTP (default) or SSE, with optional static headers and
// OAuth 2.0 client credentials.
package mcp
