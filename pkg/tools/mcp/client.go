package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/kontrakt/pkg/debug"
	"github.com/rhuss/kontrakt/pkg/tools"
)

// Client wraps an MCP SDK client session for a single server.
type Client struct {
	cfg     ServerConfig
	client  *mcp.Client
	session *mcp.ClientSession
}

// NewClient creates a Client for cfg. Call Connect before use.
func NewClient(cfg ServerConfig) *Client {
	return &Client{cfg: cfg}
}

// Name returns the configured server name.
func (c *Client) Name() string { return c.cfg.Name }

// Connect performs the MCP handshake over the configured transport.
func (c *Client) Connect(ctx context.Context) error {
	return c.ConnectWithTransport(ctx, nil)
}

// ConnectWithTransport performs the handshake over transport, or over a
// transport built from the configuration when transport is nil.
func (c *Client) ConnectWithTransport(ctx context.Context, transport mcp.Transport) error {
	c.client = mcp.NewClient(
		&mcp.Implementation{Name: "kontrakt", Version: "1.0.0"},
		&mcp.ClientOptions{Capabilities: &mcp.ClientCapabilities{}},
	)

	if transport == nil {
		t, err := c.createTransport(ctx)
		if err != nil {
			return fmt.Errorf("creating transport for %q: %w", c.cfg.Name, err)
		}
		transport = t
	}

	session, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return fmt.Errorf("connecting to MCP server %q: %w", c.cfg.Name, err)
	}
	c.session = session
	debug.Log("mcp", "connected", "server", c.cfg.Name, "transport", c.cfg.Transport)
	return nil
}

func (c *Client) createTransport(ctx context.Context) (mcp.Transport, error) {
	httpClient, err := buildHTTPClient(ctx, c.cfg)
	if err != nil {
		return nil, err
	}

	switch c.cfg.Transport {
	case "sse":
		t := &mcp.SSEClientTransport{Endpoint: c.cfg.URL}
		if httpClient != nil {
			t.HTTPClient = httpClient
		}
		return t, nil
	case "streamable-http", "":
		t := &mcp.StreamableClientTransport{Endpoint: c.cfg.URL}
		if httpClient != nil {
			t.HTTPClient = httpClient
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport type %q", c.cfg.Transport)
	}
}

// ListTools returns the server's tool catalogue.
func (c *Client) ListTools(ctx context.Context) ([]*mcp.Tool, error) {
	if c.session == nil {
		return nil, fmt.Errorf("MCP client %q not connected", c.cfg.Name)
	}
	var out []*mcp.Tool
	for tool, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing tools from %q: %w", c.cfg.Name, err)
		}
		out = append(out, tool)
	}
	return out, nil
}

// CallTool invokes name on the server. Transport failures and results
// flagged IsError come back as *tools.ToolError.
func (c *Client) CallTool(ctx context.Context, name string, input any) (any, error) {
	if c.session == nil {
		return nil, &tools.ToolError{Tool: name, Code: tools.CodeUnavailable, Message: fmt.Sprintf("MCP server %q not connected", c.cfg.Name)}
	}

	args, err := arguments(input)
	if err != nil {
		return nil, &tools.ToolError{Tool: name, Code: tools.CodeInvalidInput, Message: err.Error()}
	}

	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &tools.ToolError{Tool: name, Code: tools.CodeUnavailable, Message: "MCP call failed", Err: err}
	}
	return convertResult(name, res)
}

// Close ends the MCP session.
func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

// arguments maps tool input onto the object MCP expects.
func arguments(input any) (map[string]any, error) {
	var data []byte
	switch v := input.(type) {
	case nil:
		return map[string]any{}, nil
	case json.RawMessage:
		data = v
	case string:
		data = []byte(v)
	case map[string]any:
		return v, nil
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, err
		}
	}
	var args map[string]any
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// convertResult prefers structured content, then text content parsed as
// JSON, then the raw text wrapped in {"text": ...}.
func convertResult(name string, res *mcp.CallToolResult) (any, error) {
	var texts []string
	for _, content := range res.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	text := strings.Join(texts, "\n")

	if res.IsError {
		return nil, &tools.ToolError{Tool: name, Code: tools.CodeFailed, Message: text}
	}
	if res.StructuredContent != nil {
		return res.StructuredContent, nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed, nil
	}
	return map[string]any{"text": text}, nil
}

// convertTool maps an MCP tool definition onto a registry tool that
// forwards calls to c.
func (c *Client) convertTool(t *mcp.Tool, source string) (tools.Tool, error) {
	var schema json.RawMessage
	if t.InputSchema != nil {
		data, err := json.Marshal(t.InputSchema)
		if err != nil {
			return tools.Tool{}, fmt.Errorf("marshaling input schema: %w", err)
		}
		schema = data
	}
	name := t.Name
	return tools.Tool{
		Name:        name,
		Description: t.Description,
		InputSchema: schema,
		Source:      source,
		Handler: func(ctx context.Context, input any) (any, error) {
			return c.CallTool(ctx, name, input)
		},
	}, nil
}
