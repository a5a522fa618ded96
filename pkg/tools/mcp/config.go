package mcp

// Config holds the configuration for all MCP server connections.
type Config struct {
	Servers []ServerConfig
}

// ServerConfig describes a single MCP server connection.
type ServerConfig struct {
	// Name is the logical name for this server, used in logs and as the
	// tool source label ("mcp:<name>").
	Name string `yaml:"name" json:"name"`

	// Transport is "sse" or "streamable-http" (default).
	Transport string `yaml:"transport" json:"transport"`

	// URL is the MCP server endpoint URL.
	URL string `yaml:"url" json:"url"`

	// Headers are added to every request, typically API keys.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// Auth configures dynamic credentials.
	Auth AuthConfig `yaml:"auth,omitempty" json:"auth,omitempty"`
}

// AuthConfig selects how the client authenticates to the server.
type AuthConfig struct {
	// Type is "" (none) or "oauth_client_credentials".
	Type         string   `yaml:"type" json:"type"`
	TokenURL     string   `yaml:"token_url" json:"token_url"`
	ClientID     string   `yaml:"client_id" json:"client_id"`
	ClientSecret string   `yaml:"client_secret" json:"-"`
	Scopes       []string `yaml:"scopes" json:"scopes"`
}
