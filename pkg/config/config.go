// Package config provides unified configuration for the kontrakt server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (KONTRAKT_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the kontrakt server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engine        EngineConfig        `yaml:"engine"`
	Session       SessionConfig       `yaml:"session"`
	Auth          AuthConfig          `yaml:"auth"`
	MCP           MCPConfig           `yaml:"mcp"`
	Contracts     ContractsConfig     `yaml:"contracts"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 120s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MiB
	MaxMessageSize  int           `yaml:"max_message_size"` // default: 32 KiB
}

// EngineConfig holds turn orchestration and model backend settings.
type EngineConfig struct {
	BackendURL string        `yaml:"backend_url"` // required
	APIKey     string        `yaml:"api_key"`
	APIKeyFile string        `yaml:"api_key_file"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"` // default: 60s

	SystemPrompt     string `yaml:"system_prompt"`
	SystemPromptFile string `yaml:"system_prompt_file"`
	FallbackAnswer   string `yaml:"fallback_answer"`
	PromptTemplate   string `yaml:"prompt_template"`

	MaxToolRounds int      `yaml:"max_tool_rounds"` // default: 5
	AllowedTools  []string `yaml:"allowed_tools"`   // empty allows all

	Temperature *float64 `yaml:"temperature"`
	MaxTokens   *int     `yaml:"max_tokens"`
	Choices     int      `yaml:"choices"` // default: 1
}

// SessionConfig selects and configures the transcript store.
type SessionConfig struct {
	TTL      time.Duration  `yaml:"ttl"`   // default: 10m
	Store    string         `yaml:"store"` // memory, postgres, redis or sqlite; default: memory
	Memory   MemoryConfig   `yaml:"memory"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// MemoryConfig holds in-memory store settings.
type MemoryConfig struct {
	MaxSize int `yaml:"max_size"` // default: 10000; 0 is unlimited
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`
	MaxConns       int32  `yaml:"max_conns"` // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	PasswordFile string        `yaml:"password_file"`
	DB           int           `yaml:"db"`
	Prefix       string        `yaml:"prefix"`
	Retention    time.Duration `yaml:"retention"` // default: 1h
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // default: ./data/kontrakt.db
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // none, apikey or jwt; default: none
	DevUser   string          `yaml:"dev_user"` // subject for type=none without header
	APIKeys   []APIKeyConfig  `yaml:"api_keys"`
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string   `yaml:"key" json:"key"`
	KeyFile     string   `yaml:"key_file" json:"key_file"`
	Subject     string   `yaml:"subject" json:"subject"`
	TenantID    string   `yaml:"tenant_id" json:"tenant_id"`
	ServiceTier string   `yaml:"service_tier" json:"service_tier"`
	Scopes      []string `yaml:"scopes" json:"scopes"`
}

// JWTConfig configures bearer JWT verification.
type JWTConfig struct {
	Issuer       string        `yaml:"issuer"`
	Audience     string        `yaml:"audience"`
	JWKSURL      string        `yaml:"jwks_url"`
	Secret       string        `yaml:"secret"`
	SecretFile   string        `yaml:"secret_file"`
	SubjectClaim string        `yaml:"subject_claim"`
	TenantClaim  string        `yaml:"tenant_claim"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// RateLimitConfig sets per-tier request budgets. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int            `yaml:"requests_per_minute"`
	Tiers             map[string]int `yaml:"tiers"`
}

// MCPConfig holds MCP (Model Context Protocol) server settings.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes a single MCP server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name" json:"name"`
	Transport string            `yaml:"transport" json:"transport"` // sse or streamable-http
	URL       string            `yaml:"url" json:"url"`
	Headers   map[string]string `yaml:"headers" json:"headers"`
	Auth      MCPAuthConfig     `yaml:"auth" json:"auth"`
}

// MCPAuthConfig configures OAuth client credentials for an MCP server.
type MCPAuthConfig struct {
	Type             string   `yaml:"type" json:"type"` // "" or oauth_client_credentials
	TokenURL         string   `yaml:"token_url" json:"token_url"`
	ClientID         string   `yaml:"client_id" json:"client_id"`
	ClientIDFile     string   `yaml:"client_id_file" json:"client_id_file"`
	ClientSecret     string   `yaml:"client_secret" json:"client_secret"`
	ClientSecretFile string   `yaml:"client_secret_file" json:"client_secret_file"`
	Scopes           []string `yaml:"scopes" json:"scopes"`
}

// ContractsConfig configures the built-in contract lookup tool.
type ContractsConfig struct {
	Source   string         `yaml:"source"` // memory, postgres or none; default: memory
	SeedFile string         `yaml:"seed_file"`
	Seed     []ContractSeed `yaml:"seed"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// ContractSeed is a contract loaded into the lookup at startup.
type ContractSeed struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Counterparty string `yaml:"counterparty"`
	Type         string `yaml:"type"`
	Status       string `yaml:"status"`
	StartDate    string `yaml:"start_date"` // YYYY-MM-DD
	EndDate      string `yaml:"end_date"`
	Summary      string `yaml:"summary"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig holds log settings. KONTRAKT_LOG_LEVEL and KONTRAKT_DEBUG
// take precedence.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: INFO
	Format string `yaml:"format"` // text or json; default: text
	Debug  string `yaml:"debug"`  // comma separated categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     1 << 20,
			MaxMessageSize:  32 * 1024,
		},
		Engine: EngineConfig{
			Timeout:       60 * time.Second,
			MaxToolRounds: 5,
			Choices:       1,
		},
		Session: SessionConfig{
			TTL:      10 * time.Minute,
			Store:    "memory",
			Memory:   MemoryConfig{MaxSize: 10000},
			Postgres: PostgresConfig{MaxConns: 10},
			Redis:    RedisConfig{Prefix: "kontrakt:session:", Retention: time.Hour},
			SQLite:   SQLiteConfig{Path: "./data/kontrakt.db"},
		},
		Auth: AuthConfig{
			Type: "none",
		},
		Contracts: ContractsConfig{
			Source:   "memory",
			Postgres: PostgresConfig{MaxConns: 4},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
