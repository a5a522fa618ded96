package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, KONTRAKT_CONFIG env, ./config.yaml, /etc/kontrakt/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. KONTRAKT_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/kontrakt/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("KONTRAKT_CONFIG"); envPath != "" {
		return envPath
	}
	for _, path := range []string{"config.yaml", "/etc/kontrakt/config.yaml"} {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
// Unknown keys are rejected so typos do not pass silently.
func loadYAMLFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides maps KONTRAKT_* environment variables onto cfg.
// Malformed numbers and durations are reported, not ignored.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	num("KONTRAKT_PORT", &cfg.Server.Port)

	str("KONTRAKT_BACKEND_URL", &cfg.Engine.BackendURL)
	str("KONTRAKT_MODEL", &cfg.Engine.Model)
	str("KONTRAKT_API_KEY", &cfg.Engine.APIKey)
	str("KONTRAKT_SYSTEM_PROMPT", &cfg.Engine.SystemPrompt)
	num("KONTRAKT_MAX_TOOL_ROUNDS", &cfg.Engine.MaxToolRounds)
	if v := os.Getenv("KONTRAKT_ALLOWED_TOOLS"); v != "" {
		cfg.Engine.AllowedTools = splitList(v)
	}

	str("KONTRAKT_SESSION_STORE", &cfg.Session.Store)
	dur("KONTRAKT_SESSION_TTL", &cfg.Session.TTL)
	str("KONTRAKT_POSTGRES_DSN", &cfg.Session.Postgres.DSN)
	str("KONTRAKT_REDIS_ADDR", &cfg.Session.Redis.Addr)
	str("KONTRAKT_REDIS_PASSWORD", &cfg.Session.Redis.Password)
	str("KONTRAKT_SQLITE_PATH", &cfg.Session.SQLite.Path)

	str("KONTRAKT_AUTH_TYPE", &cfg.Auth.Type)
	str("KONTRAKT_JWT_JWKS_URL", &cfg.Auth.JWT.JWKSURL)
	str("KONTRAKT_JWT_SECRET", &cfg.Auth.JWT.Secret)
	num("KONTRAKT_RATE_LIMIT_RPM", &cfg.Auth.RateLimit.RequestsPerMinute)

	// KONTRAKT_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("KONTRAKT_API_KEYS"); v != "" {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err != nil {
			errs = append(errs, fmt.Errorf("KONTRAKT_API_KEYS: %w", err))
		} else if len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	// KONTRAKT_MCP_SERVERS: JSON array of MCP server configs.
	if v := os.Getenv("KONTRAKT_MCP_SERVERS"); v != "" {
		var servers []MCPServerConfig
		if err := json.Unmarshal([]byte(v), &servers); err != nil {
			errs = append(errs, fmt.Errorf("KONTRAKT_MCP_SERVERS: %w", err))
		} else if len(servers) > 0 {
			cfg.MCP.Servers = servers
		}
	}

	str("KONTRAKT_CONTRACTS_SOURCE", &cfg.Contracts.Source)
	str("KONTRAKT_CONTRACTS_DSN", &cfg.Contracts.Postgres.DSN)

	str("KONTRAKT_LOG_FORMAT", &cfg.Logging.Format)

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. An explicit value wins over its file.
func resolveFileReferences(cfg *Config) error {
	type ref struct {
		path  string
		file  string
		value *string
	}
	refs := []ref{
		{"engine.api_key_file", cfg.Engine.APIKeyFile, &cfg.Engine.APIKey},
		{"engine.system_prompt_file", cfg.Engine.SystemPromptFile, &cfg.Engine.SystemPrompt},
		{"session.postgres.dsn_file", cfg.Session.Postgres.DSNFile, &cfg.Session.Postgres.DSN},
		{"session.redis.password_file", cfg.Session.Redis.PasswordFile, &cfg.Session.Redis.Password},
		{"auth.jwt.secret_file", cfg.Auth.JWT.SecretFile, &cfg.Auth.JWT.Secret},
		{"contracts.postgres.dsn_file", cfg.Contracts.Postgres.DSNFile, &cfg.Contracts.Postgres.DSN},
	}
	for i := range cfg.Auth.APIKeys {
		k := &cfg.Auth.APIKeys[i]
		refs = append(refs, ref{fmt.Sprintf("auth.api_keys[%d].key_file", i), k.KeyFile, &k.Key})
	}
	for i := range cfg.MCP.Servers {
		a := &cfg.MCP.Servers[i].Auth
		refs = append(refs,
			ref{fmt.Sprintf("mcp.servers[%d].auth.client_id_file", i), a.ClientIDFile, &a.ClientID},
			ref{fmt.Sprintf("mcp.servers[%d].auth.client_secret_file", i), a.ClientSecretFile, &a.ClientSecret},
		)
	}

	for _, r := range refs {
		if r.file == "" || *r.value != "" {
			continue
		}
		val, err := readSecretFile(r.file)
		if err != nil {
			return fmt.Errorf("%s: %w", r.path, err)
		}
		*r.value = val
	}

	if cfg.Contracts.SeedFile != "" {
		seed, err := LoadSeedFile(cfg.Contracts.SeedFile)
		if err != nil {
			return fmt.Errorf("contracts.seed_file: %w", err)
		}
		cfg.Contracts.Seed = append(cfg.Contracts.Seed, seed...)
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// LoadSeedFile reads a YAML list of contracts.
func LoadSeedFile(path string) ([]ContractSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var seed []ContractSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, err
	}
	return seed, nil
}
