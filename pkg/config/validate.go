package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Server.MaxBodySize <= 0 {
		add("server.max_body_size must be > 0")
	}

	if c.Engine.BackendURL == "" {
		add("engine.backend_url is required")
	} else if u, err := url.Parse(c.Engine.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("engine.backend_url must be an absolute URL, got %q", c.Engine.BackendURL)
	}
	if c.Engine.MaxToolRounds < 0 {
		add("engine.max_tool_rounds must be >= 0, got %d", c.Engine.MaxToolRounds)
	}
	if c.Engine.Choices < 1 {
		add("engine.choices must be >= 1, got %d", c.Engine.Choices)
	}

	if c.Session.TTL < time.Second {
		add("session.ttl must be at least 1s, got %v", c.Session.TTL)
	}
	switch c.Session.Store {
	case "memory":
	case "postgres":
		if c.Session.Postgres.DSN == "" {
			add("session.postgres.dsn or session.postgres.dsn_file is required when session.store is \"postgres\"")
		}
	case "redis":
		if c.Session.Redis.Addr == "" {
			add("session.redis.addr is required when session.store is \"redis\"")
		}
		if r := c.Session.Redis.Retention; r > 0 && r < c.Session.TTL {
			add("session.redis.retention (%v) must not be shorter than session.ttl (%v)", r, c.Session.TTL)
		}
	case "sqlite":
		if c.Session.SQLite.Path == "" {
			add("session.sqlite.path is required when session.store is \"sqlite\"")
		}
	default:
		add("session.store must be \"memory\", \"postgres\", \"redis\" or \"sqlite\", got %q", c.Session.Store)
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			add("auth.api_keys must not be empty when auth.type is \"apikey\"")
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" {
				add("auth.api_keys[%d]: key or key_file is required", i)
			}
			if k.Subject == "" {
				add("auth.api_keys[%d].subject is required", i)
			}
		}
	case "jwt":
		if c.Auth.JWT.JWKSURL == "" && c.Auth.JWT.Secret == "" {
			add("auth.jwt.jwks_url or auth.jwt.secret is required when auth.type is \"jwt\"")
		}
	default:
		add("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type)
	}

	for i, s := range c.MCP.Servers {
		if s.Name == "" {
			add("mcp.servers[%d].name is required", i)
		}
		if s.URL == "" {
			add("mcp.servers[%d].url is required", i)
		}
		switch s.Transport {
		case "", "sse", "streamable-http":
		default:
			add("mcp.servers[%d].transport must be \"sse\" or \"streamable-http\", got %q", i, s.Transport)
		}
		switch s.Auth.Type {
		case "":
		case "oauth_client_credentials":
			if s.Auth.TokenURL == "" || s.Auth.ClientID == "" {
				add("mcp.servers[%d].auth: token_url and client_id are required", i)
			}
		default:
			add("mcp.servers[%d].auth.type %q is not supported", i, s.Auth.Type)
		}
	}

	switch c.Contracts.Source {
	case "memory", "none":
	case "postgres":
		if c.Contracts.Postgres.DSN == "" {
			add("contracts.postgres.dsn is required when contracts.source is \"postgres\"")
		}
	default:
		add("contracts.source must be \"memory\", \"postgres\" or \"none\", got %q", c.Contracts.Source)
	}
	for i, s := range c.Contracts.Seed {
		if s.Name == "" {
			add("contracts.seed[%d].name is required", i)
		}
		for _, d := range []struct{ field, value string }{{"start_date", s.StartDate}, {"end_date", s.EndDate}} {
			if d.value == "" {
				continue
			}
			if _, err := time.Parse(time.DateOnly, d.value); err != nil {
				add("contracts.seed[%d].%s must be YYYY-MM-DD, got %q", i, d.field, d.value)
			}
		}
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		add("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	return errors.Join(errs...)
}
