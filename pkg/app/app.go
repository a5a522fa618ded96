// Package app assembles a running assistant from a loaded configuration.
// It is shared by the server and the admin CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/kontrakt/pkg/auth"
	"github.com/rhuss/kontrakt/pkg/auth/apikey"
	"github.com/rhuss/kontrakt/pkg/auth/jwt"
	"github.com/rhuss/kontrakt/pkg/auth/noop"
	"github.com/rhuss/kontrakt/pkg/config"
	"github.com/rhuss/kontrakt/pkg/engine"
	"github.com/rhuss/kontrakt/pkg/model/openaicompat"
	"github.com/rhuss/kontrakt/pkg/session"
	"github.com/rhuss/kontrakt/pkg/session/memory"
	"github.com/rhuss/kontrakt/pkg/session/postgres"
	"github.com/rhuss/kontrakt/pkg/session/redis"
	"github.com/rhuss/kontrakt/pkg/session/sqlite"
	"github.com/rhuss/kontrakt/pkg/tools/builtins/contracts"
	"github.com/rhuss/kontrakt/pkg/tools/mcp"
	"github.com/rhuss/kontrakt/pkg/tools/registry"
)

// App holds the wired components. Close releases them in reverse order of
// creation.
type App struct {
	Config   *config.Config
	Store    *session.Store
	Registry *registry.Registry
	Model    *openaicompat.Model
	Engine   *engine.Engine

	closers []func() error
	logger  *slog.Logger
}

// Build opens the session store, registers the tool sources, and creates
// the model and the engine. On failure everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Store, err = OpenStore(ctx, cfg.Session, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Store.Close)

	a.Registry = registry.New(registry.WithLogger(logger))
	a.closers = append(a.closers, a.Registry.Close)
	if err := a.registerTools(ctx); err != nil {
		return nil, err
	}

	e := cfg.Engine
	a.Model = openaicompat.New(openaicompat.Config{
		BaseURL:       e.BackendURL,
		APIKey:        e.APIKey,
		Model:         e.Model,
		Timeout:       e.Timeout,
		MaxToolRounds: e.MaxToolRounds,
		AllowedTools:  e.AllowedTools,
		Temperature:   e.Temperature,
		MaxTokens:     e.MaxTokens,
		Choices:       e.Choices,
	}, a.Registry, logger)
	a.closers = append(a.closers, a.Model.Client().Close)

	a.Engine, err = engine.New(a.Store, a.Model, engine.Config{
		SystemPrompt:   e.SystemPrompt,
		FallbackAnswer: e.FallbackAnswer,
		PromptTemplate: e.PromptTemplate,
	}, engine.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}

	return a, nil
}

// Close releases every component. It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenStore creates the configured session backend and wraps it in a Store.
func OpenStore(ctx context.Context, cfg config.SessionConfig, logger *slog.Logger) (*session.Store, error) {
	var (
		backend session.Backend
		err     error
	)
	switch cfg.Store {
	case "memory", "":
		backend = memory.New(cfg.Memory.MaxSize)
	case "postgres":
		backend, err = postgres.New(ctx, postgres.Config{
			DSN:            cfg.Postgres.DSN,
			MaxConns:       cfg.Postgres.MaxConns,
			MigrateOnStart: cfg.Postgres.MigrateOnStart,
		})
	case "redis":
		backend, err = redis.New(ctx, redis.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Prefix:    cfg.Redis.Prefix,
			Retention: cfg.Redis.Retention,
		})
	case "sqlite":
		backend, err = sqlite.New(ctx, cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s session store: %w", cfg.Store, err)
	}

	logger.Info("session store ready", "backend", backend.Name(), "ttl", cfg.TTL)
	return session.NewStore(backend, session.WithTTL(cfg.TTL), session.WithLogger(logger)), nil
}

func (a *App) registerTools(ctx context.Context) error {
	lookup, err := a.contractLookup(ctx)
	if err != nil {
		return err
	}
	if lookup != nil {
		if err := a.Registry.RegisterSource(ctx, contracts.New(lookup, a.logger)); err != nil {
			return err
		}
	}

	if len(a.Config.MCP.Servers) == 0 {
		return nil
	}
	sources, err := mcp.Connect(ctx, mcpConfig(a.Config.MCP))
	if err != nil {
		return fmt.Errorf("connecting MCP servers: %w", err)
	}
	for i, src := range sources {
		if err := a.Registry.RegisterSource(ctx, src); err != nil {
			// Registered sources are closed with the registry.
			for _, rest := range sources[i:] {
				rest.Close()
			}
			return err
		}
	}
	return nil
}

func (a *App) contractLookup(ctx context.Context) (contracts.Lookup, error) {
	cc := a.Config.Contracts
	switch cc.Source {
	case "none":
		return nil, nil
	case "postgres":
		pcfg, err := pgxpool.ParseConfig(cc.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("parsing contracts DSN: %w", err)
		}
		if cc.Postgres.MaxConns > 0 {
			pcfg.MaxConns = cc.Postgres.MaxConns
		}
		pool, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return nil, fmt.Errorf("connecting contracts database: %w", err)
		}
		lookup := contracts.NewPostgresLookup(pool)
		a.closers = append(a.closers, func() error { lookup.Close(); return nil })
		if cc.Postgres.MigrateOnStart {
			if err := lookup.EnsureSchema(ctx); err != nil {
				return nil, err
			}
		}
		for _, s := range cc.Seed {
			if err := lookup.Put(ctx, ContractFromSeed(s)); err != nil {
				return nil, fmt.Errorf("seeding contracts: %w", err)
			}
		}
		return lookup, nil
	default:
		seed := make([]contracts.Contract, 0, len(cc.Seed))
		for _, s := range cc.Seed {
			seed = append(seed, ContractFromSeed(s))
		}
		return contracts.NewMemoryLookup(seed...), nil
	}
}

// ContractFromSeed converts a configured seed entry.
func ContractFromSeed(s config.ContractSeed) contracts.Contract {
	return contracts.Contract{
		ID:           s.ID,
		Name:         s.Name,
		Counterparty: s.Counterparty,
		Type:         s.Type,
		Status:       s.Status,
		StartDate:    s.StartDate,
		EndDate:      s.EndDate,
		Summary:      s.Summary,
	}
}

func mcpConfig(c config.MCPConfig) mcp.Config {
	out := mcp.Config{Servers: make([]mcp.ServerConfig, 0, len(c.Servers))}
	for _, s := range c.Servers {
		out.Servers = append(out.Servers, mcp.ServerConfig{
			Name:      s.Name,
			Transport: s.Transport,
			URL:       s.URL,
			Headers:   s.Headers,
			Auth: mcp.AuthConfig{
				Type:         s.Auth.Type,
				TokenURL:     s.Auth.TokenURL,
				ClientID:     s.Auth.ClientID,
				ClientSecret: s.Auth.ClientSecret,
				Scopes:       s.Auth.Scopes,
			},
		})
	}
	return out
}

// AuthMiddleware builds the authentication and rate limiting middleware
// for cfg.
func AuthMiddleware(cfg config.AuthConfig, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	chain := &auth.Chain{Default: auth.No}

	switch cfg.Type {
	case "none", "":
		chain.Authenticators = []auth.Authenticator{&noop.Authenticator{DefaultUser: cfg.DevUser}}
	case "apikey":
		keys := make([]apikey.Key, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			keys = append(keys, apikey.Key{
				Key: k.Key,
				Identity: auth.Identity{
					Subject:     k.Subject,
					Tenant:      k.TenantID,
					ServiceTier: k.ServiceTier,
					Scopes:      k.Scopes,
				},
			})
		}
		authn := apikey.New(keys)
		if authn.Len() == 0 {
			return nil, errors.New("no usable API keys configured")
		}
		chain.Authenticators = []auth.Authenticator{authn}
	case "jwt":
		authn, err := jwt.New(jwt.Config{
			Issuer:       cfg.JWT.Issuer,
			Audience:     cfg.JWT.Audience,
			JWKSURL:      cfg.JWT.JWKSURL,
			Secret:       cfg.JWT.Secret,
			SubjectClaim: cfg.JWT.SubjectClaim,
			TenantClaim:  cfg.JWT.TenantClaim,
			CacheTTL:     cfg.JWT.CacheTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("creating JWT authenticator: %w", err)
		}
		chain.Authenticators = []auth.Authenticator{authn}
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}

	var limiter auth.RateLimiter
	if cfg.RateLimit.RequestsPerMinute > 0 || len(cfg.RateLimit.Tiers) > 0 {
		tiers := make(map[string]auth.TierLimit, len(cfg.RateLimit.Tiers))
		for name, rpm := range cfg.RateLimit.Tiers {
			tiers[name] = auth.TierLimit{RequestsPerMinute: rpm}
		}
		limiter = auth.NewLimiter(tiers, auth.TierLimit{RequestsPerMinute: cfg.RateLimit.RequestsPerMinute})
	}

	logger.Info("authentication configured", "type", cfg.Type, "rate_limited", limiter != nil)
	return auth.Middleware(chain, limiter, auth.DefaultBypassPaths, logger), nil
}
