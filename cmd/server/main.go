// Command server runs the kontrakt assistant.
//
// Configuration is read from a YAML file (see -config, KONTRAKT_CONFIG,
// ./config.yaml, /etc/kontrakt/config.yaml) with KONTRAKT_* environment
// overrides. The only required setting is the Chat Completions backend:
//
//	KONTRAKT_BACKEND_URL - Chat Completions backend URL
//	KONTRAKT_PORT        - Listen port (default: 8080)
//	KONTRAKT_SESSION_STORE - memory, postgres, redis or sqlite (default: memory)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/rhuss/kontrakt/pkg/app"
	"github.com/rhuss/kontrakt/pkg/config"
	"github.com/rhuss/kontrakt/pkg/debug"
	"github.com/rhuss/kontrakt/pkg/transport"
	transporthttp "github.com/rhuss/kontrakt/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to the config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing components", "error", err)
		}
	}()

	authMW, err := app.AuthMiddleware(cfg.Auth, logger)
	if err != nil {
		return err
	}

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}

	srv := transporthttp.NewServer(a.Engine, a.Engine,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithMaxMessageSize(cfg.Server.MaxMessageSize),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithMetricsPath(metricsPath),
		transporthttp.WithLogger(logger),
		transporthttp.WithHTTPMiddleware(authMW),
		transporthttp.WithHealthCheck("session_store", a.Store),
		transporthttp.WithHealthCheck("model_backend", transport.HealthCheckFunc(a.Model.Client().HealthCheck)),
	)

	logger.Info("kontrakt starting",
		"port", cfg.Server.Port,
		"backend", cfg.Engine.BackendURL,
		"model", cfg.Engine.Model,
		"session_store", a.Store.Backend(),
		"tools", len(a.Registry.Tools()),
		"debug", debug.Categories(),
	)
	return srv.ListenAndServe()
}
