package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhuss/kontrakt/pkg/api"
	"github.com/rhuss/kontrakt/pkg/transport"
)

// Server wraps an Adapter in an http.Server with graceful shutdown.
type Server struct {
	adapter    *Adapter
	httpServer *http.Server
	config     ServerConfig
	logger     *slog.Logger
}

// ServerConfig holds server-level configuration.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int64
	MaxMessageSize  int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MetricsPath     string
	Logger          *slog.Logger

	httpMiddleware []func(http.Handler) http.Handler
	checks         map[string]transport.HealthChecker
}

// DefaultServerConfig returns sensible defaults for the server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MaxBodySize:     1 << 20,
		MaxMessageSize:  api.DefaultValidationConfig().MaxMessageSize,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MetricsPath:     "/metrics",
	}
}

// ServerOption configures the server.
type ServerOption func(*ServerConfig)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(c *ServerConfig) { c.Addr = addr }
}

// WithMaxBodySize sets the maximum request body size.
func WithMaxBodySize(n int64) ServerOption {
	return func(c *ServerConfig) { c.MaxBodySize = n }
}

// WithMaxMessageSize caps the byte length of a turn's message.
func WithMaxMessageSize(n int) ServerOption {
	return func(c *ServerConfig) { c.MaxMessageSize = n }
}

// WithTimeouts sets the read and write timeouts of the http.Server. A turn
// includes model calls, so the write timeout should leave room for them.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(c *ServerConfig) {
		c.ReadTimeout = read
		c.WriteTimeout = write
	}
}

// WithShutdownTimeout sets the graceful shutdown timeout.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(c *ServerConfig) { c.ShutdownTimeout = d }
}

// WithMetricsPath sets where Prometheus metrics are served; "" disables.
func WithMetricsPath(p string) ServerOption {
	return func(c *ServerConfig) { c.MetricsPath = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(c *ServerConfig) { c.Logger = l }
}

// WithHTTPMiddleware adds HTTP middleware around the routes, typically
// auth.Middleware.
func WithHTTPMiddleware(mw func(http.Handler) http.Handler) ServerOption {
	return func(c *ServerConfig) { c.httpMiddleware = append(c.httpMiddleware, mw) }
}

// WithHealthCheck registers a readiness check.
func WithHealthCheck(name string, hc transport.HealthChecker) ServerOption {
	return func(c *ServerConfig) {
		if c.checks == nil {
			c.checks = make(map[string]transport.HealthChecker)
		}
		c.checks[name] = hc
	}
}

// NewServer builds a server for the given handlers. The turn handler gets
// the Recovery, RequestID and Logging middleware.
func NewServer(turns transport.TurnHandler, history transport.HistoryHandler, opts ...ServerOption) *Server {
	cfg := DefaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	adapterCfg := DefaultConfig()
	adapterCfg.MaxBodySize = cfg.MaxBodySize
	adapterCfg.MetricsPath = cfg.MetricsPath
	adapterCfg.Validation.MaxMessageSize = cfg.MaxMessageSize

	adapter := NewAdapter(turns, history, adapterCfg, logger,
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(logger),
	)
	for name, hc := range cfg.checks {
		adapter.AddHealthCheck(name, hc)
	}

	return &Server{
		adapter: adapter,
		config:  cfg,
		logger:  logger,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           adapter.Handler(cfg.httpMiddleware...),
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
	}
}

// Handler exposes the full handler chain, for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// ListenAndServe serves until SIGINT or SIGTERM, then shuts down
// gracefully.
func (s *Server) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.ServeOn(ctx, ln)
}

// ServeOn serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) ServeOn(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}
	return s.shutdown()
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down gracefully", slog.Duration("timeout", s.config.ShutdownTimeout))
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// Shutdown gracefully shuts down the server with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
