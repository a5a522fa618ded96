package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/kontrakt/pkg/api"
	"github.com/rhuss/kontrakt/pkg/auth"
	"github.com/rhuss/kontrakt/pkg/observability"
	"github.com/rhuss/kontrakt/pkg/transport"
)

// Adapter serves the assistant API over HTTP.
type Adapter struct {
	turns   transport.TurnHandler
	history transport.HistoryHandler
	checks  map[string]transport.HealthChecker
	mux     *http.ServeMux
	config  Config
	logger  *slog.Logger
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
	Validation  api.ValidationConfig

	// MetricsPath serves Prometheus metrics; empty disables the endpoint.
	MetricsPath string

	// HealthTimeout bounds each readiness check.
	HealthTimeout time.Duration

	// UserID resolves the session key of a request. The default reads the
	// identity put in the context by auth.Middleware.
	UserID func(r *http.Request) string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize:   1 << 20,
		Validation:    api.DefaultValidationConfig(),
		MetricsPath:   "/metrics",
		HealthTimeout: 2 * time.Second,
	}
}

// NewAdapter routes turns to turns and history requests to history. history
// may be nil, in which case the history endpoints answer 501. Middleware
// wraps turns in the given order.
func NewAdapter(turns transport.TurnHandler, history transport.HistoryHandler, cfg Config, logger *slog.Logger, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		turns = transport.Chain(middlewares...)(turns)
	}
	if cfg.UserID == nil {
		cfg.UserID = func(r *http.Request) string { return auth.SessionKeyFromContext(r.Context()) }
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &Adapter{
		turns:   turns,
		history: history,
		checks:  make(map[string]transport.HealthChecker),
		mux:     http.NewServeMux(),
		config:  cfg,
		logger:  logger,
	}

	a.mux.HandleFunc("POST /v1/assistant/turns", a.handleTurn)
	a.mux.HandleFunc("GET /v1/assistant/history", a.handleGetHistory)
	a.mux.HandleFunc("DELETE /v1/assistant/history", a.handleDeleteHistory)
	a.mux.HandleFunc("GET /healthz", a.handleHealthz)
	a.mux.HandleFunc("GET /readyz", a.handleReadyz)
	if cfg.MetricsPath != "" {
		a.mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}

	return a
}

// AddHealthCheck registers a dependency probed by /readyz.
func (a *Adapter) AddHealthCheck(name string, c transport.HealthChecker) {
	a.checks[name] = c
}

// Handler returns the http.Handler for this adapter. outer wraps the routes
// inside the request ID and metrics layers, which is where auth.Middleware
// belongs.
func (a *Adapter) Handler(outer ...func(http.Handler) http.Handler) http.Handler {
	var h http.Handler = a.mux
	for i := len(outer) - 1; i >= 0; i-- {
		h = outer[i](h)
	}
	return httpRequestIDMiddleware(observability.MetricsMiddleware(h))
}

// httpRequestIDMiddleware takes X-Request-ID from the request, or assigns
// one, and echoes it in the response.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 128 {
			id = api.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(transport.ContextWithRequestID(r.Context(), id)))
	})
}

func (a *Adapter) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := a.config.UserID(r)
	if user == "" {
		transport.WriteAPIError(w, api.NewUnauthorizedError("no user identity"))
		return "", false
	}
	return user, true
}

// handleTurn handles POST /v1/assistant/turns.
func (a *Adapter) handleTurn(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
				http.StatusUnsupportedMediaType,
			)
			return
		}
	}

	user, ok := a.userID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)
	var req api.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return
	}
	if apiErr := api.ValidateTurnRequest(&req, a.config.Validation); apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	resp, err := a.turns.HandleTurn(r.Context(), user, &req)
	if err != nil {
		a.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetHistory handles GET /v1/assistant/history.
func (a *Adapter) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if !a.historyAvailable(w) {
		return
	}
	user, ok := a.userID(w, r)
	if !ok {
		return
	}

	resp, err := a.history.GetHistory(r.Context(), user)
	if err != nil {
		a.writeHandlerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteHistory handles DELETE /v1/assistant/history.
func (a *Adapter) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if !a.historyAvailable(w) {
		return
	}
	user, ok := a.userID(w, r)
	if !ok {
		return
	}

	if err := a.history.ClearHistory(r.Context(), user); err != nil {
		a.writeHandlerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Adapter) historyAvailable(w http.ResponseWriter) bool {
	if a.history != nil {
		return true
	}
	transport.WriteErrorResponse(w,
		api.NewInvalidRequestError("", "history is not available on this server"),
		http.StatusNotImplemented,
	)
	return false
}

func (a *Adapter) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz probes every registered dependency.
func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	results := make(map[string]string, len(a.checks))
	for name, c := range a.checks {
		ctx, cancel := context.WithTimeout(r.Context(), a.config.HealthTimeout)
		err := c.HealthCheck(ctx)
		cancel()
		if err != nil {
			a.logger.Warn("readiness check failed", "check", name, "error", err)
			results[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := map[string]any{"status": "ok", "checks": results}
	if status != http.StatusOK {
		body["status"] = "unavailable"
	}
	writeJSON(w, status, body)
}

// writeHandlerError maps an error returned by a handler to a response.
// Errors that are not APIErrors are logged and reported without detail.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		transport.WriteAPIError(w, apiErr)
		return
	}

	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		a.logger.Debug("client went away", "path", r.URL.Path, "request_id", transport.RequestIDFromContext(r.Context()))
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		transport.WriteAPIError(w, api.NewUnavailableError("request timed out"))
		return
	}

	a.logger.Error("request failed",
		"path", r.URL.Path,
		"request_id", transport.RequestIDFromContext(r.Context()),
		"error", err,
	)
	transport.WriteAPIError(w, api.NewServerError("internal error"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
