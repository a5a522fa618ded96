package auth

import (
	"log/slog"
	"net/http"

	"github.com/rhuss/kontrakt/pkg/api"
	"github.com/rhuss/kontrakt/pkg/observability"
	"github.com/rhuss/kontrakt/pkg/transport"
)

// DefaultBypassPaths skip authentication.
var DefaultBypassPaths = []string{"/healthz", "/readyz", "/metrics"}

// Middleware authenticates each request with chain, enforces limiter (when
// not nil) and stores the identity in the request context. Requests to
// bypass paths are passed through untouched.
func Middleware(chain *Chain, limiter RateLimiter, bypass []string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	skip := make(map[string]bool, len(bypass))
	for _, p := range bypass {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			res := chain.Authenticate(r.Context(), r)
			if res.Decision != Yes || res.Identity == nil {
				logger.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"decision", res.Decision.String(),
					"error", res.Err,
				)
				transport.WriteAPIError(w, api.NewUnauthorizedError("authentication required"))
				return
			}

			id := res.Identity
			if id.Subject == "" {
				logger.Error("authenticator accepted a request without subject", "path", r.URL.Path)
				transport.WriteAPIError(w, api.NewServerError("internal authentication error"))
				return
			}

			if limiter != nil {
				if err := limiter.Allow(r.Context(), id); err != nil {
					logger.Warn("rate limit exceeded", "subject", id.Subject, "tenant", id.Tenant, "tier", id.ServiceTier)
					tier := id.ServiceTier
					if tier == "" {
						tier = "default"
					}
					observability.RateLimitRejectedTotal.WithLabelValues(tier).Inc()
					transport.WriteAPIError(w, api.NewTooManyRequestsError("rate limit exceeded"))
					return
				}
			}

			logger.Debug("authenticated", "subject", id.Subject, "tenant", id.Tenant, "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
