// Package jwt authenticates bearer JWTs. Tokens are verified either with
// RSA keys published at a JWKS endpoint or, for development setups, with a
// shared HMAC secret.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/kontrakt/pkg/auth"
	"github.com/rhuss/kontrakt/pkg/debug"
)

// Config configures the Authenticator.
type Config struct {
	// Issuer and Audience are checked when set.
	Issuer   string
	Audience string

	// JWKSURL serves the RSA verification keys.
	JWKSURL string

	// Secret enables HS256 verification instead of JWKS.
	Secret string

	// Claim names. Defaults: sub, tenant_id, scope, tier.
	SubjectClaim string
	TenantClaim  string
	ScopesClaim  string
	TierClaim    string

	// CacheTTL bounds how long fetched keys are trusted. Default 1h.
	CacheTTL time.Duration

	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration

	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.SubjectClaim == "" {
		c.SubjectClaim = "sub"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = time.Hour
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
}

// Authenticator verifies bearer JWTs.
type Authenticator struct {
	cfg    Config
	keys   *keySet
	parser *jwtlib.Parser
}

// New validates cfg and returns an Authenticator.
func New(cfg Config) (*Authenticator, error) {
	cfg.defaults()
	if cfg.JWKSURL == "" && cfg.Secret == "" {
		return nil, errors.New("jwt: one of jwks_url or secret is required")
	}

	methods := []string{"RS256", "RS384", "RS512"}
	if cfg.Secret != "" {
		methods = []string{"HS256"}
	}
	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods(methods), jwtlib.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwtlib.WithLeeway(cfg.Leeway))
	}

	a := &Authenticator{cfg: cfg, parser: jwtlib.NewParser(opts...)}
	if cfg.JWKSURL != "" && cfg.Secret == "" {
		a.keys = newKeySet(cfg.JWKSURL, cfg.HTTPClient, cfg.CacheTTL)
	}
	return a, nil
}

// Authenticate abstains without a bearer token, rejects invalid tokens and
// maps the claims of valid ones onto an Identity.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) auth.Result {
	raw, ok := auth.BearerToken(r)
	if !ok {
		return auth.Result{Decision: auth.Abstain}
	}
	if raw == "" {
		return auth.Result{Decision: auth.No, Err: errors.New("empty bearer token")}
	}

	claims := jwtlib.MapClaims{}
	if _, err := a.parser.ParseWithClaims(raw, claims, a.keyFunc(ctx)); err != nil {
		debug.Log("auth", "jwt rejected", "error", err)
		return auth.Result{Decision: auth.No, Err: fmt.Errorf("invalid token: %w", err)}
	}

	id, err := a.identity(claims)
	if err != nil {
		return auth.Result{Decision: auth.No, Err: err}
	}
	return auth.Result{Decision: auth.Yes, Identity: id}
}

func (a *Authenticator) keyFunc(ctx context.Context) jwtlib.Keyfunc {
	return func(t *jwtlib.Token) (any, error) {
		if a.keys == nil {
			return []byte(a.cfg.Secret), nil
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no kid header")
		}
		return a.keys.key(ctx, kid)
	}
}

func (a *Authenticator) identity(claims jwtlib.MapClaims) (*auth.Identity, error) {
	subject := stringClaim(claims, a.cfg.SubjectClaim)
	if subject == "" {
		return nil, fmt.Errorf("token has no %q claim", a.cfg.SubjectClaim)
	}
	return &auth.Identity{
		Subject:     subject,
		Tenant:      stringClaim(claims, a.cfg.TenantClaim),
		ServiceTier: stringClaim(claims, a.cfg.TierClaim),
		Scopes:      scopes(claims[a.cfg.ScopesClaim]),
	}, nil
}

func stringClaim(claims jwtlib.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}

// scopes accepts both "a b c" and ["a","b","c"].
func scopes(v any) []string {
	switch v := v.(type) {
	case string:
		if f := strings.Fields(v); len(f) > 0 {
			return f
		}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
