package auth

import (
	"context"
	"errors"
	"net/http"
)

// Decision is the vote of an Authenticator.
type Decision int

const (
	// Yes accepts the request; the chain stops.
	Yes Decision = iota

	// No rejects the request; the chain stops.
	No

	// Abstain passes the request on to the next authenticator.
	Abstain
)

func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "abstain"
	}
}

// Result is the outcome of one authentication attempt.
type Result struct {
	Decision Decision
	Identity *Identity // set when Decision is Yes
	Err      error     // set when Decision is No
}

// Identity describes an authenticated caller.
type Identity struct {
	// Subject identifies the caller. Never empty on an accepted request.
	Subject string

	// Tenant scopes the subject, when the credential carries one.
	Tenant string

	// ServiceTier selects the rate limit.
	ServiceTier string

	Scopes []string
}

// SessionKey is the user identifier sessions are stored under. Subjects are
// only unique within a tenant, so the tenant prefixes the key when present.
func (id *Identity) SessionKey() string {
	if id == nil {
		return ""
	}
	if id.Tenant == "" {
		return id.Subject
	}
	return id.Tenant + "/" + id.Subject
}

// HasScope reports whether the identity was granted scope.
func (id *Identity) HasScope(scope string) bool {
	if id == nil {
		return false
	}
	for _, s := range id.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Authenticator inspects the credentials of a request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Anonymous is the identity used when the chain accepts by default.
const Anonymous = "anonymous"

// Chain evaluates authenticators left to right.
type Chain struct {
	Authenticators []Authenticator

	// Default is applied when all authenticators abstain. Yes admits the
	// request as Anonymous.
	Default Decision
}

// Authenticate returns the first non-abstaining vote, or the default.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, a := range c.Authenticators {
		if res := a.Authenticate(ctx, r); res.Decision != Abstain {
			return res
		}
	}
	if c.Default == Yes {
		return Result{Decision: Yes, Identity: &Identity{Subject: Anonymous, ServiceTier: "default"}}
	}
	return Result{Decision: No, Err: ErrUnauthenticated}
}

// BearerToken returns the token of a Bearer Authorization header.
func BearerToken(r *http.Request) (token string, ok bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) < len(prefix) || h[:len(prefix)] != prefix {
		return "", false
	}
	return h[len(prefix):], true
}
