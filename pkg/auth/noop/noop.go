// Package noop admits every request. It is meant for local development:
// the caller picks its user with the X-Kontrakt-User header, which makes it
// easy to hold several sessions against one server.
package noop

import (
	"context"
	"net/http"
	"strings"

	"github.com/rhuss/kontrakt/pkg/auth"
)

// UserHeader names the header a development caller identifies with.
const UserHeader = "X-Kontrakt-User"

// Authenticator always votes Yes.
type Authenticator struct {
	// DefaultUser is the subject when the header is absent. Empty means
	// auth.Anonymous.
	DefaultUser string
}

func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	subject := strings.TrimSpace(r.Header.Get(UserHeader))
	if subject == "" {
		subject = a.DefaultUser
	}
	if subject == "" {
		subject = auth.Anonymous
	}
	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{Subject: subject, ServiceTier: "default"},
	}
}
