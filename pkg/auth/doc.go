// Package auth authenticates assistant callers and derives the key their
// session is stored under.
//
// Authenticators vote Yes, No or Abstain. A Chain asks them in order and
// falls back to a default decision when every one abstains. Middleware runs
// the chain for each HTTP request, applies per-subject rate limits and puts
// the resulting Identity into the request context.
package auth
