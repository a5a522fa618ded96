package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for session operations.
var (
	// ErrNotFound is returned when no session exists for the user.
	ErrNotFound = errors.New("session not found")

	// ErrExpired is returned when the session existed but was stale. It
	// matches ErrNotFound under errors.Is.
	ErrExpired = fmt.Errorf("%w: expired", ErrNotFound)

	// ErrClosed is returned by backends after Close.
	ErrClosed = errors.New("session backend closed")
)

// StoreError reports a backend failure, or a row that could not be decoded.
// It never wraps ErrNotFound.
type StoreError struct {
	Op      string
	Backend string
	UserID  string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("session %s for %q on %s: %v", e.Op, e.UserID, e.Backend, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
