package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidUser is returned for an empty user ID.
var ErrInvalidUser = errors.New("engine: user ID is required")

// ModelError wraps a failed model invocation.
type ModelError struct {
	Model string
	Err   error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model %s: %v", e.Model, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }
