package api

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxMessageSize int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxMessageSize: 32 * 1024,
	}
}

// ValidateTurnRequest returns an *APIError describing the first problem
// with req, or nil.
func ValidateTurnRequest(req *TurnRequest, cfg ValidationConfig) *APIError {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return NewInvalidRequestError("message", "message is required")
	}
	if !utf8.ValidString(req.Message) {
		return NewInvalidRequestError("message", "message must be valid UTF-8")
	}
	if cfg.MaxMessageSize > 0 && len(req.Message) > cfg.MaxMessageSize {
		return NewInvalidRequestError("message",
			fmt.Sprintf("message exceeds maximum size of %d bytes", cfg.MaxMessageSize))
	}
	return nil
}
