package api

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	turnIDPrefix    = "turn_"
	callIDPrefix    = "call_"
	requestIDPrefix = "req_"
)

var (
	turnIDPattern = regexp.MustCompile(`^turn_[0-9a-f]{32}$`)
	callIDPattern = regexp.MustCompile(`^call_[0-9a-f]{32}$`)
)

// NewTurnID returns "turn_" followed by 32 hex characters of a random UUID.
func NewTurnID() string { return turnIDPrefix + compactUUID() }

// NewCallID returns an ID for a tool call the backend left unnamed.
func NewCallID() string { return callIDPrefix + compactUUID() }

// NewRequestID returns an ID for an inbound HTTP request.
func NewRequestID() string { return requestIDPrefix + compactUUID() }

// ValidateTurnID reports whether id has the turn ID shape.
func ValidateTurnID(id string) bool { return turnIDPattern.MatchString(id) }

// ValidateCallID reports whether id has the generated call ID shape.
func ValidateCallID(id string) bool { return callIDPattern.MatchString(id) }

func compactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
