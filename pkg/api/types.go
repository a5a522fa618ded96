package api

import (
	"time"

	"github.com/rhuss/kontrakt/pkg/transcript"
)

// TurnRequest is the body of POST /v1/assistant/turns.
type TurnRequest struct {
	Message string `json:"message"`
}

// TurnResponse reports the outcome of one conversational turn. Answer is
// always set; Degraded marks turns that hit a store or model failure.
type TurnResponse struct {
	ID       string   `json:"id"`
	Object   string   `json:"object"`
	Answer   string   `json:"answer"`
	State    string   `json:"state"`
	Splice   string   `json:"splice,omitempty"`
	Appended int      `json:"appended"`
	Degraded bool     `json:"degraded,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// HistoryResponse is the body of GET /v1/assistant/history.
type HistoryResponse struct {
	Object        string               `json:"object"`
	UserID        string               `json:"user_id"`
	Messages      []transcript.Message `json:"messages"`
	LastUpdatedAt *time.Time           `json:"last_updated_at,omitempty"`
	ExpiresAt     *time.Time           `json:"expires_at,omitempty"`
}
