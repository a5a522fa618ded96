// Package transport defines the handler interfaces and middleware chain
// between protocol adapters (package transport/http) and the turn engine.
//
// TurnHandler runs a conversational turn for an authenticated user;
// HistoryHandler reads and clears the user's transcript. Middleware wraps
// a TurnHandler with cross-cutting behavior: panic recovery, request IDs
// and structured logging via log/slog.
package transport
