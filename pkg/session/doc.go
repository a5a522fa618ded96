// Package session persists per-user transcripts with time-based expiry.
//
// A [Store] sits in front of a [Backend] (memory, postgres, redis or
// sqlite). Backends only move opaque rows: a user ID, the JSON-encoded
// message sequence and the last-activity timestamp. The store owns
// encoding and the staleness rule: a row whose last activity is at least
// the TTL old is deleted on load and reported as absent, so an expired
// session is never handed to a caller.
package session
