// Package api defines the wire types of the assistant HTTP API: turn
// requests and results, history snapshots, structured errors and ID
// generation.
//
// The package performs no I/O. Transcript content is carried in its
// storage-canonical JSON form (see package transcript).
package api
