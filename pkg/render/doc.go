// Package render projects canonical transcripts into the request-scoped
// form consumed by prompt templates and the model client.
//
// The projection is one-way. Text passes through unchanged, structured tool
// inputs and outputs are serialized to deterministic JSON strings, and a
// part that cannot be serialized is dropped without failing the whole
// projection. Render messages are never persisted.
package render
