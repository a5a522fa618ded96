// Package tools defines the tool contract used by the assistant: named
// handlers with JSON schemas for their input and output, the Call and
// Result values exchanged with the model client, and the ToolError payload
// convention.
//
// A tool failure is data, not an engine failure. Handlers return a
// *ToolError (or any error, which is wrapped into one) and the registry
// turns it into a structured payload that ends up inside the transcript's
// tool response part, where the model can read it.
//
// The registry that owns tools and dispatches calls lives in
// pkg/tools/registry.
package tools
