// Package openaicompat implements model.Model against any backend that
// speaks the OpenAI Chat Completions API (vLLM, LiteLLM, Ollama, OpenAI).
//
// A Generate call runs the tool loop: the backend may answer with tool
// calls, which are dispatched through the tool registry and fed back,
// until it produces a final text answer or the round limit is reached.
// Every step is reported as canonical transcript messages.
package openaicompat
