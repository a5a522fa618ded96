package engine

// DefaultFallbackAnswer is returned when the model cannot be reached.
const DefaultFallbackAnswer = "Sorry, I couldn't process that right now. Please try again in a moment."

// Config holds configuration for the engine.
type Config struct {
	// SystemPrompt is passed to the model on every turn. It is not stored
	// in the transcript.
	SystemPrompt string

	// FallbackAnswer is the answer of a turn whose model call failed.
	// Empty means DefaultFallbackAnswer.
	FallbackAnswer string

	// PromptTemplate renders the projected history for TRACE logging
	// and the admin CLI. Empty selects render.DefaultTemplate.
	PromptTemplate string
}

func (c Config) fallbackAnswer() string {
	if c.FallbackAnswer == "" {
		return DefaultFallbackAnswer
	}
	return c.FallbackAnswer
}
