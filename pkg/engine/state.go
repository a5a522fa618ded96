package engine

// State is a step of the turn state machine.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateProjecting State = "projecting"
	StateInvoking   State = "invoking"
	StateSplicing   State = "splicing"
	StatePersisting State = "persisting"
	StateDone       State = "done"

	// StateErrored is terminal. A turn reaches it when the model fails
	// or the turn is cancelled.
	StateErrored State = "errored"
)

var transitions = map[State][]State{
	StateIdle:       {StateLoading},
	StateLoading:    {StateProjecting, StateErrored},
	StateProjecting: {StateInvoking},
	StateInvoking:   {StateSplicing, StateErrored},
	StateSplicing:   {StatePersisting},
	StatePersisting: {StateDone, StateErrored},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a turn.
func (s State) Terminal() bool {
	return s == StateDone || s == StateErrored
}

// SpliceMode records where the messages appended by a turn came from.
type SpliceMode string

const (
	// SpliceNewMessages: the model reported its new messages explicitly.
	SpliceNewMessages SpliceMode = "new_messages"
	// SpliceEcho: the tail of an echoed full sequence.
	SpliceEcho SpliceMode = "echo"
	// SpliceFallback: the model's fallback message.
	SpliceFallback SpliceMode = "fallback"
	// SpliceCandidate: the first candidate.
	SpliceCandidate SpliceMode = "candidate"
	// SpliceSynthesized: a model message built from the final text.
	SpliceSynthesized SpliceMode = "synthesized"
	// SpliceUserOnly: the model failed; only the user message was kept.
	SpliceUserOnly SpliceMode = "user_only"
)
