package engine

import (
	"github.com/rhuss/kontrakt/pkg/model"
	"github.com/rhuss/kontrakt/pkg/transcript"
)

// splice returns the messages a model turn adds after the user message,
// and where they came from. historyLen is the number of messages the
// model was shown, not counting the new user message.
//
// The result always ends with a model message.
func splice(historyLen int, res *model.Result) ([]transcript.Message, SpliceMode) {
	tail, mode := selectTail(historyLen, res)
	tail = transcript.Clone(tail)
	if len(tail) == 0 || tail[len(tail)-1].Role != transcript.RoleModel {
		tail = append(tail, transcript.ModelText(res.FinalText))
	}
	return tail, mode
}

func selectTail(historyLen int, res *model.Result) ([]transcript.Message, SpliceMode) {
	if len(res.NewMessages) > 0 {
		return res.NewMessages, SpliceNewMessages
	}

	// An echoed sequence holds the history, then the user message, then
	// whatever the model added.
	if start := historyLen + 1; len(res.FullSequence) > start {
		return res.FullSequence[start:], SpliceEcho
	}

	if res.FallbackMessage != nil {
		return []transcript.Message{*res.FallbackMessage}, SpliceFallback
	}
	if len(res.Candidates) > 0 {
		return res.Candidates[:1], SpliceCandidate
	}
	return nil, SpliceSynthesized
}

// answerText picks the text returned to the user: the model's final text,
// or the text of the last model message spliced in.
func answerText(res *model.Result, tail []transcript.Message) string {
	if res.FinalText != "" {
		return res.FinalText
	}
	for i := len(tail) - 1; i >= 0; i-- {
		if tail[i].Role == transcript.RoleModel {
			if text := tail[i].Text(); text != "" {
				return text
			}
		}
	}
	return ""
}
