// Package engine implements the turn orchestrator of the assistant. The
// Engine keeps one durable transcript per user across stateless requests:
// each turn loads the transcript, projects it for the model, invokes the
// model, splices the messages the model produced onto the transcript and
// saves it back.
//
// Turns of the same user run one at a time, in submission order. Store
// and model failures degrade the turn instead of failing it: the caller
// always gets an answer, and the failures are reported on the TurnResult.
package engine
