// Package transcript defines the canonical, storage-side form of a
// conversation: sessions, messages and the parts they are made of.
//
// A [Session] is the durable per-user transcript. Its messages are kept in
// conversation order and are only ever appended to; the session store drops
// the whole session once it goes stale. Each [Message] carries a [Role] and
// a sequence of [Part] values, where a part is exactly one of:
//
//   - text
//   - a tool request (tool name plus structured input)
//   - a tool response (tool name plus structured output)
//
// [Validate] checks the structural rules that tie roles to part kinds and
// tool responses to the requests that precede them. The package performs
// no I/O.
package transcript
