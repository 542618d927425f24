// Package responder defines the contract for the tutoring backend that
// produces replies. The engine treats it as a black box: conversation
// history in, next message plus an optional terminal verdict out.
package responder

import "context"

// Turn is one message of the conversation history, provider-agnostic.
type Turn struct {
	Role    string // "initiator" or "responder"
	Content string
}

type NextAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Ref   string `json:"ref,omitempty"`
}

// Outcome is the responder's terminal verdict for a session.
type Outcome struct {
	Status      string       `json:"status"` // "resolved" | "needs_more_help" | "refer_to_teacher"
	Summary     string       `json:"summary"`
	NextActions []NextAction `json:"next_actions"`
	Confidence  *float64     `json:"confidence,omitempty"`
}

// Reply is the responder's next message. Outcome is non-nil only when
// the responder considers the session finished.
type Reply struct {
	Content string
	Outcome *Outcome
}

// Responder generates the next reply for a session. Implementations are
// not assumed idempotent; callers must suppress duplicate invocations
// through the store's sequence guard.
type Responder interface {
	Respond(ctx context.Context, topic string, history []Turn) (*Reply, error)
}
