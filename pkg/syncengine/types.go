// Package syncengine is the client side of the session protocol: an
// optimistic local view over the authoritative store, kept fresh by
// poll-based reconciliation. The server always wins; everything local
// is speculation until the store confirms it.
package syncengine

import (
	"time"

	"ai-tutoring-be/internal/session"

	"github.com/google/uuid"
)

type Message struct {
	Id        uuid.UUID `json:"id"`
	SessionId uuid.UUID `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`

	// Pending marks a message submitted but not yet confirmed by the
	// store. Never sent over the wire.
	Pending bool `json:"-"`
}

type NextAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Ref   string `json:"ref,omitempty"`
}

type Outcome struct {
	Status      string       `json:"status"`
	Summary     string       `json:"summary"`
	NextActions []NextAction `json:"next_actions"`
	Confidence  *float64     `json:"confidence,omitempty"`
}

type Session struct {
	Id        uuid.UUID  `json:"id"`
	OwnerId   uuid.UUID  `json:"owner_id"`
	Topic     string     `json:"topic"`
	Status    string     `json:"status"`
	Messages  []Message  `json:"messages"`
	Outcome   *Outcome   `json:"outcome,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func (s Session) Terminal() bool {
	return session.Terminal(session.Status(s.Status))
}

// AppendResult is what the store reports for a committed message: the
// authoritative row plus the session status observed in the same
// transaction, and the outcome when that status is terminal.
type AppendResult struct {
	Message       Message  `json:"message"`
	SessionStatus string   `json:"session_status"`
	Outcome       *Outcome `json:"outcome,omitempty"`
}

type SessionSummary struct {
	Id        uuid.UUID `json:"id"`
	Topic     string    `json:"topic"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SessionList struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int64            `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}
