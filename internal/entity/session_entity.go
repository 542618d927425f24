package entity

import (
	"time"

	"ai-tutoring-be/internal/session"

	"github.com/google/uuid"
)

type Session struct {
	Id        uuid.UUID
	OwnerId   uuid.UUID
	Topic     string
	Status    session.Status
	Messages  []*Message
	Outcome   *Outcome
	CreatedAt time.Time
	UpdatedAt time.Time
	EndedAt   *time.Time
}

// LastSequence returns the sequence of the newest message, 0 when empty.
// Messages are kept in conversation order, so the last element is newest.
func (s *Session) LastSequence() int64 {
	if len(s.Messages) == 0 {
		return 0
	}
	return s.Messages[len(s.Messages)-1].Sequence
}
