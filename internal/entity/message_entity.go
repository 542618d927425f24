package entity

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	Role      string
	Content   string
	Sequence  int64
	CreatedAt time.Time

	// Pending marks a client-side optimistic entry awaiting confirmation.
	// Never persisted.
	Pending bool
}
