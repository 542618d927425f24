package model

import (
	"time"

	"github.com/google/uuid"
)

// Message rows are append-only. The composite unique index on
// (session_id, sequence) is the optimistic-concurrency guard: of two
// concurrent writers racing for the same sequence, exactly one insert
// succeeds, the other hits a duplicate-key error.
type Message struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_messages_session_sequence"`
	Role      string    `gorm:"type:text;not null"`
	Content   string    `gorm:"type:text;not null"`
	Sequence  int64     `gorm:"not null;uniqueIndex:idx_messages_session_sequence"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Message) TableName() string {
	return "messages"
}
