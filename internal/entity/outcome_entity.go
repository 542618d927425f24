package entity

import (
	"time"

	"ai-tutoring-be/internal/session"

	"github.com/google/uuid"
)

type NextAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Ref   string `json:"ref,omitempty"`
}

type Outcome struct {
	Id          uuid.UUID
	SessionId   uuid.UUID
	Status      session.Status
	Summary     string
	NextActions []NextAction
	Confidence  *float64
	CreatedAt   time.Time
}
