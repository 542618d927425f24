package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Topic string `json:"topic" validate:"required,min=10,max=500"`
}

type SendMessageRequest struct {
	Content          string `json:"content" validate:"required,min=1,max=2000"`
	ExpectedSequence int64  `json:"expected_sequence" validate:"required,min=1"`
}

type MessageResponse struct {
	Id        uuid.UUID `json:"id"`
	SessionId uuid.UUID `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

type NextActionResponse struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Ref   string `json:"ref,omitempty"`
}

type OutcomeResponse struct {
	Status      string               `json:"status"`
	Summary     string               `json:"summary"`
	NextActions []NextActionResponse `json:"next_actions"`
	Confidence  *float64             `json:"confidence,omitempty"`
}

type SessionResponse struct {
	Id        uuid.UUID         `json:"id"`
	OwnerId   uuid.UUID         `json:"owner_id"`
	Topic     string            `json:"topic"`
	Status    string            `json:"status"`
	Messages  []MessageResponse `json:"messages"`
	Outcome   *OutcomeResponse  `json:"outcome,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	EndedAt   *time.Time        `json:"ended_at,omitempty"`
}

type SendMessageResponse struct {
	Message       MessageResponse  `json:"message"`
	SessionStatus string           `json:"session_status"`
	Outcome       *OutcomeResponse `json:"outcome,omitempty"`
}

type SessionSummaryResponse struct {
	Id        uuid.UUID `json:"id"`
	Topic     string    `json:"topic"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListSessionsResponse struct {
	Sessions []SessionSummaryResponse `json:"sessions"`
	Total    int64                    `json:"total"`
	Limit    int                      `json:"limit"`
	Offset   int                      `json:"offset"`
}
