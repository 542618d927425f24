package events

import (
	"time"

	"github.com/google/uuid"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "SESSION_CREATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewSessionCreated is emitted after a session row commits.
func NewSessionCreated(sessionID, ownerID uuid.UUID, topic string) Event {
	return BaseEvent{
		Type: "SESSION_CREATED",
		Data: map[string]interface{}{
			"session_id": sessionID.String(),
			"owner_id":   ownerID.String(),
			"topic":      topic,
		},
		OccurredAt: time.Now(),
	}
}

// NewSessionEnded is emitted after a terminal transition commits.
func NewSessionEnded(sessionID, ownerID uuid.UUID, status string) Event {
	return BaseEvent{
		Type: "SESSION_ENDED",
		Data: map[string]interface{}{
			"session_id": sessionID.String(),
			"owner_id":   ownerID.String(),
			"status":     status,
		},
		OccurredAt: time.Now(),
	}
}
