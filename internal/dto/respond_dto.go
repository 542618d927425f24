package dto

import "github.com/google/uuid"

// RespondRequestMessage is the payload published on the in-process bus
// after an initiator message commits. The responder worker consumes it.
type RespondRequestMessage struct {
	SessionId uuid.UUID `json:"session_id"`
	OwnerId   uuid.UUID `json:"owner_id"`
	Sequence  int64     `json:"sequence"` // sequence of the committed initiator message
}
