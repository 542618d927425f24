package syncengine

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrConnection tags failures where the store was never reached (dial,
// reset, timeout before a response). The offline detector counts only
// these; an HTTP error proves the network is fine.
var ErrConnection = errors.New("connection failure")

// IsConnectionError reports whether err is a connection-level failure.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnection)
}

// Transport is the engine's port onto the session API. Implementations
// translate failures into the shared error kinds so the retry and
// offline policies can classify them without inspecting messages.
type Transport interface {
	CreateSession(ctx context.Context, topic string) (*Session, error)
	AppendMessage(ctx context.Context, sessionID uuid.UUID, content string, expectedSequence int64) (*AppendResult, error)
	GetSession(ctx context.Context, sessionID uuid.UUID) (*Session, error)
	ListSessions(ctx context.Context, limit, offset int) (*SessionList, error)
}
