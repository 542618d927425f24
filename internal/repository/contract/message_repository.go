package contract

import (
	"context"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/repository/specification"

	"github.com/google/uuid"
)

type MessageRepository interface {
	// Create inserts an append-only message row. A duplicate
	// (session_id, sequence) pair surfaces as gorm.ErrDuplicatedKey.
	Create(ctx context.Context, message *entity.Message) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Message, error)
	// LastSequence returns the highest committed sequence for a session,
	// 0 when the session has no messages.
	LastSequence(ctx context.Context, sessionID uuid.UUID) (int64, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
