package contract

import (
	"context"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/repository/specification"
)

type OutcomeRepository interface {
	Create(ctx context.Context, outcome *entity.Outcome) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Outcome, error)
}
