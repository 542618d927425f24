package implementation

import (
	"context"
	"errors"

	"ai-tutoring-be/internal/entity"
	"ai-tutoring-be/internal/mapper"
	"ai-tutoring-be/internal/model"
	"ai-tutoring-be/internal/repository/contract"
	"ai-tutoring-be/internal/repository/specification"

	"gorm.io/gorm"
)

type OutcomeRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SessionMapper
}

func NewOutcomeRepository(db *gorm.DB) contract.OutcomeRepository {
	return &OutcomeRepositoryImpl{
		db:     db,
		mapper: mapper.NewSessionMapper(),
	}
}

func (r *OutcomeRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *OutcomeRepositoryImpl) Create(ctx context.Context, outcome *entity.Outcome) error {
	m := r.mapper.OutcomeToModel(outcome)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*outcome = *r.mapper.OutcomeToEntity(m)
	return nil
}

func (r *OutcomeRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Outcome, error) {
	var m model.Outcome
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.OutcomeToEntity(&m), nil
}
