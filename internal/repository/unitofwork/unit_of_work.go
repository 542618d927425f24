package unitofwork

import (
	"context"

	"ai-tutoring-be/internal/repository/contract"
)

// UnitOfWork scopes repository access to one logical operation. Begin
// promotes it to a database transaction; the state-machine write path
// (append, transition) always runs inside one.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SessionRepository() contract.SessionRepository
	MessageRepository() contract.MessageRepository
	OutcomeRepository() contract.OutcomeRepository
}
