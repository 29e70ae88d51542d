package unitofwork

import (
	"context"
	"fmt"

	"rag-chatbot-be/internal/repository/contract"
)

// UnitOfWork groups the chat repositories behind one optional transaction.
// Backends without multi-document transactions treat Begin/Commit as no-ops
// and rely on each repository call being atomic on its own.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SessionRepository() contract.SessionRepository
	TurnRepository() contract.TurnRepository
	IdentityRepository() contract.IdentityRepository
}

// Run executes fn inside a transaction on a fresh unit of work. fn's error
// is returned unchanged after a rollback.
func Run(ctx context.Context, factory RepositoryFactory, fn func(uow UnitOfWork) error) error {
	uow := factory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(uow); err != nil {
		_ = uow.Rollback()
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
