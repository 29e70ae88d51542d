package memory

import (
	"context"

	"rag-chatbot-be/internal/repository/contract"
	"rag-chatbot-be/internal/repository/unitofwork"
)

type unitOfWork struct {
	store *Store
}

type repositoryFactory struct {
	store *Store
}

func NewRepositoryFactory(store *Store) unitofwork.RepositoryFactory {
	return &repositoryFactory{store: store}
}

func (f *repositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &unitOfWork{store: f.store}
}

// Every repository call takes the store lock itself, so the transaction
// boundaries have nothing to do.
func (u *unitOfWork) Begin(ctx context.Context) error { return nil }
func (u *unitOfWork) Commit() error                   { return nil }
func (u *unitOfWork) Rollback() error                 { return nil }

func (u *unitOfWork) SessionRepository() contract.SessionRepository {
	return NewSessionRepository(u.store)
}

func (u *unitOfWork) TurnRepository() contract.TurnRepository {
	return NewTurnRepository(u.store)
}

func (u *unitOfWork) IdentityRepository() contract.IdentityRepository {
	return NewIdentityRepository(u.store)
}
