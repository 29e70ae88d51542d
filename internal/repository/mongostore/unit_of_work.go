package mongostore

import (
	"context"

	"rag-chatbot-be/internal/repository/contract"
	"rag-chatbot-be/internal/repository/unitofwork"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

type repositoryFactory struct {
	db *mongo.Database
}

func NewRepositoryFactory(db *mongo.Database) unitofwork.RepositoryFactory {
	return &repositoryFactory{db: db}
}

func (f *repositoryFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &unitOfWork{db: f.db}
}

// Sessions and turns are written with single-document atomic operations,
// so no session-level transaction is opened.
type unitOfWork struct {
	db *mongo.Database
}

func (u *unitOfWork) Begin(ctx context.Context) error { return nil }
func (u *unitOfWork) Commit() error                   { return nil }
func (u *unitOfWork) Rollback() error                 { return nil }

func (u *unitOfWork) SessionRepository() contract.SessionRepository {
	return NewSessionRepository(u.db)
}

func (u *unitOfWork) TurnRepository() contract.TurnRepository {
	return NewTurnRepository(u.db)
}

func (u *unitOfWork) IdentityRepository() contract.IdentityRepository {
	return NewIdentityRepository(u.db)
}
