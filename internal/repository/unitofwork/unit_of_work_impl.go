package unitofwork

import (
	"context"
	"errors"

	"rag-chatbot-be/internal/repository/contract"
	"rag-chatbot-be/internal/repository/implementation"

	"gorm.io/gorm"
)

var (
	ErrTransactionActive   = errors.New("transaction already started")
	ErrNoActiveTransaction = errors.New("no active transaction")
)

type gormUnitOfWork struct {
	db *gorm.DB
	tx *gorm.DB // nil outside Begin/Commit
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

// conn is the transaction when one is open, the pool otherwise.
func (u *gormUnitOfWork) conn() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *gormUnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return ErrTransactionActive
	}
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	u.tx = tx
	return nil
}

func (u *gormUnitOfWork) Commit() error {
	if u.tx == nil {
		return ErrNoActiveTransaction
	}
	defer func() { u.tx = nil }()
	return u.tx.Commit().Error
}

func (u *gormUnitOfWork) Rollback() error {
	if u.tx == nil {
		return ErrNoActiveTransaction
	}
	defer func() { u.tx = nil }()
	return u.tx.Rollback().Error
}

func (u *gormUnitOfWork) SessionRepository() contract.SessionRepository {
	return implementation.NewSessionRepository(u.conn())
}

func (u *gormUnitOfWork) TurnRepository() contract.TurnRepository {
	return implementation.NewTurnRepository(u.conn())
}

func (u *gormUnitOfWork) IdentityRepository() contract.IdentityRepository {
	return implementation.NewIdentityRepository(u.conn())
}
