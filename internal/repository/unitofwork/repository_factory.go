package unitofwork

import "context"

// RepositoryFactory hands out a unit of work per operation. Units of work
// are not safe for concurrent use.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}
