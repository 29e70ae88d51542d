package contract

import (
	"context"

	"rag-chatbot-be/internal/entity"
)

type IdentityRepository interface {
	// Upsert stores the identity if it is not known yet. Existing rows are left as is.
	Upsert(ctx context.Context, identity *entity.Identity) error
	FindById(ctx context.Context, id string) (*entity.Identity, error)
	Link(ctx context.Context, anonymousId, registeredId string) error
}
