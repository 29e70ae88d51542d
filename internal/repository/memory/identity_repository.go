package memory

import (
	"context"
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/repository/contract"
)

type IdentityRepository struct {
	store *Store
}

func NewIdentityRepository(store *Store) contract.IdentityRepository {
	return &IdentityRepository{store: store}
}

func (r *IdentityRepository) Upsert(ctx context.Context, identity *entity.Identity) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.identities[identity.Id]; ok {
		return nil
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now()
	}
	r.store.identities[identity.Id] = copyIdentity(identity)
	return nil
}

func (r *IdentityRepository) FindById(ctx context.Context, id string) (*entity.Identity, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	i, ok := r.store.identities[id]
	if !ok {
		return nil, nil
	}
	return copyIdentity(i), nil
}

func (r *IdentityRepository) Link(ctx context.Context, anonymousId, registeredId string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	i, ok := r.store.identities[anonymousId]
	if !ok {
		i = &entity.Identity{Id: anonymousId, Kind: entity.IdentityAnonymous, CreatedAt: time.Now()}
		r.store.identities[anonymousId] = i
	}
	linked := registeredId
	i.LinkedTo = &linked
	return nil
}
