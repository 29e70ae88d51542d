package memory

import (
	"context"
	"slices"
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/repository/contract"

	"github.com/google/uuid"
)

type SessionRepository struct {
	store *Store
}

func NewSessionRepository(store *Store) contract.SessionRepository {
	return &SessionRepository{store: store}
}

func (r *SessionRepository) Create(ctx context.Context, session *entity.Session) error {
	if session.Id == uuid.Nil {
		session.Id = uuid.New()
	}
	if session.Title == "" {
		session.Title = entity.DefaultSessionTitle
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = &now

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.sessions[session.Id] = copySession(session)
	return nil
}

func (r *SessionRepository) FindById(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	s, ok := r.store.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

func (r *SessionRepository) FindAllByOwner(ctx context.Context, ownerId string, limit int) ([]*entity.Session, error) {
	r.store.mu.RLock()
	result := make([]*entity.Session, 0)
	for _, s := range r.store.sessions {
		if s.OwnerId == ownerId {
			result = append(result, copySession(s))
		}
	}
	r.store.mu.RUnlock()

	slices.SortFunc(result, func(a, b *entity.Session) int {
		return b.UpdatedAt.Compare(*a.UpdatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *SessionRepository) Reassign(ctx context.Context, id uuid.UUID, newOwnerId string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	s, ok := r.store.sessions[id]
	if !ok {
		return contract.ErrSessionNotFound
	}
	now := time.Now()
	s.OwnerId = newOwnerId
	s.UpdatedAt = &now
	return nil
}

func (r *SessionRepository) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	s, ok := r.store.sessions[id]
	if !ok {
		return contract.ErrSessionNotFound
	}
	s.Title = title
	return nil
}

func (r *SessionRepository) ResetHistory(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	s, ok := r.store.sessions[id]
	if !ok {
		return contract.ErrSessionNotFound
	}
	now := time.Now()
	s.TurnCount = 0
	s.Title = entity.DefaultSessionTitle
	s.UpdatedAt = &now
	delete(r.store.turns, id)
	return nil
}
