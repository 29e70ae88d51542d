package memory

import (
	"context"
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/repository/contract"

	"github.com/google/uuid"
)

type TurnRepository struct {
	store *Store
}

func NewTurnRepository(store *Store) contract.TurnRepository {
	return &TurnRepository{store: store}
}

func (r *TurnRepository) Append(ctx context.Context, turn *entity.Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	s, ok := r.store.sessions[turn.SessionId]
	if !ok {
		return contract.ErrSessionNotFound
	}

	now := time.Now()
	s.TurnCount++
	s.UpdatedAt = &now

	if turn.Id == uuid.Nil {
		turn.Id = uuid.New()
	}
	turn.Seq = s.TurnCount
	turn.CreatedAt = now

	stored := *turn
	r.store.turns[turn.SessionId] = append(r.store.turns[turn.SessionId], &stored)
	return nil
}

func (r *TurnRepository) ListRecent(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.Turn, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	all := r.store.turns[sessionId]
	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}

	result := make([]*entity.Turn, 0, len(all)-start)
	for _, t := range all[start:] {
		c := *t
		result = append(result, &c)
	}
	return result, nil
}
