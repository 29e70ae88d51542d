package contract

import (
	"context"

	"rag-chatbot-be/internal/entity"

	"github.com/google/uuid"
)

type TurnRepository interface {
	// Append assigns the next per-session Seq atomically and stores the turn.
	Append(ctx context.Context, turn *entity.Turn) error
	// ListRecent returns at most limit turns, oldest first.
	ListRecent(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.Turn, error)
}
