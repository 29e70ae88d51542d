package contract

import (
	"context"

	"rag-chatbot-be/internal/entity"

	"github.com/google/uuid"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	// FindAllByOwner returns the owner's sessions, most recently updated first.
	FindAllByOwner(ctx context.Context, ownerId string, limit int) ([]*entity.Session, error)
	// Reassign moves a session to a new owner in a single write.
	Reassign(ctx context.Context, id uuid.UUID, newOwnerId string) error
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) error
	// ResetHistory drops every turn of the session and restores its default title.
	ResetHistory(ctx context.Context, id uuid.UUID) error
}
