package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	OwnerId   string `json:"owner_id" validate:"required,max=128"`
	OwnerKind string `json:"owner_kind" validate:"required,oneof=anonymous registered"`
}

type CreateSessionResponse struct {
	SessionId uuid.UUID `json:"session_id"`
}

type SessionResponse struct {
	Id        uuid.UUID  `json:"id"`
	OwnerId   string     `json:"owner_id"`
	Title     string     `json:"title"`
	TurnCount int64      `json:"turn_count"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
