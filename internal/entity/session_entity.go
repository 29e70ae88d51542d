package entity

import (
	"time"

	"github.com/google/uuid"
)

const DefaultSessionTitle = "New Chat"

type Session struct {
	Id        uuid.UUID
	OwnerId   string
	Title     string
	TurnCount int64
	CreatedAt time.Time
	UpdatedAt *time.Time
}
