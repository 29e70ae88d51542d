package entity

import (
	"time"

	"github.com/google/uuid"
)

type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// Turn is immutable once appended. Seq orders turns within a session.
type Turn struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	Seq       int64
	Role      TurnRole
	Content   string
	IsError   bool
	CreatedAt time.Time
}
