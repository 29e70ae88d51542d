package model

import (
	"time"

	"github.com/google/uuid"
)

type Turn struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_turns_session_seq,priority:1"`
	Seq       int64     `gorm:"not null;uniqueIndex:idx_turns_session_seq,priority:2"`
	Role      string    `gorm:"type:varchar(16);not null"`
	Content   string    `gorm:"type:text;not null"`
	IsError   bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Turn) TableName() string {
	return "turns"
}
