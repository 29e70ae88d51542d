package mongostore

import (
	"time"

	"rag-chatbot-be/internal/entity"

	"github.com/google/uuid"
)

// uuids are stored as their string form so documents stay readable in the shell.

type sessionDocument struct {
	Id        string    `bson:"_id"`
	OwnerId   string    `bson:"owner_id"`
	Title     string    `bson:"title"`
	TurnCount int64     `bson:"turn_count"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type turnDocument struct {
	Id        string    `bson:"_id"`
	SessionId string    `bson:"session_id"`
	Seq       int64     `bson:"seq"`
	Role      string    `bson:"role"`
	Content   string    `bson:"content"`
	IsError   bool      `bson:"is_error"`
	CreatedAt time.Time `bson:"created_at"`
}

type identityDocument struct {
	Id        string    `bson:"_id"`
	Kind      string    `bson:"kind"`
	LinkedTo  *string   `bson:"linked_to,omitempty"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d *sessionDocument) toEntity() *entity.Session {
	updatedAt := d.UpdatedAt
	return &entity.Session{
		Id:        uuid.MustParse(d.Id),
		OwnerId:   d.OwnerId,
		Title:     d.Title,
		TurnCount: d.TurnCount,
		CreatedAt: d.CreatedAt,
		UpdatedAt: &updatedAt,
	}
}

func (d *turnDocument) toEntity() *entity.Turn {
	return &entity.Turn{
		Id:        uuid.MustParse(d.Id),
		SessionId: uuid.MustParse(d.SessionId),
		Seq:       d.Seq,
		Role:      entity.TurnRole(d.Role),
		Content:   d.Content,
		IsError:   d.IsError,
		CreatedAt: d.CreatedAt,
	}
}

func (d *identityDocument) toEntity() *entity.Identity {
	return &entity.Identity{
		Id:        d.Id,
		Kind:      entity.IdentityKind(d.Kind),
		LinkedTo:  d.LinkedTo,
		CreatedAt: d.CreatedAt,
	}
}
