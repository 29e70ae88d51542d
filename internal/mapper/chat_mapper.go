package mapper

import (
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/model"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) SessionToEntity(s *model.Session) *entity.Session {
	if s == nil {
		return nil
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.Session{
		Id:        s.Id,
		OwnerId:   s.OwnerId,
		Title:     s.Title,
		TurnCount: s.TurnCount,
		CreatedAt: s.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *ChatMapper) SessionToModel(s *entity.Session) *model.Session {
	if s == nil {
		return nil
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.Session{
		Id:        s.Id,
		OwnerId:   s.OwnerId,
		Title:     s.Title,
		TurnCount: s.TurnCount,
		CreatedAt: s.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

func (m *ChatMapper) SessionsToEntities(sessions []*model.Session) []*entity.Session {
	entities := make([]*entity.Session, len(sessions))
	for i, s := range sessions {
		entities[i] = m.SessionToEntity(s)
	}
	return entities
}

// Turn Mappers

func (m *ChatMapper) TurnToEntity(t *model.Turn) *entity.Turn {
	if t == nil {
		return nil
	}
	return &entity.Turn{
		Id:        t.Id,
		SessionId: t.SessionId,
		Seq:       t.Seq,
		Role:      entity.TurnRole(t.Role),
		Content:   t.Content,
		IsError:   t.IsError,
		CreatedAt: t.CreatedAt,
	}
}

func (m *ChatMapper) TurnToModel(t *entity.Turn) *model.Turn {
	if t == nil {
		return nil
	}
	return &model.Turn{
		Id:        t.Id,
		SessionId: t.SessionId,
		Seq:       t.Seq,
		Role:      string(t.Role),
		Content:   t.Content,
		IsError:   t.IsError,
		CreatedAt: t.CreatedAt,
	}
}

func (m *ChatMapper) TurnsToEntities(turns []*model.Turn) []*entity.Turn {
	entities := make([]*entity.Turn, len(turns))
	for i, t := range turns {
		entities[i] = m.TurnToEntity(t)
	}
	return entities
}

// Identity Mappers

func (m *ChatMapper) IdentityToEntity(i *model.Identity) *entity.Identity {
	if i == nil {
		return nil
	}
	return &entity.Identity{
		Id:        i.Id,
		Kind:      entity.IdentityKind(i.Kind),
		LinkedTo:  i.LinkedTo,
		CreatedAt: i.CreatedAt,
	}
}

func (m *ChatMapper) IdentityToModel(i *entity.Identity) *model.Identity {
	if i == nil {
		return nil
	}
	return &model.Identity{
		Id:        i.Id,
		Kind:      string(i.Kind),
		LinkedTo:  i.LinkedTo,
		CreatedAt: i.CreatedAt,
	}
}
