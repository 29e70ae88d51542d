package service

import (
	"context"
	"strings"

	"rag-chatbot-be/internal/dto"
	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/pkg/rag/session"
)

const defaultSessionListLimit = 20

type ISessionService interface {
	CreateSession(ctx context.Context, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	ListSessions(ctx context.Context, ownerId string, limit int) ([]*dto.SessionResponse, error)
	LinkIdentity(ctx context.Context, request *dto.LinkIdentityRequest) (*dto.LinkIdentityResponse, error)
}

type sessionService struct {
	manager *session.OwnershipManager
}

func NewSessionService(manager *session.OwnershipManager) ISessionService {
	return &sessionService{manager: manager}
}

func (s *sessionService) CreateSession(ctx context.Context, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	created, err := s.manager.CreateSession(ctx, entity.Identity{
		Id:   strings.TrimSpace(request.OwnerId),
		Kind: entity.IdentityKind(request.OwnerKind),
	})
	if err != nil {
		return nil, err
	}
	return &dto.CreateSessionResponse{SessionId: created.Id}, nil
}

func (s *sessionService) ListSessions(ctx context.Context, ownerId string, limit int) ([]*dto.SessionResponse, error) {
	if limit <= 0 {
		limit = defaultSessionListLimit
	}

	sessions, err := s.manager.ListSessions(ctx, strings.TrimSpace(ownerId), limit)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.SessionResponse, 0, len(sessions))
	for _, item := range sessions {
		res = append(res, &dto.SessionResponse{
			Id:        item.Id,
			OwnerId:   item.OwnerId,
			Title:     item.Title,
			TurnCount: item.TurnCount,
			CreatedAt: item.CreatedAt,
			UpdatedAt: item.UpdatedAt,
		})
	}
	return res, nil
}

// LinkIdentity returns *rag.PartialMigrationError unchanged so the HTTP layer
// can report which sessions moved.
func (s *sessionService) LinkIdentity(ctx context.Context, request *dto.LinkIdentityRequest) (*dto.LinkIdentityResponse, error) {
	migrated, err := s.manager.TransferOwnership(ctx, strings.TrimSpace(request.AnonymousId), strings.TrimSpace(request.RegisteredId))
	if err != nil {
		return nil, err
	}
	return &dto.LinkIdentityResponse{
		RegisteredId: request.RegisteredId,
		Migrated:     migrated,
	}, nil
}
