package service

import (
	"context"
	"fmt"
	"strings"

	"rag-chatbot-be/internal/dto"
	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/pkg/llm"
	"rag-chatbot-be/pkg/rag"
	"rag-chatbot-be/pkg/rag/executor"
	"rag-chatbot-be/pkg/rag/history"

	"github.com/google/uuid"
)

const maxTranscriptLimit = 200

type IChatService interface {
	SendPrompt(ctx context.Context, request *dto.SendPromptRequest) (*dto.SendPromptResponse, error)
	StreamPrompt(ctx context.Context, request *dto.SendPromptRequest, onFragment llm.FragmentHandler) (*dto.SendPromptResponse, error)
	ListTurns(ctx context.Context, sessionId string, limit int) ([]*dto.TurnResponse, error)
}

// TurnHandler is the part of the chat pipeline the HTTP layer drives.
type TurnHandler interface {
	HandleTurn(ctx context.Context, sessionId string, prompt string) (*executor.TurnResult, error)
	HandleTurnStream(ctx context.Context, sessionId string, prompt string, onFragment llm.FragmentHandler) (*executor.TurnResult, error)
}

type chatService struct {
	pipeline TurnHandler
	log      *history.MessageLog
}

func NewChatService(pipeline TurnHandler, log *history.MessageLog) IChatService {
	return &chatService{
		pipeline: pipeline,
		log:      log,
	}
}

func (s *chatService) SendPrompt(ctx context.Context, request *dto.SendPromptRequest) (*dto.SendPromptResponse, error) {
	result, err := s.pipeline.HandleTurn(ctx, request.SessionId, request.Prompt)
	if err != nil {
		return nil, err
	}
	return toPromptResponse(result), nil
}

func (s *chatService) StreamPrompt(ctx context.Context, request *dto.SendPromptRequest, onFragment llm.FragmentHandler) (*dto.SendPromptResponse, error) {
	result, err := s.pipeline.HandleTurnStream(ctx, request.SessionId, request.Prompt, onFragment)
	if err != nil {
		return nil, err
	}
	return toPromptResponse(result), nil
}

func (s *chatService) ListTurns(ctx context.Context, sessionId string, limit int) ([]*dto.TurnResponse, error) {
	sessionId = strings.TrimSpace(sessionId)
	if sessionId == "" {
		return nil, fmt.Errorf("%w: session id is required", rag.ErrInvalidRequest)
	}
	id, err := uuid.Parse(sessionId)
	if err != nil {
		return nil, rag.ErrSessionNotFound
	}
	if limit <= 0 || limit > maxTranscriptLimit {
		limit = maxTranscriptLimit
	}

	turns, err := s.log.ListRecent(ctx, id, limit)
	if err != nil {
		return nil, err
	}

	res := make([]*dto.TurnResponse, 0, len(turns))
	for _, t := range turns {
		res = append(res, toTurnResponse(t))
	}
	return res, nil
}

func toPromptResponse(result *executor.TurnResult) *dto.SendPromptResponse {
	res := &dto.SendPromptResponse{
		SessionId:         result.SessionId,
		Reply:             result.Reply,
		RetrievalDegraded: result.RetrievalDegraded,
		Sources:           result.Sources,
	}
	if res.Sources == nil {
		res.Sources = []string{}
	}
	if result.UserTurn != nil {
		res.UserTurnId = result.UserTurn.Id
	}
	if result.AssistantTurn != nil {
		id := result.AssistantTurn.Id
		res.AssistantTurnId = &id
	}
	return res
}

func toTurnResponse(t *entity.Turn) *dto.TurnResponse {
	return &dto.TurnResponse{
		Id:        t.Id,
		Seq:       t.Seq,
		Role:      string(t.Role),
		Content:   t.Content,
		IsError:   t.IsError,
		CreatedAt: t.CreatedAt,
	}
}
