package assembler

import (
	"context"
	"errors"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/pkg/rag"
	"rag-chatbot-be/pkg/rag/history"

	"github.com/google/uuid"
)

const module = "ASSEMBLER"

// ChunkRetriever is satisfied by search.Retriever.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, query string) ([]*entity.ScoredChunk, error)
}

// Assembler builds the bounded context for one turn. It only reads.
type Assembler struct {
	log          *history.MessageLog
	retriever    ChunkRetriever
	historyLimit int
	logger       logger.ILogger
}

func NewAssembler(log *history.MessageLog, retriever ChunkRetriever, historyLimit int, logger logger.ILogger) *Assembler {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &Assembler{
		log:          log,
		retriever:    retriever,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

func (a *Assembler) Assemble(ctx context.Context, sessionId uuid.UUID, prompt string) (*rag.ConversationContext, error) {
	session, err := a.log.Lookup(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	turns, err := a.log.ListRecent(ctx, sessionId, a.historyLimit)
	if err != nil {
		return nil, err
	}

	cc := &rag.ConversationContext{
		SessionId: sessionId,
		OwnerId:   session.OwnerId,
		History:   make([]rag.ContextItem, 0, len(turns)),
	}
	for _, t := range turns {
		cc.History = append(cc.History, rag.ContextItem{
			Source:  rag.SourceHistory,
			Content: t.Content,
			Role:    t.Role,
			Seq:     t.Seq,
			IsError: t.IsError,
		})
	}

	chunks, err := a.retriever.Retrieve(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		a.logger.Warn(module, "Retrieval unavailable, continuing with conversation only", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		cc.RetrievalDegraded = true
		return cc, nil
	}

	cc.Grounding = make([]rag.ContextItem, 0, len(chunks))
	for _, c := range chunks {
		cc.Grounding = append(cc.Grounding, rag.ContextItem{
			Source:     rag.SourceGrounding,
			Content:    c.Chunk.Text,
			ChunkId:    c.Chunk.Id,
			Origin:     c.Chunk.Source,
			Similarity: c.Similarity,
		})
	}

	a.logger.Debug(module, "Context assembled", map[string]interface{}{
		"session_id": sessionId.String(),
		"history":    len(cc.History),
		"grounding":  len(cc.Grounding),
	})
	return cc, nil
}
