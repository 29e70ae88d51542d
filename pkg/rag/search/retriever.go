package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/internal/repository/contract"
	"rag-chatbot-be/pkg/embedding"
	"rag-chatbot-be/pkg/rag"

	"github.com/cenkalti/backoff/v4"
)

const module = "RETRIEVER"

// Retriever embeds the query and pulls the nearest chunks from the ChunkStore.
type Retriever struct {
	embedder embedding.Embedder
	chunks   contract.ChunkRepository
	config   Config
	logger   logger.ILogger
}

// Config encapsulates search parameters
type Config struct {
	TopK           int
	MinSimilarity  float64
	MaxRetries     int
	InitialBackoff time.Duration
}

// DefaultConfig returns default search configuration
func DefaultConfig() Config {
	return Config{
		TopK:           4,
		MinSimilarity:  0.0,
		MaxRetries:     2,
		InitialBackoff: 200 * time.Millisecond,
	}
}

func NewRetriever(embedder embedding.Embedder, chunks contract.ChunkRepository, config Config, logger logger.ILogger) *Retriever {
	if config.TopK <= 0 {
		config.TopK = DefaultConfig().TopK
	}
	return &Retriever{
		embedder: embedder,
		chunks:   chunks,
		config:   config,
		logger:   logger,
	}
}

func (r *Retriever) newBackOff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	if r.config.InitialBackoff > 0 {
		expo.InitialInterval = r.config.InitialBackoff
	}
	retries := r.config.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(expo, uint64(retries)), ctx)
}

// Retrieve returns up to TopK chunks, best first, with exact-text duplicates
// removed. Transient failures are retried; on exhaustion the error wraps
// rag.ErrRetrievalUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]*entity.ScoredChunk, error) {
	var results []*entity.ScoredChunk
	attempt := 0

	operation := func() error {
		attempt++

		vector, err := r.embedder.Embed(ctx, query)
		if err != nil {
			return fmt.Errorf("embedding generation failed: %w", err)
		}
		if len(vector) == 0 {
			return errors.New("embedding generation returned an empty vector")
		}

		scored, err := r.chunks.Query(ctx, vector, r.config.TopK, r.config.MinSimilarity)
		if err != nil {
			return fmt.Errorf("vector search failed: %w", err)
		}
		results = scored
		return nil
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn(module, "Retrieval attempt failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"wait_ms": wait.Milliseconds(),
			"error":   err.Error(),
		})
	}

	if err := backoff.RetryNotify(operation, r.newBackOff(ctx), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", rag.ErrRetrievalUnavailable, err)
	}

	deduped := DedupeExact(results)
	r.logger.Debug(module, "Chunks retrieved", map[string]interface{}{
		"raw":      len(results),
		"returned": len(deduped),
		"attempts": attempt,
	})
	return deduped, nil
}

// DedupeExact drops chunks whose text equals a better-ranked chunk's text.
func DedupeExact(chunks []*entity.ScoredChunk) []*entity.ScoredChunk {
	seen := make(map[string]bool, len(chunks))
	out := make([]*entity.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		if c == nil || c.Chunk == nil || seen[c.Chunk.Text] {
			continue
		}
		seen[c.Chunk.Text] = true
		out = append(out, c)
	}
	return out
}
