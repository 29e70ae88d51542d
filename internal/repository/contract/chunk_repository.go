package contract

import (
	"context"

	"rag-chatbot-be/internal/entity"
)

type ChunkRepository interface {
	// Query returns the k chunks most similar to embedding by cosine similarity.
	// Equal scores keep insertion order.
	Query(ctx context.Context, embedding []float32, k int, minSimilarity float64) ([]*entity.ScoredChunk, error)
	Insert(ctx context.Context, chunks []*entity.Chunk) error
}
