package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/repository/contract"
	"rag-chatbot-be/pkg/embedding"

	"github.com/google/uuid"
)

// ChunkRepository is a brute-force cosine index. Fine for tests and small corpora.
type ChunkRepository struct {
	mu     sync.RWMutex
	chunks []*entity.Chunk
	seq    int64
}

func NewChunkRepository() *ChunkRepository {
	return &ChunkRepository{}
}

var _ contract.ChunkRepository = (*ChunkRepository)(nil)

func (r *ChunkRepository) Insert(ctx context.Context, chunks []*entity.Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range chunks {
		r.seq++
		stored := *c
		if stored.Id == uuid.Nil {
			stored.Id = uuid.New()
		}
		stored.Seq = r.seq
		r.chunks = append(r.chunks, &stored)
	}
	return nil
}

func (r *ChunkRepository) Query(ctx context.Context, vector []float32, k int, minSimilarity float64) ([]*entity.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []*entity.ScoredChunk{}, nil
	}

	r.mu.RLock()
	scored := make([]*entity.ScoredChunk, 0, len(r.chunks))
	for _, c := range r.chunks {
		sim := embedding.CosineSimilarity(vector, c.Embedding)
		if sim < minSimilarity {
			continue
		}
		copied := *c
		scored = append(scored, &entity.ScoredChunk{Chunk: &copied, Similarity: sim})
	}
	r.mu.RUnlock()

	slices.SortFunc(scored, func(a, b *entity.ScoredChunk) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.Seq, b.Chunk.Seq)
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
