package mapper

import (
	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type ChunkMapper struct{}

func NewChunkMapper() *ChunkMapper {
	return &ChunkMapper{}
}

func (m *ChunkMapper) ToEntity(c *model.Chunk) *entity.Chunk {
	if c == nil {
		return nil
	}

	return &entity.Chunk{
		Id:        c.Id,
		Seq:       c.Seq,
		Text:      c.Document,
		Source:    c.Source,
		Embedding: c.EmbeddingValue.Slice(),
		Metadata:  map[string]interface{}(c.Metadata),
	}
}

func (m *ChunkMapper) ToModel(c *entity.Chunk) *model.Chunk {
	if c == nil {
		return nil
	}

	return &model.Chunk{
		Id:             c.Id,
		Seq:            c.Seq,
		Document:       c.Text,
		Source:         c.Source,
		EmbeddingValue: pgvector.NewVector(c.Embedding),
		Metadata:       datatypes.JSONMap(c.Metadata),
	}
}

func (m *ChunkMapper) ToEntities(chunks []*model.Chunk) []*entity.Chunk {
	entities := make([]*entity.Chunk, len(chunks))
	for i, c := range chunks {
		entities[i] = m.ToEntity(c)
	}
	return entities
}
