package entity

import "github.com/google/uuid"

type Chunk struct {
	Id        uuid.UUID
	Seq       int64
	Text      string
	Source    string
	Embedding []float32
	Metadata  map[string]interface{}
}

type ScoredChunk struct {
	Chunk      *Chunk
	Similarity float64
}
