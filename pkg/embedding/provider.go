package embedding

import "context"

// Embedder turns text into a vector in the same space as the stored chunks.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model identifies the embedding space; used to key caches.
	Model() string
}
