package embedding

import "context"

type VectorCache interface {
	Get(model, text string) ([]float32, bool)
	Set(model, text string, vector []float32)
}

// CachedEmbedder serves repeated texts from cache. Errors are never cached.
type CachedEmbedder struct {
	inner Embedder
	cache VectorCache
}

func NewCachedEmbedder(inner Embedder, cache VectorCache) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(c.inner.Model(), text); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(c.inner.Model(), text, v)
	return v, nil
}
