package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
)

// EmbeddingCache keeps recent query embeddings so repeated prompts skip the
// embedding call.
type EmbeddingCache struct {
	cache *cache.Cache
}

func NewEmbeddingCache(ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{
		cache: cache.New(ttl, 2*ttl),
	}
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

func (c *EmbeddingCache) Get(model, text string) ([]float32, bool) {
	if x, found := c.cache.Get(cacheKey(model, text)); found {
		return x.([]float32), true
	}
	return nil, false
}

func (c *EmbeddingCache) Set(model, text string, vector []float32) {
	c.cache.Set(cacheKey(model, text), vector, cache.DefaultExpiration)
}
