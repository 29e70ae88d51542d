package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2}, b: []float32{1, 2}, want: 1},
		{name: "scaled", a: []float32{1, 0}, b: []float32{5, 0}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 0}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)

	assert.Equal(t, []float32{0, 0}, NormalizeVector([]float32{0, 0}))
}

func TestOllamaProvider_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req ollamaEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "what is pgvector", req.Prompt)

		_ = json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: []float64{0, 2}})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "")
	v, err := p.Embed(context.Background(), "what is pgvector")

	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, v)
	assert.Equal(t, "ollama/nomic-embed-text", p.Model())
}

func TestOllamaProvider_EmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "nomic-embed-text").Embed(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Model() string { return "fake" }

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text))}, nil
}

type mapCache map[string][]float32

func (m mapCache) Get(model, text string) ([]float32, bool) {
	v, ok := m[model+"|"+text]
	return v, ok
}

func (m mapCache) Set(model, text string, vector []float32) {
	m[model+"|"+text] = vector
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, mapCache{})
	ctx := context.Background()

	first, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	inner.err = errors.New("down")
	_, err = cached.Embed(ctx, "other")
	assert.Error(t, err)

	inner.err = nil
	_, err = cached.Embed(ctx, "other")
	assert.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}
