package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIProvider embeds through any OpenAI-compatible endpoint using langchaingo.
type OpenAIProvider struct {
	embedder embeddings.Embedder
	model    string
}

func NewOpenAIProvider(baseURL, token, model string) (*OpenAIProvider, error) {
	if token == "" {
		// Local OpenAI-compatible servers accept any token.
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &OpenAIProvider{embedder: embedder, model: model}, nil
}

var _ Embedder = (*OpenAIProvider)(nil)

func (p *OpenAIProvider) Model() string {
	return "openai/" + p.model
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("openai embed failed: %w", err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("openai returned an empty embedding")
	}
	return vector, nil
}
