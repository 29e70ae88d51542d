package factory

import (
	"context"
	"fmt"

	"rag-chatbot-be/pkg/llm"
	"rag-chatbot-be/pkg/llm/eino"
	"rag-chatbot-be/pkg/llm/gemini"
	"rag-chatbot-be/pkg/llm/huggingface"
	"rag-chatbot-be/pkg/llm/langchain"
	"rag-chatbot-be/pkg/llm/ollama"
)

type ProviderConfig struct {
	Provider    string // "ollama", "huggingface", "gemini", "ark", "openai"
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
}

func NewLLMProvider(ctx context.Context, cfg ProviderConfig) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "gemini":
		return gemini.NewGeminiProvider(ctx, cfg.APIKey, cfg.Model)
	case "ark":
		return eino.NewArkProvider(ctx, eino.ArkConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	case "openai":
		return langchain.NewOpenAIProvider(cfg.BaseURL, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
