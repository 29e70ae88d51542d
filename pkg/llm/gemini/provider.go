package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rag-chatbot-be/pkg/llm"

	"google.golang.org/genai"
)

type GeminiProvider struct {
	client *genai.Client
	model  string
}

var _ llm.StreamingProvider = (*GeminiProvider)(nil)

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiProvider{client: client, model: model}, nil
}

// toContents pulls system messages into the system instruction; Gemini
// only knows "user" and "model" roles in contents.
func toContents(history []llm.Message) ([]*genai.Content, *genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case llm.RoleSystem:
			system = append(system, msg.Content)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	if len(system) == 0 {
		return contents, nil
	}
	return contents, genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
}

func (p *GeminiProvider) config(opts []llm.Option, system *genai.Content) (string, *genai.GenerateContentConfig) {
	options := llm.ApplyOptions(llm.Options{Temperature: 0.7, Model: p.model}, opts...)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(float32(options.Temperature)),
	}
	if options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(options.MaxTokens)
	}
	return options.Model, cfg
}

// asStatusError maps a genai API error onto llm.StatusError so the responder
// can tell client errors from transport failures.
func asStatusError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return &llm.StatusError{Provider: "gemini", StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return err
}

func (p *GeminiProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	contents, system := toContents(history)
	model, cfg := p.config(opts, system)

	result, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", asStatusError(err))
	}
	return result.Text(), nil
}

func (p *GeminiProvider) ChatStream(ctx context.Context, history []llm.Message, onFragment llm.FragmentHandler, opts ...llm.Option) (string, error) {
	contents, system := toContents(history)
	model, cfg := p.config(opts, system)

	var full strings.Builder
	for result, err := range p.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
		if err != nil {
			return "", fmt.Errorf("gemini stream failed: %w", asStatusError(err))
		}
		text := result.Text()
		if text == "" {
			continue
		}
		full.WriteString(text)
		if err := onFragment(text); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}
