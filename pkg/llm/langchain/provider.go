package langchain

import (
	"context"
	"fmt"

	"rag-chatbot-be/pkg/llm"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider drives OpenAI-compatible chat endpoints through langchaingo.
type Provider struct {
	model llms.Model
}

var _ llm.StreamingProvider = (*Provider)(nil)

func NewProvider(model llms.Model) *Provider {
	return &Provider{model: model}
}

func NewOpenAIProvider(baseURL, token, model string) (*Provider, error) {
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return NewProvider(client), nil
}

func toContent(history []llm.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(history))
	for _, msg := range history {
		role := llms.ChatMessageTypeHuman
		switch msg.Role {
		case llm.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case llm.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, msg.Content))
	}
	return content
}

func callOptions(opts []llm.Option) []llms.CallOption {
	options := llm.ApplyOptions(llm.Options{Temperature: 0.7}, opts...)

	out := []llms.CallOption{llms.WithTemperature(options.Temperature)}
	if options.MaxTokens > 0 {
		out = append(out, llms.WithMaxTokens(options.MaxTokens))
	}
	if options.Model != "" {
		out = append(out, llms.WithModel(options.Model))
	}
	return out
}

func firstChoice(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from model")
	}
	return resp.Choices[0].Content, nil
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := p.model.GenerateContent(ctx, toContent(history), callOptions(opts)...)
	if err != nil {
		return "", fmt.Errorf("langchain generate failed: %w", err)
	}
	return firstChoice(resp)
}

func (p *Provider) ChatStream(ctx context.Context, history []llm.Message, onFragment llm.FragmentHandler, opts ...llm.Option) (string, error) {
	callOpts := append(callOptions(opts), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		return onFragment(string(chunk))
	}))

	resp, err := p.model.GenerateContent(ctx, toContent(history), callOpts...)
	if err != nil {
		return "", fmt.Errorf("langchain stream failed: %w", err)
	}
	return firstChoice(resp)
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}
