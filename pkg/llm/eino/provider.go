package eino

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"rag-chatbot-be/pkg/llm"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Provider adapts any eino chat model (Ark by default) to llm.LLMProvider.
type Provider struct {
	chatModel model.ChatModel
}

var _ llm.StreamingProvider = (*Provider)(nil)

func NewProvider(chatModel model.ChatModel) *Provider {
	return &Provider{chatModel: chatModel}
}

type ArkConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
}

func NewArkProvider(ctx context.Context, cfg ArkConfig) (*Provider, error) {
	temperature := float32(cfg.Temperature)
	arkCfg := &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: &temperature,
	}

	chatModel, err := ark.NewChatModel(ctx, arkCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}
	return NewProvider(chatModel), nil
}

func toSchema(history []llm.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case llm.RoleSystem:
			messages = append(messages, schema.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(msg.Content, nil))
		default:
			messages = append(messages, schema.UserMessage(msg.Content))
		}
	}
	return messages
}

func callOptions(opts []llm.Option) []model.Option {
	options := llm.ApplyOptions(llm.Options{}, opts...)

	var out []model.Option
	if options.Temperature > 0 {
		out = append(out, model.WithTemperature(float32(options.Temperature)))
	}
	if options.MaxTokens > 0 {
		out = append(out, model.WithMaxTokens(options.MaxTokens))
	}
	if options.Model != "" {
		out = append(out, model.WithModel(options.Model))
	}
	return out
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	resp, err := p.chatModel.Generate(ctx, toSchema(history), callOptions(opts)...)
	if err != nil {
		return "", fmt.Errorf("eino generate failed: %w", err)
	}
	return resp.Content, nil
}

func (p *Provider) ChatStream(ctx context.Context, history []llm.Message, onFragment llm.FragmentHandler, opts ...llm.Option) (string, error) {
	stream, err := p.chatModel.Stream(ctx, toSchema(history), callOptions(opts)...)
	if err != nil {
		return "", fmt.Errorf("eino stream failed: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			return full.String(), nil
		}
		if recvErr != nil {
			return "", fmt.Errorf("eino stream recv: %w", recvErr)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		full.WriteString(chunk.Content)
		if err := onFragment(chunk.Content); err != nil {
			return "", err
		}
	}
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}
