package response

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/pkg/llm"
	"rag-chatbot-be/pkg/rag"
	"rag-chatbot-be/pkg/rag/prompt"

	"github.com/cenkalti/backoff/v4"
)

const module = "RESPONDER"

type Config struct {
	Timeout     time.Duration // per attempt
	MaxRetries  int           // transport-level only
	Backoff     time.Duration
	Temperature float64
	MaxTokens   int
}

func DefaultConfig() Config {
	return Config{
		Timeout:     60 * time.Second,
		MaxRetries:  2,
		Backoff:     500 * time.Millisecond,
		Temperature: 0.7,
	}
}

// Responder turns an assembled context into one complete reply.
type Responder struct {
	provider llm.LLMProvider
	builder  *prompt.Builder
	config   Config
	logger   logger.ILogger
}

func NewResponder(provider llm.LLMProvider, builder *prompt.Builder, config Config, logger logger.ILogger) *Responder {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	return &Responder{
		provider: provider,
		builder:  builder,
		config:   config,
		logger:   logger,
	}
}

func (r *Responder) options() []llm.Option {
	opts := []llm.Option{llm.WithTemperature(r.config.Temperature)}
	if r.config.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(r.config.MaxTokens))
	}
	return opts
}

func (r *Responder) newBackOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if r.config.Backoff > 0 {
		b = backoff.NewConstantBackOff(r.config.Backoff)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.config.MaxRetries)), ctx)
}

// Respond returns a complete reply or an error wrapping rag.ErrGenerationFailed.
func (r *Responder) Respond(ctx context.Context, cc *rag.ConversationContext, query string) (string, error) {
	return r.generate(ctx, cc, query, nil)
}

// Stream behaves like Respond but forwards fragments as they arrive. Providers
// without native streaming deliver the reply as a single fragment. A failed
// attempt is only retried while nothing has been forwarded yet.
func (r *Responder) Stream(ctx context.Context, cc *rag.ConversationContext, query string, onFragment llm.FragmentHandler) (string, error) {
	return r.generate(ctx, cc, query, onFragment)
}

func (r *Responder) generate(ctx context.Context, cc *rag.ConversationContext, query string, onFragment llm.FragmentHandler) (string, error) {
	messages := r.builder.Build(cc, query)
	started := time.Now()

	var reply string
	attempt := 0
	forwarded := false

	operation := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()

		out, err := r.call(attemptCtx, messages, onFragment, &forwarded)
		if err != nil {
			if ctx.Err() != nil || forwarded || !llm.IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		reply = out
		return nil
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn(module, "Model call failed, retrying", map[string]interface{}{
			"session_id": cc.SessionId.String(),
			"attempt":    attempt,
			"error":      err.Error(),
		})
	}

	err := backoff.RetryNotify(operation, r.newBackOff(ctx), notify)

	details := map[string]interface{}{
		"session_id":  cc.SessionId.String(),
		"attempts":    attempt,
		"messages":    len(messages),
		"grounding":   len(cc.Grounding),
		"duration_ms": time.Since(started).Milliseconds(),
	}

	if err != nil {
		details["error"] = err.Error()
		r.logger.Error(module, "Generation failed", details)
		return "", fmt.Errorf("%w: %w", rag.ErrGenerationFailed, err)
	}
	if strings.TrimSpace(reply) == "" {
		r.logger.Error(module, "Model returned empty content", details)
		return "", fmt.Errorf("%w: empty reply", rag.ErrGenerationFailed)
	}

	details["reply_length"] = len(reply)
	r.logger.Info(module, "Reply generated", details)
	return reply, nil
}

func (r *Responder) call(ctx context.Context, messages []llm.Message, onFragment llm.FragmentHandler, forwarded *bool) (string, error) {
	if onFragment == nil {
		return r.provider.Chat(ctx, messages, r.options()...)
	}

	relay := func(fragment string) error {
		*forwarded = true
		return onFragment(fragment)
	}

	if streamer, ok := r.provider.(llm.StreamingProvider); ok {
		return streamer.ChatStream(ctx, messages, relay, r.options()...)
	}

	reply, err := r.provider.Chat(ctx, messages, r.options()...)
	if err != nil {
		return "", err
	}
	if reply == "" {
		return "", errors.New("empty reply")
	}
	if err := relay(reply); err != nil {
		return "", err
	}
	return reply, nil
}
