// Package ragtest holds in-memory fakes for the chat pipeline's outbound
// dependencies.
package ragtest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/internal/repository/memory"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/pkg/llm"

	"github.com/google/uuid"
)

var ErrUnavailable = errors.New("fake dependency unavailable")

// Embedder returns fixed vectors per text and can fail its first FailTimes calls.
type Embedder struct {
	mu        sync.Mutex
	Vectors   map[string][]float32
	Default   []float32
	FailTimes int
	calls     int
}

func NewEmbedder(vectors map[string][]float32) *Embedder {
	return &Embedder{Vectors: vectors, Default: []float32{0, 0, 1}}
}

func (e *Embedder) Model() string { return "fake-embedder" }

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls++
	if e.FailTimes < 0 || e.calls <= e.FailTimes {
		return nil, ErrUnavailable
	}
	if v, ok := e.Vectors[text]; ok {
		return v, nil
	}
	return e.Default, nil
}

func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// LLM answers from ReplyFunc and records every history it was given.
type LLM struct {
	mu        sync.Mutex
	ReplyFunc func(history []llm.Message) (string, error)
	Delay     time.Duration
	calls     [][]llm.Message
}

var _ llm.LLMProvider = (*LLM)(nil)

// NewLLM echoes the last user message as "reply to: <prompt>".
func NewLLM() *LLM {
	return &LLM{ReplyFunc: func(history []llm.Message) (string, error) {
		return "reply to: " + history[len(history)-1].Content, nil
	}}
}

func (l *LLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	l.mu.Lock()
	l.calls = append(l.calls, append([]llm.Message(nil), history...))
	delay, reply := l.Delay, l.ReplyFunc
	l.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply(history)
}

func (l *LLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return l.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func (l *LLM) Calls() [][]llm.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]llm.Message(nil), l.calls...)
}

func (l *LLM) LastCall() []llm.Message {
	calls := l.Calls()
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}

// StreamingLLM emits the reply word by word.
type StreamingLLM struct {
	*LLM
}

var _ llm.StreamingProvider = StreamingLLM{}

func (s StreamingLLM) ChatStream(ctx context.Context, history []llm.Message, onFragment llm.FragmentHandler, options ...llm.Option) (string, error) {
	reply, err := s.Chat(ctx, history, options...)
	if err != nil {
		return "", err
	}
	words := strings.SplitAfter(reply, " ")
	for _, w := range words {
		if err := onFragment(w); err != nil {
			return "", err
		}
	}
	return reply, nil
}

// Contains reports whether any message in history contains substr.
func Contains(history []llm.Message, substr string) bool {
	for _, m := range history {
		if strings.Contains(m.Content, substr) {
			return true
		}
	}
	return false
}

// Fixture is a memory-backed store with one helper per setup step.
type Fixture struct {
	Store   *memory.Store
	Factory unitofwork.RepositoryFactory
	Chunks  *memory.ChunkRepository
	Logger  logger.ILogger
}

func NewFixture() *Fixture {
	store := memory.NewStore()
	return &Fixture{
		Store:   store,
		Factory: memory.NewRepositoryFactory(store),
		Chunks:  memory.NewChunkRepository(),
		Logger:  logger.NewNopLogger(),
	}
}

func (f *Fixture) CreateSession(ctx context.Context, ownerId string) *entity.Session {
	s := &entity.Session{Id: uuid.New(), OwnerId: ownerId}
	if err := f.Factory.NewUnitOfWork(ctx).SessionRepository().Create(ctx, s); err != nil {
		panic(err)
	}
	return s
}

func (f *Fixture) AddChunk(ctx context.Context, text, source string, vector []float32) {
	if err := f.Chunks.Insert(ctx, []*entity.Chunk{{Text: text, Source: source, Embedding: vector}}); err != nil {
		panic(err)
	}
}
