package assembler

import (
	"context"
	"testing"
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/pkg/rag"
	"rag-chatbot-be/pkg/rag/history"
	"rag-chatbot-be/pkg/rag/ragtest"
	"rag-chatbot-be/pkg/rag/search"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const refundQuestion = "How long do refunds take?"

func setup(t *testing.T, emb *ragtest.Embedder) (*ragtest.Fixture, *history.MessageLog, *Assembler) {
	t.Helper()
	f := ragtest.NewFixture()
	log := history.NewMessageLog(f.Factory, 48, f.Logger)
	retriever := search.NewRetriever(emb, f.Chunks, search.Config{TopK: 4, MaxRetries: 1, InitialBackoff: time.Millisecond}, f.Logger)
	return f, log, NewAssembler(log, retriever, 3, f.Logger)
}

func refundEmbedder() *ragtest.Embedder {
	return ragtest.NewEmbedder(map[string][]float32{refundQuestion: {0.9, 0.1, 0}})
}

func TestAssemble_UnknownSession(t *testing.T) {
	_, _, a := setup(t, refundEmbedder())

	_, err := a.Assemble(context.Background(), uuid.New(), "hi")
	assert.ErrorIs(t, err, rag.ErrSessionNotFound)
}

func TestAssemble_TagsHistoryAndGrounding(t *testing.T) {
	f, log, a := setup(t, refundEmbedder())
	ctx := context.Background()
	s := f.CreateSession(ctx, "anon-1")
	f.AddChunk(ctx, "Refunds are processed in 5 days", "faq.md", []float32{1, 0, 0})
	f.AddChunk(ctx, "Our office is in Lisbon", "about.md", []float32{0, 0, 1})

	for _, c := range []string{"one", "two", "three", "four"} {
		_, err := log.Append(ctx, s.Id, entity.RoleUser, c)
		require.NoError(t, err)
	}

	cc, err := a.Assemble(ctx, s.Id, refundQuestion)
	require.NoError(t, err)

	require.Len(t, cc.History, 3)
	assert.Equal(t, "two", cc.History[0].Content)
	assert.Equal(t, "four", cc.History[2].Content)
	for _, item := range cc.History {
		assert.Equal(t, rag.SourceHistory, item.Source)
	}

	require.NotEmpty(t, cc.Grounding)
	assert.Equal(t, "Refunds are processed in 5 days", cc.Grounding[0].Content)
	assert.Equal(t, rag.SourceGrounding, cc.Grounding[0].Source)
	assert.Equal(t, []string{"faq.md", "about.md"}, cc.Sources())
	assert.Equal(t, "anon-1", cc.OwnerId)
	assert.False(t, cc.RetrievalDegraded)
}

func TestAssemble_IsIdempotentWithoutAppends(t *testing.T) {
	f, log, a := setup(t, refundEmbedder())
	ctx := context.Background()
	s := f.CreateSession(ctx, "anon-1")
	f.AddChunk(ctx, "Refunds are processed in 5 days", "faq.md", []float32{1, 0, 0})
	_, err := log.Append(ctx, s.Id, entity.RoleUser, "Hello")
	require.NoError(t, err)

	first, err := a.Assemble(ctx, s.Id, refundQuestion)
	require.NoError(t, err)
	second, err := a.Assemble(ctx, s.Id, refundQuestion)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAssemble_DegradesWhenRetrievalUnavailable(t *testing.T) {
	emb := ragtest.NewEmbedder(nil)
	emb.FailTimes = -1
	f, log, a := setup(t, emb)
	ctx := context.Background()
	s := f.CreateSession(ctx, "anon-1")
	_, err := log.Append(ctx, s.Id, entity.RoleUser, "Hello")
	require.NoError(t, err)

	cc, err := a.Assemble(ctx, s.Id, "anything")
	require.NoError(t, err)
	assert.True(t, cc.RetrievalDegraded)
	assert.Empty(t, cc.Grounding)
	assert.Len(t, cc.History, 1)
}
