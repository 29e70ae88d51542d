package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, store *Store, owner string) *entity.Session {
	t.Helper()
	s := &entity.Session{OwnerId: owner}
	require.NoError(t, NewSessionRepository(store).Create(context.Background(), s))
	return s
}

func TestTurnRepository_AppendAssignsSequentialSeq(t *testing.T) {
	store := NewStore()
	session := newSession(t, store, "anon-1")
	repo := NewTurnRepository(store)
	ctx := context.Background()

	for i, content := range []string{"hi", "hello", "how are you"} {
		turn := &entity.Turn{SessionId: session.Id, Role: entity.RoleUser, Content: content}
		require.NoError(t, repo.Append(ctx, turn))
		assert.EqualValues(t, i+1, turn.Seq)
		assert.NotEqual(t, uuid.Nil, turn.Id)
	}

	stored, err := NewSessionRepository(store).FindById(ctx, session.Id)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stored.TurnCount)
}

func TestTurnRepository_AppendUnknownSession(t *testing.T) {
	repo := NewTurnRepository(NewStore())

	err := repo.Append(context.Background(), &entity.Turn{SessionId: uuid.New(), Role: entity.RoleUser, Content: "x"})

	assert.ErrorIs(t, err, contract.ErrSessionNotFound)
}

func TestTurnRepository_ListRecentKeepsTailOldestFirst(t *testing.T) {
	store := NewStore()
	session := newSession(t, store, "anon-1")
	repo := NewTurnRepository(store)
	ctx := context.Background()

	for _, content := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, repo.Append(ctx, &entity.Turn{SessionId: session.Id, Role: entity.RoleUser, Content: content}))
	}

	turns, err := repo.ListRecent(ctx, session.Id, 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "c", turns[0].Content)
	assert.Equal(t, "e", turns[2].Content)

	again, err := repo.ListRecent(ctx, session.Id, 3)
	require.NoError(t, err)
	assert.Equal(t, turns, again)
}

func TestTurnRepository_ConcurrentAppendsNeverShareSeq(t *testing.T) {
	store := NewStore()
	session := newSession(t, store, "anon-1")
	repo := NewTurnRepository(store)

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.Append(context.Background(), &entity.Turn{SessionId: session.Id, Role: entity.RoleUser, Content: "x"})
		}()
	}
	wg.Wait()

	turns, err := repo.ListRecent(context.Background(), session.Id, 0)
	require.NoError(t, err)
	require.Len(t, turns, writers)
	for i, turn := range turns {
		assert.EqualValues(t, i+1, turn.Seq)
	}
}

func TestSessionRepository_ReassignAndReset(t *testing.T) {
	store := NewStore()
	session := newSession(t, store, "anon-1")
	sessions := NewSessionRepository(store)
	turns := NewTurnRepository(store)
	ctx := context.Background()

	require.NoError(t, turns.Append(ctx, &entity.Turn{SessionId: session.Id, Role: entity.RoleUser, Content: "hi"}))
	require.NoError(t, sessions.Reassign(ctx, session.Id, "user-1"))

	owned, err := sessions.FindAllByOwner(ctx, "user-1", 10)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.EqualValues(t, 1, owned[0].TurnCount)

	left, err := sessions.FindAllByOwner(ctx, "anon-1", 10)
	require.NoError(t, err)
	assert.Empty(t, left)

	require.NoError(t, sessions.ResetHistory(ctx, session.Id))
	history, err := turns.ListRecent(ctx, session.Id, 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.ErrorIs(t, sessions.Reassign(ctx, uuid.New(), "user-1"), contract.ErrSessionNotFound)
}

func TestSessionRepository_FindAllByOwnerNewestFirst(t *testing.T) {
	store := NewStore()
	sessions := NewSessionRepository(store)
	ctx := context.Background()

	first := newSession(t, store, "user-1")
	time.Sleep(2 * time.Millisecond)
	second := newSession(t, store, "user-1")

	list, err := sessions.FindAllByOwner(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Id, list[0].Id)
	assert.Equal(t, first.Id, list[1].Id)

	limited, err := sessions.FindAllByOwner(ctx, "user-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestIdentityRepository_UpsertKeepsExisting(t *testing.T) {
	repo := NewIdentityRepository(NewStore())
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &entity.Identity{Id: "u-1", Kind: entity.IdentityRegistered}))
	require.NoError(t, repo.Upsert(ctx, &entity.Identity{Id: "u-1", Kind: entity.IdentityAnonymous}))

	got, err := repo.FindById(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, entity.IdentityRegistered, got.Kind)

	missing, err := repo.FindById(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.Link(ctx, "u-1", "u-2"))
	got, err = repo.FindById(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, got.LinkedTo)
	assert.Equal(t, "u-2", *got.LinkedTo)
}

func TestChunkRepository_QueryRanksAndBreaksTiesByInsertion(t *testing.T) {
	repo := NewChunkRepository()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, []*entity.Chunk{
		{Text: "orthogonal", Embedding: []float32{0, 1}},
		{Text: "first exact", Embedding: []float32{1, 0}},
		{Text: "second exact", Embedding: []float32{2, 0}},
		{Text: "close", Embedding: []float32{1, 0.2}},
	}))

	got, err := repo.Query(ctx, []float32{1, 0}, 3, 0.1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first exact", got[0].Chunk.Text)
	assert.Equal(t, "second exact", got[1].Chunk.Text)
	assert.Equal(t, "close", got[2].Chunk.Text)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
}

func TestEmbeddingCache_RoundTrip(t *testing.T) {
	c := NewEmbeddingCache(time.Minute)

	_, ok := c.Get("nomic", "hello")
	assert.False(t, ok)

	c.Set("nomic", "hello", []float32{0.1})
	v, ok := c.Get("nomic", "hello")
	assert.True(t, ok)
	assert.Equal(t, []float32{0.1}, v)

	_, ok = c.Get("other-model", "hello")
	assert.False(t, ok)
}
