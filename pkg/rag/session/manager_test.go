package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/repository/contract"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/pkg/rag"
	"rag-chatbot-be/pkg/rag/history"
	"rag-chatbot-be/pkg/rag/lock"
	"rag-chatbot-be/pkg/rag/ragtest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(f *ragtest.Fixture, factory unitofwork.RepositoryFactory, policy AnonymousPolicy) (*OwnershipManager, *history.MessageLog) {
	log := history.NewMessageLog(factory, 48, f.Logger)
	m := NewOwnershipManager(factory, log, lock.NewLocalLocker(), Config{Policy: policy, Parallelism: 2}, nil, f.Logger)
	return m, log
}

func anon(id string) entity.Identity {
	return entity.Identity{Id: id, Kind: entity.IdentityAnonymous}
}

func TestCreateSession_Validation(t *testing.T) {
	f := ragtest.NewFixture()
	m, _ := newManager(f, f.Factory, PolicyMulti)

	tests := []struct {
		name  string
		owner entity.Identity
	}{
		{name: "empty id", owner: entity.Identity{Kind: entity.IdentityAnonymous}},
		{name: "unknown kind", owner: entity.Identity{Id: "x", Kind: "guest"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.CreateSession(context.Background(), tt.owner)
			assert.ErrorIs(t, err, rag.ErrInvalidRequest)
		})
	}
}

func TestCreateSession_MultiPolicyMintsNewSessions(t *testing.T) {
	f := ragtest.NewFixture()
	m, log := newManager(f, f.Factory, PolicyMulti)
	ctx := context.Background()

	first, err := m.CreateSession(ctx, anon("anon-1"))
	require.NoError(t, err)
	_, err = log.Append(ctx, first.Id, entity.RoleUser, "Hello")
	require.NoError(t, err)

	second, err := m.CreateSession(ctx, anon("anon-1"))
	require.NoError(t, err)
	assert.NotEqual(t, first.Id, second.Id)
	assert.Equal(t, entity.DefaultSessionTitle, second.Title)

	turns, err := log.ListRecent(ctx, first.Id, 0)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestCreateSession_SinglePolicyResetsExisting(t *testing.T) {
	f := ragtest.NewFixture()
	m, log := newManager(f, f.Factory, PolicySingle)
	ctx := context.Background()

	first, err := m.CreateSession(ctx, anon("anon-1"))
	require.NoError(t, err)
	_, err = log.Append(ctx, first.Id, entity.RoleUser, "Hello")
	require.NoError(t, err)

	second, err := m.CreateSession(ctx, anon("anon-1"))
	require.NoError(t, err)
	assert.Equal(t, first.Id, second.Id)

	turns, err := log.ListRecent(ctx, first.Id, 0)
	require.NoError(t, err)
	assert.Empty(t, turns)

	registered, err := m.CreateSession(ctx, entity.Identity{Id: "user-1", Kind: entity.IdentityRegistered})
	require.NoError(t, err)
	again, err := m.CreateSession(ctx, entity.Identity{Id: "user-1", Kind: entity.IdentityRegistered})
	require.NoError(t, err)
	assert.NotEqual(t, registered.Id, again.Id)
}

func TestTransferOwnership_MovesEverySessionAndLinks(t *testing.T) {
	f := ragtest.NewFixture()
	m, log := newManager(f, f.Factory, PolicyMulti)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		s, err := m.CreateSession(ctx, anon("anon-1"))
		require.NoError(t, err)
		_, err = log.Append(ctx, s.Id, entity.RoleUser, "Hello")
		require.NoError(t, err)
		ids = append(ids, s.Id)
	}

	migrated, err := m.TransferOwnership(ctx, "anon-1", "reg-7")
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, migrated)

	for _, id := range ids {
		s, err := log.Lookup(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "reg-7", s.OwnerId)

		turns, err := log.ListRecent(ctx, id, 0)
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Equal(t, "Hello", turns[0].Content)
	}

	identity, err := f.Factory.NewUnitOfWork(ctx).IdentityRepository().FindById(ctx, "anon-1")
	require.NoError(t, err)
	require.NotNil(t, identity.LinkedTo)
	assert.Equal(t, "reg-7", *identity.LinkedTo)

	left, err := m.ListSessions(ctx, "anon-1", 10)
	require.NoError(t, err)
	assert.Empty(t, left)

	owned, err := m.ListSessions(ctx, "reg-7", 10)
	require.NoError(t, err)
	assert.Len(t, owned, 3)
}

func TestTransferOwnership_WaitsForSessionLock(t *testing.T) {
	f := ragtest.NewFixture()
	locker := lock.NewLocalLocker()
	log := history.NewMessageLog(f.Factory, 48, f.Logger)
	m := NewOwnershipManager(f.Factory, log, locker, Config{Policy: PolicyMulti, Parallelism: 2}, nil, f.Logger)
	ctx := context.Background()

	s, err := m.CreateSession(ctx, anon("anon-1"))
	require.NoError(t, err)

	// A turn in flight holds the session.
	unlock, err := locker.Lock(ctx, lock.SessionKey(s.Id))
	require.NoError(t, err)

	type result struct {
		migrated []uuid.UUID
		err      error
	}
	done := make(chan result, 1)
	go func() {
		migrated, err := m.TransferOwnership(ctx, "anon-1", "reg-7")
		done <- result{migrated: migrated, err: err}
	}()

	require.Never(t, func() bool { return len(done) > 0 }, 150*time.Millisecond, 10*time.Millisecond)
	held, err := log.Lookup(ctx, s.Id)
	require.NoError(t, err)
	assert.Equal(t, "anon-1", held.OwnerId)

	unlock()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, []uuid.UUID{s.Id}, r.migrated)
	case <-time.After(2 * time.Second):
		t.Fatal("transfer did not finish after the session lock was released")
	}

	moved, err := log.Lookup(ctx, s.Id)
	require.NoError(t, err)
	assert.Equal(t, "reg-7", moved.OwnerId)
}

func TestTransferOwnership_RejectsBadInput(t *testing.T) {
	f := ragtest.NewFixture()
	m, _ := newManager(f, f.Factory, PolicyMulti)
	ctx := context.Background()

	_, err := m.CreateSession(ctx, entity.Identity{Id: "reg-1", Kind: entity.IdentityRegistered})
	require.NoError(t, err)

	tests := []struct {
		name     string
		from, to string
	}{
		{name: "empty from", from: "", to: "reg-7"},
		{name: "same ids", from: "anon-1", to: "anon-1"},
		{name: "from is registered", from: "reg-1", to: "reg-7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.TransferOwnership(ctx, tt.from, tt.to)
			assert.ErrorIs(t, err, rag.ErrInvalidRequest)
		})
	}
}

// flakyFactory fails Reassign for chosen sessions.
type flakyFactory struct {
	inner  unitofwork.RepositoryFactory
	failOn map[uuid.UUID]bool
}

func (f *flakyFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &flakyUnitOfWork{UnitOfWork: f.inner.NewUnitOfWork(ctx), failOn: f.failOn}
}

type flakyUnitOfWork struct {
	unitofwork.UnitOfWork
	failOn map[uuid.UUID]bool
}

func (u *flakyUnitOfWork) SessionRepository() contract.SessionRepository {
	return &flakySessions{SessionRepository: u.UnitOfWork.SessionRepository(), failOn: u.failOn}
}

type flakySessions struct {
	contract.SessionRepository
	failOn map[uuid.UUID]bool
}

func (s *flakySessions) Reassign(ctx context.Context, id uuid.UUID, newOwnerId string) error {
	if s.failOn[id] {
		return errors.New("write conflict")
	}
	return s.SessionRepository.Reassign(ctx, id, newOwnerId)
}

func TestTransferOwnership_ReportsPartialMigration(t *testing.T) {
	f := ragtest.NewFixture()
	ctx := context.Background()
	good := f.CreateSession(ctx, "anon-1")
	bad := f.CreateSession(ctx, "anon-1")

	flaky := &flakyFactory{inner: f.Factory, failOn: map[uuid.UUID]bool{bad.Id: true}}
	m, log := newManager(f, flaky, PolicyMulti)

	migrated, err := m.TransferOwnership(ctx, "anon-1", "reg-7")

	var partial *rag.PartialMigrationError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []uuid.UUID{good.Id}, partial.Migrated)
	assert.Equal(t, []uuid.UUID{bad.Id}, partial.FailedIds())
	assert.Equal(t, []uuid.UUID{good.Id}, migrated)

	s, err := log.Lookup(ctx, bad.Id)
	require.NoError(t, err)
	assert.Equal(t, "anon-1", s.OwnerId)

	// Retrying once the fault clears moves the rest.
	delete(flaky.failOn, bad.Id)
	migrated, err = m.TransferOwnership(ctx, "anon-1", "reg-7")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{bad.Id}, migrated)
}

func TestListSessions_AnonymousSeesOne(t *testing.T) {
	f := ragtest.NewFixture()
	m, _ := newManager(f, f.Factory, PolicyMulti)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := m.CreateSession(ctx, anon("anon-1"))
		require.NoError(t, err)
	}

	sessions, err := m.ListSessions(ctx, "anon-1", 10)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	unknown, err := m.ListSessions(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, unknown)
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, PolicySingle, ParsePolicy("SINGLE"))
	assert.Equal(t, PolicyMulti, ParsePolicy("multi"))
	assert.Equal(t, PolicyMulti, ParsePolicy(""))
}
