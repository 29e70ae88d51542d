package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"rag-chatbot-be/internal/entity"
	"rag-chatbot-be/internal/pkg/logger"
	"rag-chatbot-be/internal/repository/unitofwork"
	"rag-chatbot-be/pkg/events"
	"rag-chatbot-be/pkg/rag"
	"rag-chatbot-be/pkg/rag/history"
	"rag-chatbot-be/pkg/rag/lock"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const module = "OWNERSHIP"

// AnonymousPolicy decides what "new chat" means for an anonymous identity.
type AnonymousPolicy string

const (
	// PolicyMulti mints a new session each time and leaves older ones alone.
	PolicyMulti AnonymousPolicy = "multi"
	// PolicySingle keeps one session per anonymous identity and clears it on new chat.
	PolicySingle AnonymousPolicy = "single"
)

func ParsePolicy(s string) AnonymousPolicy {
	if AnonymousPolicy(strings.ToLower(s)) == PolicySingle {
		return PolicySingle
	}
	return PolicyMulti
}

type Config struct {
	Policy      AnonymousPolicy
	Parallelism int
}

// OwnershipManager creates sessions and re-parents anonymous sessions to a
// registered identity.
type OwnershipManager struct {
	uowFactory unitofwork.RepositoryFactory
	log        *history.MessageLog
	locker     lock.Locker
	config     Config
	emitter    *events.Emitter
	logger     logger.ILogger
}

func NewOwnershipManager(
	uowFactory unitofwork.RepositoryFactory,
	log *history.MessageLog,
	locker lock.Locker,
	config Config,
	emitter *events.Emitter,
	logger logger.ILogger,
) *OwnershipManager {
	if config.Policy == "" {
		config.Policy = PolicyMulti
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 4
	}
	return &OwnershipManager{
		uowFactory: uowFactory,
		log:        log,
		locker:     locker,
		config:     config,
		emitter:    emitter,
		logger:     logger,
	}
}

// CreateSession records the owner if unseen and returns the session to chat in.
func (m *OwnershipManager) CreateSession(ctx context.Context, owner entity.Identity) (*entity.Session, error) {
	owner.Id = strings.TrimSpace(owner.Id)
	if owner.Id == "" || !owner.Kind.Valid() {
		return nil, fmt.Errorf("%w: owner id and a valid owner kind are required", rag.ErrInvalidRequest)
	}

	var session, existing *entity.Session
	err := unitofwork.Run(ctx, m.uowFactory, func(uow unitofwork.UnitOfWork) error {
		if err := uow.IdentityRepository().Upsert(ctx, &owner); err != nil {
			return fmt.Errorf("record identity: %w", err)
		}

		if owner.Kind == entity.IdentityAnonymous && m.config.Policy == PolicySingle {
			found, err := uow.SessionRepository().FindAllByOwner(ctx, owner.Id, 1)
			if err != nil {
				return fmt.Errorf("find sessions: %w", err)
			}
			if len(found) > 0 {
				existing = found[0]
				return nil
			}
		}

		session = &entity.Session{
			Id:      uuid.New(),
			OwnerId: owner.Id,
			Title:   entity.DefaultSessionTitle,
		}
		if err := uow.SessionRepository().Create(ctx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rag.ErrPersistenceFailed, err)
	}
	if existing != nil {
		return m.resetSession(ctx, existing)
	}

	m.logger.Info(module, "Session created", map[string]interface{}{
		"session_id": session.Id.String(),
		"owner_id":   owner.Id,
		"owner_kind": string(owner.Kind),
	})
	m.emitter.Emit(ctx, events.TypeSessionCreated, map[string]interface{}{
		"session_id": session.Id.String(),
		"owner_id":   owner.Id,
		"owner_kind": string(owner.Kind),
	})
	return session, nil
}

func (m *OwnershipManager) resetSession(ctx context.Context, session *entity.Session) (*entity.Session, error) {
	unlock, err := m.locker.Lock(ctx, lock.SessionKey(session.Id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := m.log.Reset(ctx, session.Id); err != nil {
		return nil, err
	}

	m.logger.Info(module, "Anonymous session reset for new chat", map[string]interface{}{
		"session_id": session.Id.String(),
		"owner_id":   session.OwnerId,
	})
	return m.log.Lookup(ctx, session.Id)
}

// TransferOwnership moves every session of fromAnonymousId to toRegisteredId.
// Each session is reassigned with one write under its session lock. When some
// sessions fail the result is a *rag.PartialMigrationError and the identities
// stay unlinked so the call can be repeated.
func (m *OwnershipManager) TransferOwnership(ctx context.Context, fromAnonymousId, toRegisteredId string) ([]uuid.UUID, error) {
	fromAnonymousId = strings.TrimSpace(fromAnonymousId)
	toRegisteredId = strings.TrimSpace(toRegisteredId)
	if fromAnonymousId == "" || toRegisteredId == "" || fromAnonymousId == toRegisteredId {
		return nil, fmt.Errorf("%w: distinct anonymous and registered ids are required", rag.ErrInvalidRequest)
	}

	uow := m.uowFactory.NewUnitOfWork(ctx)

	from, err := uow.IdentityRepository().FindById(ctx, fromAnonymousId)
	if err != nil {
		return nil, fmt.Errorf("%w: find identity: %w", rag.ErrPersistenceFailed, err)
	}
	if from != nil && from.Kind != entity.IdentityAnonymous {
		return nil, fmt.Errorf("%w: %s is not an anonymous identity", rag.ErrInvalidRequest, fromAnonymousId)
	}

	if err := uow.IdentityRepository().Upsert(ctx, &entity.Identity{Id: toRegisteredId, Kind: entity.IdentityRegistered}); err != nil {
		return nil, fmt.Errorf("%w: record identity: %w", rag.ErrPersistenceFailed, err)
	}

	sessions, err := uow.SessionRepository().FindAllByOwner(ctx, fromAnonymousId, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: find sessions: %w", rag.ErrPersistenceFailed, err)
	}

	var (
		mu       sync.Mutex
		migrated = make([]uuid.UUID, 0, len(sessions))
		failed   []rag.MigrationFailure
	)

	var g errgroup.Group
	g.SetLimit(m.config.Parallelism)
	for _, s := range sessions {
		sessionId := s.Id
		g.Go(func() error {
			err := m.migrate(ctx, sessionId, toRegisteredId)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, rag.MigrationFailure{SessionId: sessionId, Err: err})
				return nil
			}
			migrated = append(migrated, sessionId)
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(migrated, compareIds)
	slices.SortFunc(failed, func(a, b rag.MigrationFailure) int { return compareIds(a.SessionId, b.SessionId) })

	details := map[string]interface{}{
		"from":     fromAnonymousId,
		"to":       toRegisteredId,
		"migrated": len(migrated),
		"failed":   len(failed),
	}

	if len(failed) > 0 {
		m.logger.Warn(module, "Ownership transfer partially completed", details)
		return migrated, &rag.PartialMigrationError{Migrated: migrated, Failed: failed}
	}

	if err := uow.IdentityRepository().Link(ctx, fromAnonymousId, toRegisteredId); err != nil {
		return migrated, fmt.Errorf("%w: link identity: %w", rag.ErrPersistenceFailed, err)
	}

	m.logger.Info(module, "Ownership transferred", details)
	m.emitter.Emit(ctx, events.TypeSessionOwnershipTransferred, map[string]interface{}{
		"from":        fromAnonymousId,
		"to":          toRegisteredId,
		"session_ids": idStrings(migrated),
	})
	return migrated, nil
}

func (m *OwnershipManager) migrate(ctx context.Context, sessionId uuid.UUID, newOwnerId string) error {
	unlock, err := m.locker.Lock(ctx, lock.SessionKey(sessionId))
	if err != nil {
		return err
	}
	defer unlock()

	return m.log.Reassign(ctx, sessionId, newOwnerId)
}

// ListSessions returns the owner's sessions newest first. Anonymous owners
// see at most one.
func (m *OwnershipManager) ListSessions(ctx context.Context, ownerId string, limit int) ([]*entity.Session, error) {
	ownerId = strings.TrimSpace(ownerId)
	if ownerId == "" {
		return nil, fmt.Errorf("%w: owner id is required", rag.ErrInvalidRequest)
	}

	uow := m.uowFactory.NewUnitOfWork(ctx)

	identity, err := uow.IdentityRepository().FindById(ctx, ownerId)
	if err != nil {
		return nil, fmt.Errorf("%w: find identity: %w", rag.ErrPersistenceFailed, err)
	}
	if identity == nil {
		return []*entity.Session{}, nil
	}
	if identity.Kind == entity.IdentityAnonymous {
		limit = 1
	}

	sessions, err := uow.SessionRepository().FindAllByOwner(ctx, ownerId, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: find sessions: %w", rag.ErrPersistenceFailed, err)
	}
	return sessions, nil
}

func compareIds(a, b uuid.UUID) int {
	return strings.Compare(a.String(), b.String())
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
