package rag

import (
	"errors"
	"fmt"
	"strings"

	"rag-chatbot-be/internal/repository/contract"

	"github.com/google/uuid"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSessionNotFound is shared with the repositories so errors.Is works across layers.
	ErrSessionNotFound = contract.ErrSessionNotFound
	// ErrRetrievalUnavailable never reaches callers of the pipeline; the turn
	// degrades to conversation-only context instead.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	ErrGenerationFailed     = errors.New("generation failed")
	ErrPersistenceFailed    = errors.New("persistence failed")
)

// MigrationFailure pairs a session that could not be reassigned with the cause.
type MigrationFailure struct {
	SessionId uuid.UUID
	Err       error
}

// PartialMigrationError reports an ownership transfer where some sessions moved
// and some did not. Callers retry only the failed ids.
type PartialMigrationError struct {
	Migrated []uuid.UUID
	Failed   []MigrationFailure
}

func (e *PartialMigrationError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.SessionId.String())
	}
	return fmt.Sprintf("partial migration: %d migrated, %d failed [%s]",
		len(e.Migrated), len(e.Failed), strings.Join(ids, ", "))
}

func (e *PartialMigrationError) FailedIds() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(e.Failed))
	for _, f := range e.Failed {
		ids = append(ids, f.SessionId)
	}
	return ids
}
