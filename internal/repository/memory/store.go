package memory

import (
	"sync"

	"rag-chatbot-be/internal/entity"

	"github.com/google/uuid"
)

// Store is the shared state behind the in-memory repositories. It backs
// tests and single-process deployments (MESSAGE_LOG_BACKEND=memory).
type Store struct {
	mu         sync.RWMutex
	sessions   map[uuid.UUID]*entity.Session
	turns      map[uuid.UUID][]*entity.Turn
	identities map[string]*entity.Identity
}

func NewStore() *Store {
	return &Store{
		sessions:   make(map[uuid.UUID]*entity.Session),
		turns:      make(map[uuid.UUID][]*entity.Turn),
		identities: make(map[string]*entity.Identity),
	}
}

func copySession(s *entity.Session) *entity.Session {
	c := *s
	if s.UpdatedAt != nil {
		t := *s.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}

func copyIdentity(i *entity.Identity) *entity.Identity {
	c := *i
	if i.LinkedTo != nil {
		l := *i.LinkedTo
		c.LinkedTo = &l
	}
	return &c
}
