package lock

import (
	"context"

	"github.com/google/uuid"
)

// Locker serialises work on one session. Lock blocks until the scope is held
// or ctx ends; the returned func releases it and is safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

func SessionKey(sessionId uuid.UUID) string {
	return "session:" + sessionId.String()
}
