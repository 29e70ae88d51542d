package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var errLockHeld = errors.New("lock held by another owner")

// releaseScript deletes the key only if it still carries our token, so an
// expired lease taken over by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript pushes the expiry out only while the key still carries our
// token. It returns 0 once the lease has been lost.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker holds per-session leases in Redis (SET NX PX) so several API
// instances serialise on the same session. A held lease is renewed every
// ttl/3 until it is released.
type RedisLocker struct {
	client    redis.UniversalClient
	ttl       time.Duration
	pollEvery time.Duration
	prefix    string
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{
		client:    client,
		ttl:       ttl,
		pollEvery: 50 * time.Millisecond,
		prefix:    "rag:lock:",
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	acquire := func() error {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("redis lock %s: %w", redisKey, err))
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}

	poll := backoff.WithContext(backoff.NewConstantBackOff(l.pollEvery), ctx)
	if err := backoff.Retry(acquire, poll); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	watchCtx, stopWatch := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.keepAlive(watchCtx, redisKey, token)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopWatch()
			<-done
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			// A failed release is left to expire with the TTL.
			_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err()
		})
	}, nil
}

func (l *RedisLocker) keepAlive(ctx context.Context, redisKey, token string) {
	interval := l.ttl / 3
	if interval <= 0 {
		interval = l.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renewed, err := renewScript.Run(ctx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
			if err != nil {
				// Transient; the next tick tries again while the lease lasts.
				continue
			}
			if renewed == 0 {
				return
			}
		}
	}
}
