package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_SerialisesSameKey(t *testing.T) {
	l := NewLocalLocker()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "session:a")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.held())
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker()

	unlockA, err := l.Lock(context.Background(), "session:a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(ctx, "session:b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalLocker_ContextCancelWhileWaiting(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.Lock(context.Background(), "session:a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "session:a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, l.held())
}

func TestSessionKey(t *testing.T) {
	id := uuid.MustParse("6f1c2a52-8f37-4a4e-9a38-2f0e0b7b8f10")
	assert.Equal(t, "session:6f1c2a52-8f37-4a4e-9a38-2f0e0b7b8f10", SessionKey(id))
}

func TestRedisLocker_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	l := NewRedisLocker(client, 5*time.Second)
	key := "test:" + uuid.NewString()

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, key)
	assert.Error(t, err)

	unlock()

	unlock2, err := l.Lock(context.Background(), key)
	require.NoError(t, err)
	unlock2()
}

func newMiniRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, ttl), mr
}

func TestRedisLocker_RenewsLeaseWhileHeld(t *testing.T) {
	const ttl = 300 * time.Millisecond
	l, mr := newMiniRedisLocker(t, ttl)
	key := SessionKey(uuid.New())
	redisKey := l.prefix + key

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	// Age the lease past two thirds of its life; the holder must push it back out.
	mr.FastForward(200 * time.Millisecond)
	require.Eventually(t, func() bool {
		return mr.TTL(redisKey) >= 250*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond)

	// Without renewal the key would be gone after a total of 400ms.
	mr.FastForward(200 * time.Millisecond)
	assert.True(t, mr.Exists(redisKey))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, key)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.False(t, mr.Exists(redisKey))
}

func TestRedisLocker_LostLeaseIsNotRenewedOrReleased(t *testing.T) {
	const ttl = 300 * time.Millisecond
	l, mr := newMiniRedisLocker(t, ttl)
	key := SessionKey(uuid.New())
	redisKey := l.prefix + key

	unlock, err := l.Lock(context.Background(), key)
	require.NoError(t, err)

	// Another owner took the key after our lease lapsed.
	require.NoError(t, mr.Set(redisKey, "someone-else"))
	mr.SetTTL(redisKey, 100*time.Millisecond)

	time.Sleep(ttl)
	assert.LessOrEqual(t, mr.TTL(redisKey), 100*time.Millisecond)

	unlock()
	got, err := mr.Get(redisKey)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
