// Package synclock serializes sync invocations per (user, provider).
// Exactly one export or import touches a user's provider state at a
// time; a second caller is rejected rather than queued.
package synclock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	syncerrors "github.com/labkit-dev/calsync/errors"
)

// Locker hands out mutual-exclusion locks keyed by an arbitrary string.
// Acquire returns ErrSyncInProgress when the key is already held. The
// returned release func is safe to call once; locks also expire after
// the ttl so a crashed holder cannot wedge the key forever.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Key builds the canonical lock key for a user and provider.
func Key(userID, provider string) string {
	return fmt.Sprintf("calsync:lock:%s:%s", userID, provider)
}

// RedisLocker implements Locker with SET NX PX, for deployments running
// more than one instance against the same database.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

// releaseScript deletes the key only when this holder still owns it, so
// a lock that expired and was re-acquired by someone else survives a
// late release.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	holder := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, holder, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !ok {
		return nil, syncerrors.ErrSyncInProgress
	}
	var once sync.Once
	release := func() {
		once.Do(func() {
			// Best effort; the TTL cleans up if Redis is unreachable.
			_, _ = releaseScript.Run(context.Background(), l.client, []string{key}, holder).Result()
		})
	}
	return release, nil
}

// MemoryLocker implements Locker in-process, for single-node and test
// use. TTL expiry applies here too: a stale entry past its deadline is
// treated as free.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	ttl   time.Duration
	clock func() time.Time
}

func NewMemoryLocker(ttl time.Duration) *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]time.Time),
		ttl:   ttl,
		clock: time.Now,
	}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if deadline, ok := l.held[key]; ok && now.Before(deadline) {
		return nil, syncerrors.ErrSyncInProgress
	}
	l.held[key] = now.Add(l.ttl)

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}
	return release, nil
}
