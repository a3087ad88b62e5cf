// Package session limits each browser session to one in-flight model
// request, so rapid re-submission does not produce duplicate billed calls.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned by Acquire when the session already holds the slot.
var ErrBusy = errors.New("session already has a request in flight")

// Guard hands out at most one slot per session key.
type Guard interface {
	// Acquire claims the slot for key. The returned release func must be
	// called exactly once when the request finishes.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{inflight: make(map[string]struct{})}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inflight[key]; busy {
		return nil, ErrBusy
	}
	g.inflight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inflight, key)
			g.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the lock only if it still holds our token, so an
// expired-and-reacquired slot is never released by the previous owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares slots across API replicas. Slots expire after ttl in
// case a replica dies mid-request.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := fmt.Sprintf("medassist:inflight:%s", key)
	token := uuid.NewString()

	ok, err := g.rdb.SetNX(ctx, redisKey, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("session guard: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be done; release on a fresh one.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, g.rdb, []string{redisKey}, token).Err()
		})
	}, nil
}
