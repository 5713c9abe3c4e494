package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only if it still holds this worker's
// token, so a worker that outlived its TTL cannot drop a lock another
// worker has since acquired.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// SweepLock implements ports.SweepLock using Redis SET NX. Two workers
// ticking the same sweep at once resolve to a single runner; the loser
// skips the tick and the sweep's own status preconditions cover the rest.
// Each acquire stores a per-acquire token and release is compare-and-delete
// on that token.
type SweepLock struct {
	client *goredis.Client
	prefix string

	mu     sync.Mutex
	tokens map[string]string
}

// NewSweepLock creates a new Redis-backed sweep lock.
func NewSweepLock(client *goredis.Client) *SweepLock {
	return &SweepLock{
		client: client,
		prefix: "sweep:lock:",
		tokens: make(map[string]string),
	}
}

// Acquire attempts to take the named lock. Returns false when another
// worker already holds it.
func (s *SweepLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.prefix+name, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis sweep lock acquire: %w", err)
	}
	if ok {
		s.mu.Lock()
		s.tokens[name] = token
		s.mu.Unlock()
	}
	return ok, nil
}

// Release drops the named lock if this instance still owns it. A no-op
// when the TTL already expired and another worker took the lock over.
func (s *SweepLock) Release(ctx context.Context, name string) error {
	s.mu.Lock()
	token, ok := s.tokens[name]
	delete(s.tokens, name)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, s.client, []string{s.prefix + name}, token).Err(); err != nil && err != goredis.Nil {
		return fmt.Errorf("redis sweep lock release: %w", err)
	}
	return nil
}
