// Package dedup suppresses replayed webhook updates. Telegram redelivers an
// update until the webhook answers 200, so a slow handler can see the same
// update twice; recording seen update ids makes the webhook idempotent.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Repo records processed update ids. MarkSeen returns true the first time an
// id is recorded and false for replays. Implementations expire entries after
// Window; Telegram retries well inside it.
type Repo interface {
	MarkSeen(ctx context.Context, updateID int64) (first bool, err error)
}

// Window is how long a processed update id stays recorded.
const Window = 6 * time.Hour

// RedisRepo records update ids in Redis, surviving restarts and shared
// across replicas.
type RedisRepo struct {
	rdb *redis.Client
}

func NewRedisRepo(rdb *redis.Client) *RedisRepo {
	return &RedisRepo{rdb: rdb}
}

func (r *RedisRepo) MarkSeen(ctx context.Context, updateID int64) (bool, error) {
	key := fmt.Sprintf("dedup:update:%d", updateID)
	ok, err := r.rdb.SetNX(ctx, key, 1, Window).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return ok, nil
}

// MemoryRepo is the fallback when Redis is not configured and the test repo.
type MemoryRepo struct {
	mu   sync.Mutex
	seen map[int64]time.Time

	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{seen: make(map[int64]time.Time), clock: time.Now}
}

func (r *MemoryRepo) MarkSeen(_ context.Context, updateID int64) (bool, error) {
	now := r.clock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if at, ok := r.seen[updateID]; ok && now.Sub(at) < Window {
		return false, nil
	}
	r.seen[updateID] = now

	// Opportunistic cleanup; the map stays small at bot-scale traffic.
	for id, at := range r.seen {
		if now.Sub(at) >= Window {
			delete(r.seen, id)
		}
	}
	return true, nil
}
