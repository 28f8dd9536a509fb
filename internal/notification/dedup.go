package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Deduper remembers consumed event ids. The bus delivers at least once, so a
// consumer that is not idempotent by nature guards with one of these.
type Deduper interface {
	// FirstSeen reports whether id has not been consumed before, recording it
	// as consumed in the same step.
	FirstSeen(ctx context.Context, id uuid.UUID) (bool, error)
}

// RedisDeduper shares the seen-set across consumer instances via SETNX.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, id uuid.UUID) (bool, error) {
	key := fmt.Sprintf("notification:consumed:%s", id)
	return d.client.SetNX(ctx, key, 1, d.ttl).Result()
}

// MemoryDeduper is a process-local seen-set for tests and single-instance runs.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[uuid.UUID]struct{}
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[uuid.UUID]struct{})}
}

func (d *MemoryDeduper) FirstSeen(ctx context.Context, id uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return false, nil
	}
	d.seen[id] = struct{}{}
	return true, nil
}
