package webhooks

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupeTTL bounds how long processed message ids are remembered.
// The sender stops retrying well within a day.
const DefaultDedupeTTL = 24 * time.Hour

// Deduper remembers message ids of deliveries that were answered with 2xx.
type Deduper interface {
	Seen(ctx context.Context, msgID string) (bool, error)
	Mark(ctx context.Context, msgID string) error
}

// RedisDeduper stores processed ids under "<prefix><msgID>" with a TTL.
type RedisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, prefix string, ttl time.Duration) *RedisDeduper {
	if prefix == "" {
		prefix = "webhook:msg:"
	}
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisDeduper{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisDeduper) Seen(ctx context.Context, msgID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.prefix+msgID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisDeduper) Mark(ctx context.Context, msgID string) error {
	return r.client.SetNX(ctx, r.prefix+msgID, time.Now().UTC().Format(time.RFC3339), r.ttl).Err()
}

// MemoryDeduper is the single-process fallback when Redis is not configured.
type MemoryDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &MemoryDeduper{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryDeduper) Seen(ctx context.Context, msgID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.seen[msgID]
	if !ok {
		return false, nil
	}
	if m.now().After(exp) {
		delete(m.seen, msgID)
		return false, nil
	}
	return true, nil
}

func (m *MemoryDeduper) Mark(ctx context.Context, msgID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, exp := range m.seen {
		if now.After(exp) {
			delete(m.seen, id)
		}
	}
	m.seen[msgID] = now.Add(m.ttl)
	return nil
}
