package cache

import (
	"context"
	"fmt"

	"github.com/imaginify/imaginify/backend/go-services/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix  = "page:"
	DefaultChannel = "revalidate"
)

// Invalidator drops cached pages below a path after user data changed.
type Invalidator interface {
	Invalidate(ctx context.Context, path string) error
}

// NoopInvalidator is used when no cache is configured.
type NoopInvalidator struct{}

func (NoopInvalidator) Invalidate(ctx context.Context, path string) error {
	logger.Debugf("cache invalidation skipped (no cache configured): %s", path)
	return nil
}

// RedisInvalidator removes cached responses stored under "<prefix><path>*",
// bumps "<prefix>version" and announces the path on a pub/sub channel so
// other replicas holding local copies can drop them too.
type RedisInvalidator struct {
	client  *redis.Client
	prefix  string
	channel string
}

func NewRedisInvalidator(client *redis.Client, prefix, channel string) *RedisInvalidator {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisInvalidator{client: client, prefix: prefix, channel: channel}
}

func (r *RedisInvalidator) Invalidate(ctx context.Context, path string) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+path+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cached pages: %w", err)
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("delete cached pages: %w", err)
		}
	}
	if err := r.client.Incr(ctx, r.prefix+"version").Err(); err != nil {
		return fmt.Errorf("bump cache version: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, path).Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	logger.Debugf("invalidated %d cached page(s) under %s", len(keys), path)
	return nil
}
