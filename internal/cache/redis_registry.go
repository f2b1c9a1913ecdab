package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cache_invalid:"

// redisRegistry backs the registry with a shared key-value store using
// native TTL expiry, so invalidation marks are visible across concurrent
// process instances.
type redisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRegistry builds the shared backend. A non-positive ttl uses
// DefaultTTL.
func NewRedisRegistry(client *redis.Client, ttl time.Duration) Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisRegistry{client: client, ttl: ttl}
}

// MarkInvalidated stamps one key per cache key, expiring via native TTL.
// The stored value is the mark's epoch-millisecond timestamp, kept for
// operator inspection only.
func (r *redisRegistry) MarkInvalidated(ctx context.Context, scope string, keys []string) error {
	stamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	pipe := r.client.Pipeline()
	for _, key := range keys {
		pipe.Set(ctx, redisKeyPrefix+fullKey(scope, key), stamp, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// IsInvalidated reports whether a live mark exists; expiry is the store's
// concern, so no timestamp comparison happens here.
func (r *redisRegistry) IsInvalidated(ctx context.Context, scope, key string) (bool, error) {
	n, err := r.client.Exists(ctx, redisKeyPrefix+fullKey(scope, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkFresh removes a mark unconditionally.
func (r *redisRegistry) MarkFresh(ctx context.Context, scope, key string) error {
	return r.client.Del(ctx, redisKeyPrefix+fullKey(scope, key)).Err()
}
