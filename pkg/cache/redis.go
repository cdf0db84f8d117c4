package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexbridge/bridge-middleware/pkg/quote"
)

const keyPrefix = "quote_cache:"

// RedisCache stores ranked results as JSON values with a server-side TTL.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache wraps an existing redis client.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*quote.RankedResult, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var result quote.RankedResult
	if err := json.Unmarshal(data, &result); err != nil {
		// A corrupt entry behaves like a miss; the aggregator overwrites it.
		return nil, ErrMiss
	}
	return &result, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, result *quote.RankedResult, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}
