package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// ResponseCache implements domain.ResponseCache with plain string keys that
// Redis expires on its own.
//
// Key schema:
//
//	{prefix}http:{key} - response body
type ResponseCache struct {
	c *Client
}

// NewResponseCache creates a ResponseCache.
func NewResponseCache(c *Client) *ResponseCache {
	return &ResponseCache{c: c}
}

// Get returns the cached body under key.
func (rc *ResponseCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := rc.c.rdb.Get(ctx, rc.c.key("http", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get response %s: %w", key, err)
	}
	return data, nil
}

// Set stores data under key for ttl.
func (rc *ResponseCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := rc.c.rdb.Set(ctx, rc.c.key("http", key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set response %s: %w", key, err)
	}
	return nil
}

var _ domain.ResponseCache = (*ResponseCache)(nil)
