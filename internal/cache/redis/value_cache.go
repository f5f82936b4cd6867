package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// ValueCache implements domain.ValueCache with one hash per store file.
//
// Key schema:
//
//	{prefix}values:{file} - hash of item string to JSON ItemValues
type ValueCache struct {
	c   *Client
	ttl time.Duration
}

// NewValueCache creates a ValueCache whose hashes expire after ttl.
func NewValueCache(c *Client, ttl time.Duration) *ValueCache {
	return &ValueCache{c: c, ttl: ttl}
}

// Publish replaces the readouts of file.
func (vc *ValueCache) Publish(ctx context.Context, file string, values []domain.ItemValues) error {
	key := vc.c.key("values", file)
	fields := make(map[string]interface{}, len(values))
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("redis: marshal values %s: %w", v.ItemString, err)
		}
		fields[v.ItemString] = data
	}

	pipe := vc.c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields)
		if vc.ttl > 0 {
			pipe.Expire(ctx, key, vc.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish values %s: %w", file, err)
	}
	return nil
}

// Get returns the readout of one item string. It returns domain.ErrNotFound
// when either the file or the item is unknown.
func (vc *ValueCache) Get(ctx context.Context, file string, itemString string) (domain.ItemValues, error) {
	data, err := vc.c.rdb.HGet(ctx, vc.c.key("values", file), itemString).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ItemValues{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ItemValues{}, fmt.Errorf("redis: get values %s %s: %w", file, itemString, err)
	}
	var v domain.ItemValues
	if err := json.Unmarshal(data, &v); err != nil {
		return domain.ItemValues{}, fmt.Errorf("redis: unmarshal values %s %s: %w", file, itemString, err)
	}
	return v, nil
}

var _ domain.ValueCache = (*ValueCache)(nil)
