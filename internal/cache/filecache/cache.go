// Package filecache keeps upstream responses in a domain.FileStore when no
// Redis is configured. Each entry is one file holding its expiry followed by
// the body.
package filecache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

const headerLen = 8

// Cache implements domain.ResponseCache on top of a FileStore. Expired
// entries are left in place and overwritten by the next Set.
type Cache struct {
	files domain.FileStore
	now   func() time.Time
}

// New creates a Cache writing into files.
func New(files domain.FileStore) *Cache {
	return &Cache{files: files, now: time.Now}
}

func fileName(key string) string { return key + ".cache" }

// Get returns the body under key unless it has expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.files.Read(ctx, fileName(key))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("filecache: get %s: %w", key, err)
	}
	if len(data) < headerLen {
		return nil, domain.ErrNotFound
	}
	expires := time.Unix(0, int64(binary.BigEndian.Uint64(data[:headerLen])))
	if !c.now().Before(expires) {
		return nil, domain.ErrNotFound
	}
	return data[headerLen:], nil
}

// Set stores data under key for ttl.
func (c *Cache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	buf := make([]byte, headerLen+len(data))
	binary.BigEndian.PutUint64(buf, uint64(c.now().Add(ttl).UnixNano()))
	copy(buf[headerLen:], data)
	if err := c.files.Write(ctx, fileName(key), buf); err != nil {
		return fmt.Errorf("filecache: set %s: %w", key, err)
	}
	return nil
}

var _ domain.ResponseCache = (*Cache)(nil)
