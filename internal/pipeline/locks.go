package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// LocalLocks is an in-process domain.LockManager used when no Redis is
// configured. The TTL is ignored.
type LocalLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLocks returns an empty LocalLocks.
func NewLocalLocks() *LocalLocks {
	return &LocalLocks{held: make(map[string]bool)}
}

func (l *LocalLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, fmt.Errorf("pipeline: lock %s: %w", key, domain.ErrLockHeld)
	}
	l.held[key] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

var _ domain.LockManager = (*LocalLocks)(nil)
