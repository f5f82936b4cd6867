package domain

import (
	"context"
	"time"
)

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// ItemValues is the readout of one key published for dashboards.
type ItemValues struct {
	ItemString  string `json:"item_string"`
	MarketValue int64  `json:"market_value"`
	Historical  int64  `json:"historical"`
	Recent      int64  `json:"recent"`
	MinBuyout   int64  `json:"min_buyout"`
	NumAuctions int64  `json:"num_auctions"`
}

// ValueCache publishes and serves per-file readouts.
type ValueCache interface {
	Publish(ctx context.Context, file string, values []ItemValues) error
	Get(ctx context.Context, file string, itemString string) (ItemValues, error)
}

// EventPublisher receives a notification after every store update.
type EventPublisher interface {
	PublishCycle(ctx context.Context, ev CycleEvent) error
}

// ResponseCache keeps upstream response bodies for a while. Get returns
// ErrNotFound on a miss or once the entry has expired.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}
