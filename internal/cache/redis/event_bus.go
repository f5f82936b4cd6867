package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// EventBus fans cycle events out over Redis Pub/Sub so a query server in
// another process can relay them to its websocket clients.
type EventBus struct {
	c       *Client
	channel string
	logger  *slog.Logger
}

// NewEventBus creates an EventBus on the "{prefix}cycles" channel.
func NewEventBus(c *Client, logger *slog.Logger) *EventBus {
	return &EventBus{
		c:       c,
		channel: c.key("cycles"),
		logger:  logger.With(slog.String("component", "event_bus")),
	}
}

// PublishCycle implements domain.EventPublisher.
func (eb *EventBus) PublishCycle(ctx context.Context, ev domain.CycleEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: marshal cycle event: %w", err)
	}
	if err := eb.c.rdb.Publish(ctx, eb.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", eb.channel, err)
	}
	return nil
}

// Subscribe returns a channel of cycle events. The subscription and the
// returned channel are closed when ctx is cancelled.
func (eb *EventBus) Subscribe(ctx context.Context) (<-chan domain.CycleEvent, error) {
	pubsub := eb.c.rdb.Subscribe(ctx, eb.channel)

	// Wait for the subscription confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", eb.channel, err)
	}

	out := make(chan domain.CycleEvent, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev domain.CycleEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					eb.logger.Warn("dropping malformed cycle event", slog.String("error", err.Error()))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

var _ domain.EventPublisher = (*EventBus)(nil)
