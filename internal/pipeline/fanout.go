package pipeline

import (
	"context"
	"errors"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// FanOut delivers every cycle event to each publisher in turn. A failing
// publisher does not stop the others.
type FanOut []domain.EventPublisher

// PublishCycle implements domain.EventPublisher.
func (f FanOut) PublishCycle(ctx context.Context, ev domain.CycleEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishCycle(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ domain.EventPublisher = FanOut(nil)
