package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// RegionUpdater runs one cycle for a region.
type RegionUpdater interface {
	UpdateRegion(ctx context.Context, region domain.Region) (RegionResult, error)
}

// Alerter receives operator alerts. Event is "region_updated" or
// "region_failed".
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Orchestrator runs the update cycles of every configured region and the
// optional publisher.
type Orchestrator struct {
	updater     RegionUpdater
	regions     []domain.Region
	publisher   *Publisher
	interval    time.Duration
	publishCron string
	trigger     <-chan struct{}
	alerts      Alerter
	logger      *slog.Logger

	// cycleMu is held for a whole RunOnce and by the publisher, so a
	// publish never sees stores and meta files from different cycles.
	cycleMu sync.Mutex
}

// NewOrchestrator creates an Orchestrator. publisher may be nil; when set it
// only publishes between cycles.
func NewOrchestrator(
	updater RegionUpdater,
	regions []domain.Region,
	publisher *Publisher,
	interval time.Duration,
	publishCron string,
	logger *slog.Logger,
) *Orchestrator {
	o := &Orchestrator{
		updater:     updater,
		regions:     regions,
		publisher:   publisher,
		interval:    interval,
		publishCron: publishCron,
		logger:      logger.With(slog.String("component", "orchestrator")),
	}
	if publisher != nil {
		publisher.WithGuard(&o.cycleMu)
	}
	return o
}

// WithTrigger makes RunLoop run an extra cycle whenever ch receives.
func (o *Orchestrator) WithTrigger(ch <-chan struct{}) *Orchestrator {
	o.trigger = ch
	return o
}

// WithAlerts sends an alert after every region cycle.
func (o *Orchestrator) WithAlerts(a Alerter) *Orchestrator {
	o.alerts = a
	return o
}

// RunOnce updates every region concurrently. Regions own disjoint store
// files, so they never contend for a store. A failing region does not stop
// the others; all failures are returned joined.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	errs := make([]error, len(o.regions))
	var g errgroup.Group
	for i, region := range o.regions {
		g.Go(func() error {
			res, err := o.updater.UpdateRegion(ctx, region)
			if err != nil {
				errs[i] = fmt.Errorf("region %s: %w", region, err)
				o.alert(ctx, "region_failed",
					fmt.Sprintf("auctiondb: region %s failed", region), err.Error())
				return nil
			}
			o.logger.Info("region updated",
				slog.String("region", string(region)),
				slog.Int("files", res.Files),
				slog.Int("failed", res.Failed),
			)
			o.alert(ctx, "region_updated",
				fmt.Sprintf("auctiondb: region %s updated", region),
				fmt.Sprintf("cycle %s: %d files saved, %d failed in %ds",
					res.CycleID, res.Files, res.Failed, res.EndTS-res.StartTS))
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (o *Orchestrator) alert(ctx context.Context, event, title, message string) {
	if o.alerts == nil {
		return
	}
	if err := o.alerts.Notify(ctx, event, title, message); err != nil {
		o.logger.Warn("alert failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// RunLoop runs RunOnce immediately and then on every interval tick until
// ctx is cancelled.
func (o *Orchestrator) RunLoop(ctx context.Context) error {
	if err := o.RunOnce(ctx); err != nil {
		o.logger.Error("update run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("update loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := o.RunOnce(ctx); err != nil {
				o.logger.Error("update run failed", slog.String("error", err.Error()))
			}
		case <-o.trigger:
			o.logger.Info("update triggered")
			if err := o.RunOnce(ctx); err != nil {
				o.logger.Error("update run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Run starts the update loop and, when configured, the publisher cron. It
// returns when ctx is cancelled or a loop fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("orchestrator starting",
		slog.Duration("interval", o.interval),
		slog.Int("regions", len(o.regions)),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.RunLoop(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("update loop: %w", err)
	})

	if o.publisher != nil && o.publishCron != "" {
		g.Go(func() error {
			err := o.publisher.RunCron(ctx, o.publishCron)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("publisher: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("orchestrator stopped cleanly")
	return nil
}
