package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/auctiondb/internal/exporter"
	"github.com/alanyoungcy/auctiondb/internal/market"
	"github.com/alanyoungcy/auctiondb/internal/pipeline"
	"github.com/alanyoungcy/auctiondb/internal/server"
	"github.com/alanyoungcy/auctiondb/internal/server/handler"
	"github.com/alanyoungcy/auctiondb/internal/server/ws"
)

// UpdateMode runs one update cycle over every configured region and exits.
func (a *App) UpdateMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting update mode")

	updater, err := a.newUpdater(deps, nil)
	if err != nil {
		return fmt.Errorf("update mode: %w", err)
	}
	orch, err := a.newOrchestrator(updater, deps)
	if err != nil {
		return fmt.Errorf("update mode: %w", err)
	}
	if err := orch.RunOnce(ctx); err != nil {
		return fmt.Errorf("update mode: %w", err)
	}

	if deps.Remote != nil && a.cfg.Publish.Enabled {
		n, err := pipeline.NewPublisher(deps.Files.Files(), deps.Remote, a.logger).Run(ctx)
		if err != nil {
			return fmt.Errorf("update mode: publish: %w", err)
		}
		a.logger.InfoContext(ctx, "published store files", slog.Int("files", n))
	}
	return nil
}

// DaemonMode runs update cycles on the configured interval, the publisher
// cron and, when enabled, the HTTP server with its websocket hub.
func (a *App) DaemonMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting daemon mode")

	g, ctx := errgroup.WithContext(ctx)

	// In-process updates feed the hub directly; the Redis bus is for other
	// processes.
	var hub *ws.Hub
	if a.cfg.Server.Enabled {
		hub = ws.NewHub(nil, a.cfg.Mode, a.logger)
		g.Go(func() error {
			return ignoreCanceled(hub.Run(ctx))
		})
	}

	updater, err := a.newUpdater(deps, hub)
	if err != nil {
		return fmt.Errorf("daemon mode: %w", err)
	}
	orch, err := a.newOrchestrator(updater, deps)
	if err != nil {
		return fmt.Errorf("daemon mode: %w", err)
	}

	var triggerCh chan struct{}
	if a.cfg.Server.Enabled {
		triggerCh = make(chan struct{}, 1)
		orch.WithTrigger(triggerCh)
	}

	g.Go(func() error {
		return orch.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, hub, triggerCh)
	}

	return g.Wait()
}

// ServeMode runs the read-only query server. Cycle events from updaters in
// other processes arrive over Redis when it is enabled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	var source ws.CycleSubscriber
	if deps.EventBus != nil {
		source = deps.EventBus
	}
	hub := ws.NewHub(source, a.cfg.Mode, a.logger)
	g.Go(func() error {
		return ignoreCanceled(hub.Run(ctx))
	})

	a.startHTTPServer(ctx, g, deps, hub, nil)

	return g.Wait()
}

// ExportMode rebuilds the export of every configured region from the saved
// store files.
func (a *App) ExportMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting export mode")

	regions, err := a.cfg.Regions()
	if err != nil {
		return fmt.Errorf("export mode: %w", err)
	}
	updater, err := a.newUpdater(deps, nil)
	if err != nil {
		return fmt.Errorf("export mode: %w", err)
	}

	var errs []error
	for _, region := range regions {
		res, err := updater.ExportRegion(ctx, region)
		if err != nil {
			errs = append(errs, fmt.Errorf("region %s: %w", region, err))
			continue
		}
		a.logger.InfoContext(ctx, "region exported",
			slog.String("region", string(region)),
			slog.Int("files", res.Files),
		)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("export mode: %w", err)
	}
	return nil
}

// newUpdater builds the Updater. hub may be nil.
func (a *App) newUpdater(deps *Dependencies, hub *ws.Hub) (*pipeline.Updater, error) {
	version, err := a.cfg.GameVersion()
	if err != nil {
		return nil, err
	}
	factions, err := a.cfg.Factions()
	if err != nil {
		return nil, err
	}

	tuning := market.DefaultTuning()
	var agg *market.Aggregator
	if deps.Bonus != nil {
		keyer := market.NewKeyer(deps.Bonus, a.logger)
		agg = market.NewAggregator(keyer, market.NewEstimator(tuning), a.logger)
	}

	var events pipeline.FanOut
	if hub != nil {
		events = append(events, hub)
	}
	if deps.EventBus != nil {
		events = append(events, deps.EventBus)
	}

	ud := pipeline.UpdaterDeps{
		Source:     deps.Source,
		Files:      deps.Files,
		Forker:     deps.Forker,
		Aggregator: agg,
		Locks:      deps.Locks,
		Cycles:     deps.Cycles,
		Values:     deps.Values,
		Tuning:     tuning,
	}
	if len(events) > 0 {
		ud.Events = events
	}
	if deps.Exports != nil {
		ud.Exporter = exporter.NewTSM(tuning, a.logger)
		ud.Exports = deps.Exports
	}

	return pipeline.NewUpdater(pipeline.UpdaterConfig{
		GameVersion:      version,
		Factions:         factions,
		RecordsExpiresIn: int64(a.cfg.Update.RecordsExpiresIn.Duration / time.Second),
		Compaction:       a.cfg.Update.Compaction,
		LockTTL:          a.cfg.Redis.LockTTL.Duration,
		SnapshotInterval: a.cfg.Update.SnapshotInterval.Duration,
		MaxSnapshots:     a.cfg.Update.MaxSnapshots,
	}, ud, a.logger), nil
}

func (a *App) newOrchestrator(updater *pipeline.Updater, deps *Dependencies) (*pipeline.Orchestrator, error) {
	regions, err := a.cfg.Regions()
	if err != nil {
		return nil, err
	}
	var publisher *pipeline.Publisher
	if deps.Remote != nil && a.cfg.Publish.Enabled {
		publisher = pipeline.NewPublisher(deps.Files.Files(), deps.Remote, a.logger)
	}
	orch := pipeline.NewOrchestrator(
		updater,
		regions,
		publisher,
		a.cfg.Update.Interval.Duration,
		a.cfg.Publish.Cron,
		a.logger,
	)
	if deps.Alerts != nil {
		orch.WithAlerts(deps.Alerts)
	}
	return orch, nil
}

// startHTTPServer adds an HTTP server goroutine to the given errgroup. The
// server is shut down gracefully when the context is cancelled. triggerCh is
// optional; when non-nil, POST /api/update/trigger sends on it to request
// one update cycle.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	hub *ws.Hub,
	triggerCh chan<- struct{},
) {
	health := handler.NewHealthHandler(a.logger)
	for name, check := range deps.Checks {
		health.WithCheck(name, check)
	}
	handlers := server.Handlers{
		Health: health,
		Status: handler.NewStatusHandler(a.cfg.Mode, a.cfg.Update.Regions),
		Files:  handler.NewFileHandler(deps.Files, a.logger),
		Items:  handler.NewItemHandler(deps.Files, market.DefaultTuning(), a.logger),
	}
	if deps.Values != nil {
		handlers.Values = handler.NewValueHandler(deps.Values, a.logger)
	}
	if deps.Cycles != nil {
		handlers.Cycles = handler.NewCycleHandler(deps.Cycles, a.logger)
	}
	if triggerCh != nil {
		handlers.Pipeline = handler.NewPipelineHandler(a.logger).WithTriggerChannel(triggerCh)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateBurst:   a.cfg.Server.RateBurst,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
