package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/auctiondb/internal/domain"
)

// Publisher copies the local store and meta files to a remote file store,
// where other deployments fork them from.
type Publisher struct {
	local  domain.FileStore
	remote domain.FileStore
	guard  sync.Locker
	logger *slog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(local, remote domain.FileStore, logger *slog.Logger) *Publisher {
	return &Publisher{
		local:  local,
		remote: remote,
		logger: logger.With(slog.String("component", "publisher")),
	}
}

// WithGuard makes Run hold l while copying.
func (p *Publisher) WithGuard(l sync.Locker) *Publisher {
	p.guard = l
	return p
}

// Run uploads every parseable store and meta file and returns how many were
// copied.
func (p *Publisher) Run(ctx context.Context) (int, error) {
	if p.guard != nil {
		p.guard.Lock()
		defer p.guard.Unlock()
	}
	infos, err := p.local.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("pipeline: publish: %w", err)
	}
	var n int
	for _, fi := range infos {
		if _, err := domain.ParseDBFileName(fi.Name); err != nil {
			continue
		}
		data, err := p.local.Read(ctx, fi.Name)
		if err != nil {
			return n, fmt.Errorf("pipeline: publish %s: %w", fi.Name, err)
		}
		if err := p.remote.Write(ctx, fi.Name, data); err != nil {
			return n, fmt.Errorf("pipeline: publish %s: %w", fi.Name, err)
		}
		n++
	}
	p.logger.Info("publish run complete", slog.Int("files", n))
	return n, nil
}

// RunCron publishes on a cron schedule until ctx is cancelled.
func (p *Publisher) RunCron(ctx context.Context, expr string) error {
	sched, err := parseCron(expr)
	if err != nil {
		return err
	}
	p.logger.Info("publisher cron started", slog.String("cron", expr))

	for {
		next := sched.Next(time.Now().UTC())
		if next.IsZero() {
			return fmt.Errorf("pipeline: cron %q never fires", expr)
		}
		wait := time.Until(next)
		p.logger.Debug("publisher waiting", slog.Time("next_run", next), slog.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.logger.Info("publisher cron stopped")
			return ctx.Err()
		case <-timer.C:
			if _, err := p.Run(ctx); err != nil {
				p.logger.Error("publish run failed", slog.String("error", err.Error()))
			}
		}
	}
}
