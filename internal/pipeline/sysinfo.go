package pipeline

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// SysSnapshot is one host load sample, both values in percent.
type SysSnapshot struct {
	CPU float64 `json:"cpu"`
	Mem float64 `json:"mem"`
}

// hostSpecs describes the machine running the cycle. Fields the host does
// not report are left out.
func hostSpecs(ctx context.Context) map[string]any {
	specs := map[string]any{
		"go_version": runtime.Version(),
		"platform":   runtime.GOOS + "-" + runtime.GOARCH,
		"cpu_count":  runtime.NumCPU(),
	}
	if info, err := host.InfoWithContext(ctx); err == nil {
		specs["platform"] = info.Platform + "-" + info.PlatformVersion + "-" + info.KernelArch
		specs["hostname"] = info.Hostname
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		specs["cpu_count"] = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		specs["memory_total"] = vm.Total
	}
	return specs
}

// sampleHost measures CPU usage since the previous call and current memory
// usage.
func sampleHost(ctx context.Context) (SysSnapshot, error) {
	var s SysSnapshot
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return s, err
	}
	if len(pct) > 0 {
		s.CPU = pct[0]
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, err
	}
	s.Mem = vm.UsedPercent
	return s, nil
}

// sysMonitor samples host load in the background while a cycle runs. It
// keeps at most max samples, dropping the oldest.
type sysMonitor struct {
	sample   func(context.Context) (SysSnapshot, error)
	interval time.Duration
	max      int
	logger   *slog.Logger

	mu        sync.Mutex
	snapshots []SysSnapshot

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newSysMonitor(sample func(context.Context) (SysSnapshot, error), interval time.Duration, max int, logger *slog.Logger) *sysMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if max < 1 {
		max = 1
	}
	return &sysMonitor{sample: sample, interval: interval, max: max, logger: logger}
}

// start takes a first sample and keeps sampling every interval until stop.
func (m *sysMonitor) start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			m.record(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (m *sysMonitor) record(ctx context.Context) {
	s, err := m.sample(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Debug("host sample failed", slog.String("error", err.Error()))
		}
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == m.max {
		copy(m.snapshots, m.snapshots[1:])
		m.snapshots = m.snapshots[:m.max-1]
	}
	m.snapshots = append(m.snapshots, s)
}

// stop ends sampling and returns the samples taken, oldest first. Calling
// it again returns the same samples.
func (m *sysMonitor) stop() []SysSnapshot {
	m.once.Do(func() {
		if m.cancel != nil {
			m.cancel()
			<-m.done
		}
	})
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SysSnapshot, len(m.snapshots))
	copy(out, m.snapshots)
	return out
}
