// internal/monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mssp-monitor/internal/diff"
	"mssp-monitor/internal/metrics"
	"mssp-monitor/internal/model"
	"mssp-monitor/internal/report"
)

// The supervisor depends on narrow interfaces so tests can run many
// cycles with fakes and no network or wall-clock time.

type discoverer interface {
	Discover(ctx context.Context) (model.TenantMap, error)
}

type sampler interface {
	Collect(ctx context.Context, tenants model.TenantMap) map[model.TenantID]model.MetricSample
}

type snapshotStore interface {
	Load() (model.Snapshot, error)
	Save(model.Snapshot) error
}

type timeSeriesSink interface {
	WriteTenants(ctx context.Context, tenants model.TenantMap, samples map[model.TenantID]model.MetricSample, parentCID model.TenantID, ts time.Time)
	WriteSummary(ctx context.Context, total, threshold int, over bool, ts time.Time)
}

type gaugePusher interface {
	Push(ctx context.Context, tenants model.TenantMap, samples map[model.TenantID]model.MetricSample, pinnedTotal int) error
}

// Config carries the loop settings the supervisor needs.
type Config struct {
	ParentCID model.TenantID
	Threshold int
	Interval  time.Duration
	Cooldown  time.Duration
	// ReportTo receives the per-cycle terminal report; nil disables it.
	ReportTo io.Writer
}

// Monitor owns the discover -> fetch -> diff -> export -> persist loop for
// the whole process.
type Monitor struct {
	directory discoverer
	collector sampler
	store     snapshotStore
	influx    timeSeriesSink
	gauges    gaugePusher

	parentCID model.TenantID
	threshold int
	interval  time.Duration
	cooldown  time.Duration
	reportW   io.Writer
	logger    *zap.Logger

	// now and after are injected for deterministic tests.
	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	trigger chan struct{}

	mu   sync.RWMutex
	last *model.CycleResult
}

func New(dir discoverer, col sampler, store snapshotStore, influx timeSeriesSink, gauges gaugePusher, cfg Config, logger *zap.Logger) *Monitor {
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.ReportTo == nil {
		cfg.ReportTo = os.Stdout
	}
	return &Monitor{
		directory: dir,
		collector: col,
		store:     store,
		influx:    influx,
		gauges:    gauges,
		parentCID: cfg.ParentCID,
		threshold: cfg.Threshold,
		interval:  cfg.Interval,
		cooldown:  cfg.Cooldown,
		reportW:   cfg.ReportTo,
		logger:    logger,
		now:       time.Now,
		after:     time.After,
		trigger:   make(chan struct{}, 1),
	}
}

// Run executes scan cycles until ctx is cancelled. A failed cycle is
// logged and retried after the cooldown; the loop itself never dies from a
// cycle error.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var wait time.Duration
		res, err := m.RunCycle(ctx)
		switch {
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return err
		case err != nil:
			m.logger.Error("scan cycle failed, retrying after cooldown",
				zap.Error(err),
				zap.Duration("cooldown", m.cooldown))
			metrics.CyclesTotal.WithLabelValues("error").Inc()
			wait = m.cooldown
		default:
			m.setLast(res)
			metrics.CyclesTotal.WithLabelValues("ok").Inc()
			m.logger.Info("scan cycle complete, sleeping",
				zap.Duration("interval", m.interval),
				zap.Time("next_scan", m.now().Add(m.interval)))
			wait = m.interval
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.after(wait):
		case <-m.trigger:
			m.logger.Info("manual scan trigger received")
		}
	}
}

// RunCycle performs one full discover-fetch-diff-export-persist pass.
// Per-tenant and per-sink failures are absorbed inside the cycle; only
// discovery failure or cancellation aborts it.
func (m *Monitor) RunCycle(ctx context.Context) (*model.CycleResult, error) {
	cycleID := uuid.NewString()
	log := m.logger.With(zap.String("cycle_id", cycleID))
	started := m.now()
	log.Info("starting scan cycle")

	tenants, err := m.directory.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("tenant discovery: %w", err)
	}

	previous, err := m.store.Load()
	if err != nil {
		// A corrupt state file should not stop the scan; diff against
		// empty and let this cycle's persist replace it.
		log.Warn("failed to load previous snapshot, diffing against empty state", zap.Error(err))
		previous = model.Snapshot{}
	}

	samples := m.collector.Collect(ctx, tenants)
	if err := ctx.Err(); err != nil {
		// Cancelled mid-fetch: never export or persist a partial cycle.
		return nil, err
	}

	diffs, pinnedTotal, over := diff.Compute(tenants, samples, previous, m.threshold)

	failed := 0
	for _, sample := range samples {
		if !sample.OK {
			failed++
		}
	}

	// The two sinks are independent: either one failing never blocks the
	// other, and neither blocks persistence.
	ts := m.now()
	m.influx.WriteTenants(ctx, tenants, samples, m.parentCID, ts)
	m.influx.WriteSummary(ctx, pinnedTotal, m.threshold, over, ts)

	if err := m.gauges.Push(ctx, tenants, samples, pinnedTotal); err != nil {
		log.Error("pushgateway push failed, gauge batch lost for this cycle", zap.Error(err))
		metrics.SinkErrors.WithLabelValues("pushgateway").Inc()
	}

	res := &model.CycleResult{
		CycleID:       cycleID,
		StartedAt:     started,
		FinishedAt:    m.now(),
		Tenants:       tenants,
		Diffs:         diffs,
		PinnedTotal:   pinnedTotal,
		Threshold:     m.threshold,
		OverThreshold: over,
		FailedFetches: failed,
	}

	report.Render(m.reportW, *res)

	if err := ctx.Err(); err != nil {
		// Cancelled before persistence began: leave the previous snapshot
		// in place for the next full cycle.
		return nil, err
	}

	// Persist strictly after the export attempts: the snapshot is the
	// baseline for the next cycle's delta, not part of this export.
	if err := m.store.Save(diff.NextSnapshot(samples)); err != nil {
		// Metrics are already out; the next cycle simply diffs against
		// the stale snapshot.
		log.Error("snapshot persist failed", zap.Error(err))
	}

	metrics.CycleDuration.Observe(m.now().Sub(started).Seconds())
	log.Info("scan cycle finished",
		zap.Int("tenants", len(tenants)),
		zap.Int("pinned_total", pinnedTotal),
		zap.Bool("over_threshold", over),
		zap.Int("failed_fetches", failed))
	return res, nil
}

// TriggerNow wakes a sleeping monitor so the next cycle starts
// immediately. It never blocks; overlapping triggers coalesce.
func (m *Monitor) TriggerNow() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// LastResult returns the most recent completed cycle, or nil before the
// first one finishes.
func (m *Monitor) LastResult() *model.CycleResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *Monitor) setLast(res *model.CycleResult) {
	m.mu.Lock()
	m.last = res
	m.mu.Unlock()
}
