// internal/collector/collector.go
package collector

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"mssp-monitor/internal/metrics"
	"mssp-monitor/internal/model"
)

// deviceCounter is the slice of the falcon client the collector depends on.
type deviceCounter interface {
	QueryDeviceCount(ctx context.Context, memberCID string) (int, error)
}

// Collector fetches the endpoint count for every tenant in a cycle. Each
// fetch is isolated: one tenant failing never affects another's sample.
type Collector struct {
	api     deviceCounter
	workers int
	now     func() time.Time
	logger  *zap.Logger
}

func New(api deviceCounter, workers int, logger *zap.Logger) *Collector {
	if workers < 1 {
		workers = 1
	}
	return &Collector{
		api:     api,
		workers: workers,
		now:     time.Now,
		logger:  logger,
	}
}

// Collect fans the per-tenant queries out over a bounded worker set and
// returns one sample per tenant. It never returns an error: a failed fetch
// becomes an OK=false sample and the rest of the fleet proceeds.
func (c *Collector) Collect(ctx context.Context, tenants model.TenantMap) map[model.TenantID]model.MetricSample {
	jobs := make(chan model.TenantRecord, len(tenants))

	samples := make(map[model.TenantID]model.MetricSample, len(tenants))
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				sample := c.fetchOne(ctx, rec)
				mu.Lock()
				samples[rec.ID] = sample
				mu.Unlock()
			}
		}()
	}

	for _, rec := range tenants {
		jobs <- rec
	}
	close(jobs)
	wg.Wait()

	return samples
}

func (c *Collector) fetchOne(ctx context.Context, rec model.TenantRecord) model.MetricSample {
	// The parent tenant is queried without member scoping.
	memberCID := string(rec.ID)
	if rec.IsParent {
		memberCID = ""
	}

	count, err := c.api.QueryDeviceCount(ctx, memberCID)
	if err != nil {
		c.logger.Warn("endpoint count fetch failed",
			zap.String("cid", string(rec.ID)),
			zap.String("tenant", rec.Name),
			zap.Error(err))
		metrics.FetchFailures.Inc()
		return model.MetricSample{TenantID: rec.ID, FetchedAt: c.now(), OK: false}
	}

	return model.MetricSample{TenantID: rec.ID, Count: count, FetchedAt: c.now(), OK: true}
}
