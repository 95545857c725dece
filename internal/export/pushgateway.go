// internal/export/pushgateway.go
package export

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"mssp-monitor/internal/config"
	"mssp-monitor/internal/model"
)

// SinkError reports a sink that answered but is unhealthy.
type SinkError struct {
	Sink   string
	Reason string
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("%s sink unhealthy: %s", e.Sink, e.Reason)
}

// GaugeSink pushes one gauge batch per cycle to a Prometheus Pushgateway.
type GaugeSink struct {
	url       string
	job       string
	threshold int
	logger    *zap.Logger
}

func NewGaugeSink(cfg config.PushgatewayConfig, threshold int, logger *zap.Logger) *GaugeSink {
	return &GaugeSink{
		url:       cfg.URL,
		job:       cfg.Job,
		threshold: threshold,
		logger:    logger,
	}
}

// Push builds a fresh registry for the cycle and performs a single batch
// push under the configured job. If the push fails the whole batch is lost
// for this cycle; there is no partial retry, and the caller continues.
func (s *GaugeSink) Push(ctx context.Context, tenants model.TenantMap, samples map[model.TenantID]model.MetricSample, pinnedTotal int) error {
	registry := prometheus.NewRegistry()

	hostCount := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crowdstrike_host_count",
			Help: "Active CrowdStrike hosts per tenant over the trailing 7 days",
		},
		[]string{"cid", "tenant_name", "is_pinned"},
	)
	pinnedGauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crowdstrike_pinned_total",
			Help: "Combined host count across all pinned tenants",
		},
		[]string{"threshold"},
	)
	registry.MustRegister(hostCount, pinnedGauge)

	for id, rec := range tenants {
		sample := samples[id]
		hostCount.WithLabelValues(string(id), rec.Name, strconv.FormatBool(rec.IsPinned)).
			Set(float64(sample.Count))
	}
	pinnedGauge.WithLabelValues(strconv.Itoa(s.threshold)).Set(float64(pinnedTotal))

	if err := push.New(s.url, s.job).Gatherer(registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push to gateway: %w", err)
	}

	s.logger.Info("pushgateway batch pushed",
		zap.Int("tenants", len(tenants)),
		zap.Int("pinned_total", pinnedTotal))
	return nil
}
