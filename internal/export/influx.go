// internal/export/influx.go
package export

import (
	"context"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"mssp-monitor/internal/config"
	"mssp-monitor/internal/metrics"
	"mssp-monitor/internal/model"
)

// InfluxSink writes per-tenant points and the pinned summary to InfluxDB.
type InfluxSink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	logger *zap.Logger
}

func NewInfluxSink(cfg config.InfluxDBConfig, logger *zap.Logger) *InfluxSink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &InfluxSink{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger: logger,
	}
}

// Ping checks that the InfluxDB instance is reachable and healthy.
func (s *InfluxSink) Ping(ctx context.Context) error {
	health, err := s.client.Health(ctx)
	if err != nil {
		return err
	}
	if health.Status != "pass" {
		msg := "unknown"
		if health.Message != nil {
			msg = *health.Message
		}
		return &SinkError{Sink: "influxdb", Reason: msg}
	}
	return nil
}

// WriteTenants writes one crowdstrike_hosts point per tenant. A failed
// write is logged and skipped; the remaining tenants still get their
// points, and the caller is never interrupted.
func (s *InfluxSink) WriteTenants(ctx context.Context, tenants model.TenantMap, samples map[model.TenantID]model.MetricSample, parentCID model.TenantID, ts time.Time) {
	for id, rec := range tenants {
		sample := samples[id]
		point := influxdb2.NewPoint(
			"crowdstrike_hosts",
			map[string]string{
				"cid":         string(id),
				"tenant_name": rec.Name,
				"is_pinned":   strconv.FormatBool(rec.IsPinned),
				"parent_cid":  string(parentCID),
			},
			map[string]interface{}{
				"host_count": sample.Count,
			},
			ts,
		)
		if err := s.write.WritePoint(ctx, point); err != nil {
			s.logger.Error("influxdb write failed",
				zap.String("cid", string(id)),
				zap.Error(err))
			metrics.SinkErrors.WithLabelValues("influxdb").Inc()
		}
	}
}

// WriteSummary writes the per-cycle pinned aggregate point.
func (s *InfluxSink) WriteSummary(ctx context.Context, total, threshold int, over bool, ts time.Time) {
	overInt := 0
	if over {
		overInt = 1
	}
	point := influxdb2.NewPoint(
		"crowdstrike_pinned_summary",
		map[string]string{
			"threshold": strconv.Itoa(threshold),
		},
		map[string]interface{}{
			"total_count":    total,
			"over_threshold": overInt,
		},
		ts,
	)
	if err := s.write.WritePoint(ctx, point); err != nil {
		s.logger.Error("influxdb pinned summary write failed", zap.Error(err))
		metrics.SinkErrors.WithLabelValues("influxdb").Inc()
		return
	}
	s.logger.Info("influxdb pinned summary written",
		zap.Int("total", total),
		zap.Int("threshold", threshold),
		zap.Bool("over_threshold", over))
}

// Close releases the underlying InfluxDB client.
func (s *InfluxSink) Close() {
	s.client.Close()
}
