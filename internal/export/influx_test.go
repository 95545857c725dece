package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mssp-monitor/internal/model"
)

// recordingWriteAPI captures points instead of sending them.
type recordingWriteAPI struct {
	points  []*write.Point
	failFor map[string]bool // by measurement+cid tag
}

func (r *recordingWriteAPI) WritePoint(_ context.Context, points ...*write.Point) error {
	for _, p := range points {
		if r.failFor != nil {
			for _, tag := range p.TagList() {
				if tag.Key == "cid" && r.failFor[tag.Value] {
					return errors.New("write rejected")
				}
			}
		}
		r.points = append(r.points, p)
	}
	return nil
}

func (r *recordingWriteAPI) WriteRecord(_ context.Context, _ ...string) error { return nil }
func (r *recordingWriteAPI) EnableBatching()                                  {}
func (r *recordingWriteAPI) Flush(_ context.Context) error                    { return nil }

func tags(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, tag := range p.TagList() {
		out[tag.Key] = tag.Value
	}
	return out
}

func fields(p *write.Point) map[string]interface{} {
	out := map[string]interface{}{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func TestWriteTenantsOnePointPerTenant(t *testing.T) {
	rec := &recordingWriteAPI{}
	sink := &InfluxSink{write: rec, logger: zap.NewNop()}

	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tenants := model.TenantMap{
		"child-a":    {ID: "child-a", Name: "Acme", IsPinned: true},
		"parent-cid": {ID: "parent-cid", Name: "Parent Org", IsParent: true},
	}
	samples := map[model.TenantID]model.MetricSample{
		"child-a":    {TenantID: "child-a", Count: 12, OK: true},
		"parent-cid": {TenantID: "parent-cid", Count: 99, OK: true},
	}

	sink.WriteTenants(context.Background(), tenants, samples, "parent-cid", ts)

	require.Len(t, rec.points, 2)
	for _, p := range rec.points {
		require.Equal(t, "crowdstrike_hosts", p.Name())
		require.Equal(t, ts, p.Time())
		require.Equal(t, "parent-cid", tags(p)["parent_cid"])
	}

	var acme *write.Point
	for _, p := range rec.points {
		if tags(p)["cid"] == "child-a" {
			acme = p
		}
	}
	require.NotNil(t, acme)
	require.Equal(t, "Acme", tags(acme)["tenant_name"])
	require.Equal(t, "true", tags(acme)["is_pinned"])
	require.Equal(t, int64(12), fields(acme)["host_count"])
}

func TestWriteTenantsFailedPointSkippedOthersWritten(t *testing.T) {
	rec := &recordingWriteAPI{failFor: map[string]bool{"child-b": true}}
	sink := &InfluxSink{write: rec, logger: zap.NewNop()}

	tenants := model.TenantMap{
		"child-a": {ID: "child-a", Name: "Acme"},
		"child-b": {ID: "child-b", Name: "Globex"},
		"child-c": {ID: "child-c", Name: "Initech"},
	}
	samples := map[model.TenantID]model.MetricSample{
		"child-a": {Count: 1, OK: true},
		"child-b": {Count: 2, OK: true},
		"child-c": {Count: 3, OK: true},
	}

	sink.WriteTenants(context.Background(), tenants, samples, "parent-cid", time.Now())

	require.Len(t, rec.points, 2)
	for _, p := range rec.points {
		require.NotEqual(t, "child-b", tags(p)["cid"])
	}
}

func TestWriteSummaryPoint(t *testing.T) {
	rec := &recordingWriteAPI{}
	sink := &InfluxSink{write: rec, logger: zap.NewNop()}

	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	sink.WriteSummary(context.Background(), 400, 375, true, ts)

	require.Len(t, rec.points, 1)
	p := rec.points[0]
	require.Equal(t, "crowdstrike_pinned_summary", p.Name())
	require.Equal(t, "375", tags(p)["threshold"])
	require.Equal(t, int64(400), fields(p)["total_count"])
	require.Equal(t, int64(1), fields(p)["over_threshold"])
}

func TestWriteSummaryUnderThreshold(t *testing.T) {
	rec := &recordingWriteAPI{}
	sink := &InfluxSink{write: rec, logger: zap.NewNop()}

	sink.WriteSummary(context.Background(), 100, 375, false, time.Now())

	require.Len(t, rec.points, 1)
	require.Equal(t, int64(0), fields(rec.points[0])["over_threshold"])
}
