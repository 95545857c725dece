// internal/diff/diff.go
package diff

import (
	"sort"

	"mssp-monitor/internal/model"
)

// Compute derives per-tenant deltas and the pinned aggregate for one
// cycle. It is pure: identical inputs always yield identical outputs, and
// results are sorted by tenant ID so callers get a stable order.
//
// Only OK samples contribute to the pinned total; a failed fetch for a
// pinned tenant counts as 0 for that cycle.
func Compute(tenants model.TenantMap, samples map[model.TenantID]model.MetricSample, previous model.Snapshot, threshold int) ([]model.DiffResult, int, bool) {
	diffs := make([]model.DiffResult, 0, len(tenants))
	pinnedTotal := 0

	for id, rec := range tenants {
		sample := samples[id]
		prev := previous[id]
		diffs = append(diffs, model.DiffResult{
			TenantID: id,
			Previous: prev,
			Current:  sample.Count,
			Delta:    sample.Count - prev,
			OK:       sample.OK,
		})
		if rec.IsPinned && sample.OK {
			pinnedTotal += sample.Count
		}
	}

	sort.Slice(diffs, func(i, j int) bool { return diffs[i].TenantID < diffs[j].TenantID })

	return diffs, pinnedTotal, pinnedTotal > threshold
}

// NextSnapshot builds the snapshot persisted at the end of a cycle. It is
// a complete replacement: only tenants fetched this cycle appear, so
// tenants that vanished from discovery are dropped rather than retained.
func NextSnapshot(samples map[model.TenantID]model.MetricSample) model.Snapshot {
	snap := make(model.Snapshot, len(samples))
	for id, sample := range samples {
		snap[id] = sample.Count
	}
	return snap
}
