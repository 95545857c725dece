// internal/model/cycle.go
package model

import "time"

// DiffResult compares a tenant's current count against the previous
// snapshot. Tenants absent from the previous snapshot diff against 0.
type DiffResult struct {
	TenantID TenantID `json:"tenant_id"`
	Previous int      `json:"previous"`
	Current  int      `json:"current"`
	Delta    int      `json:"delta"`
	OK       bool     `json:"ok"`
}

// CycleResult summarizes one completed scan cycle.
type CycleResult struct {
	CycleID       string       `json:"cycle_id"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
	Tenants       TenantMap    `json:"tenants"`
	Diffs         []DiffResult `json:"diffs"`
	PinnedTotal   int          `json:"pinned_total"`
	Threshold     int          `json:"threshold"`
	OverThreshold bool         `json:"over_threshold"`
	FailedFetches int          `json:"failed_fetches"`
}
