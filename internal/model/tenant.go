// internal/model/tenant.go
package model

import (
	"strings"
	"time"
)

// TenantID is a lowercase-normalized CrowdStrike customer ID (CID).
type TenantID string

// NormalizeID lowercases a raw CID so it can be used as a map key.
// CIDs are case-insensitive on the management plane.
func NormalizeID(raw string) TenantID {
	return TenantID(strings.ToLower(strings.TrimSpace(raw)))
}

// TenantRecord describes one tenant for a single scan cycle. Records are
// rebuilt from scratch every cycle and never carried across cycles.
type TenantRecord struct {
	ID       TenantID `json:"id"`
	Name     string   `json:"name"`
	IsParent bool     `json:"is_parent"`
	IsPinned bool     `json:"is_pinned"`
}

// TenantMap is the authoritative tenant set for one cycle.
type TenantMap map[TenantID]TenantRecord

// MetricSample is the result of one endpoint-count query. When OK is false
// the fetch failed and Count is 0 by convention; consumers that need to
// tell an error apart from a genuine zero must check OK.
type MetricSample struct {
	TenantID  TenantID  `json:"tenant_id"`
	Count     int       `json:"count"`
	FetchedAt time.Time `json:"fetched_at"`
	OK        bool      `json:"ok"`
}

// Snapshot maps each tenant to its last known endpoint count. It is the
// only state that survives across cycles.
type Snapshot map[TenantID]int
