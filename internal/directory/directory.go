// internal/directory/directory.go
package directory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mssp-monitor/internal/falcon"
	"mssp-monitor/internal/model"
)

// pageSize bounds both the child-CID pages and the name-resolution batches.
const pageSize = 100

// managementAPI is the slice of the falcon client discovery depends on.
type managementAPI interface {
	QueryChildren(ctx context.Context, limit, offset int) ([]string, int, error)
	GetChildren(ctx context.Context, ids []string) ([]falcon.ChildTenant, error)
}

// Directory discovers the managed tenant set for one cycle.
type Directory struct {
	api        managementAPI
	parentCID  model.TenantID
	parentName string
	pinned     map[model.TenantID]struct{}
	logger     *zap.Logger
}

func New(api managementAPI, parentCID model.TenantID, parentName string, pinned map[model.TenantID]struct{}, logger *zap.Logger) *Directory {
	return &Directory{
		api:        api,
		parentCID:  parentCID,
		parentName: parentName,
		pinned:     pinned,
		logger:     logger,
	}
}

// Discover builds the authoritative tenant map for one cycle: all child
// CIDs the management plane reports, plus the parent tenant, which is
// always present exactly once regardless of what discovery returns.
func (d *Directory) Discover(ctx context.Context) (model.TenantMap, error) {
	ids := make(map[model.TenantID]struct{})
	offset := 0
	for {
		page, total, err := d.api.QueryChildren(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("query children: %w", err)
		}
		for _, raw := range page {
			ids[model.NormalizeID(raw)] = struct{}{}
		}
		offset += len(page)
		// The empty-page check guards against looping forever on a stale
		// or wrong server-side total.
		if offset >= total || len(page) == 0 {
			break
		}
	}

	names := d.resolveNames(ctx, ids)

	tenants := make(model.TenantMap, len(ids)+1)
	for id := range ids {
		name := names[id]
		if name == "" {
			name = string(id)
		}
		tenants[id] = model.TenantRecord{
			ID:       id,
			Name:     name,
			IsPinned: d.isPinned(id),
		}
	}

	// Inserted last so the configured display name wins even if discovery
	// returned the parent CID as a child.
	tenants[d.parentCID] = model.TenantRecord{
		ID:       d.parentCID,
		Name:     d.parentName,
		IsParent: true,
		IsPinned: d.isPinned(d.parentCID),
	}

	d.logger.Info("tenant discovery complete",
		zap.Int("children", len(ids)),
		zap.Int("tenants", len(tenants)))
	return tenants, nil
}

// resolveNames looks up display names in batches. A failed batch degrades
// to CID-as-name for its members rather than failing discovery.
func (d *Directory) resolveNames(ctx context.Context, ids map[model.TenantID]struct{}) map[model.TenantID]string {
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, string(id))
	}

	names := make(map[model.TenantID]string, len(ids))
	for i := 0; i < len(list); i += pageSize {
		end := i + pageSize
		if end > len(list) {
			end = len(list)
		}
		children, err := d.api.GetChildren(ctx, list[i:end])
		if err != nil {
			d.logger.Warn("tenant name resolution failed for batch, keeping CIDs as names",
				zap.Int("batch_start", i), zap.Error(err))
			continue
		}
		for _, ch := range children {
			names[model.NormalizeID(ch.ChildCID)] = ch.Name
		}
	}
	return names
}

func (d *Directory) isPinned(id model.TenantID) bool {
	_, ok := d.pinned[id]
	return ok
}
