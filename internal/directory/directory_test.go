package directory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mssp-monitor/internal/falcon"
	"mssp-monitor/internal/model"
)

// fakeManagementAPI serves child CIDs out of a slice, pageSize at a time.
type fakeManagementAPI struct {
	children     []string
	names        map[string]string
	queryErr     error
	namesErr     error
	queryCalls   int
	staleTotal   int // when > 0, reported instead of the real total
	emptyAfter   int // when > 0, pages after this many calls are empty
	batchesAsked [][]string
}

func (f *fakeManagementAPI) QueryChildren(_ context.Context, limit, offset int) ([]string, int, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, 0, f.queryErr
	}
	total := len(f.children)
	if f.staleTotal > 0 {
		total = f.staleTotal
	}
	if f.emptyAfter > 0 && f.queryCalls > f.emptyAfter {
		return nil, total, nil
	}
	if offset >= len(f.children) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(f.children) {
		end = len(f.children)
	}
	return f.children[offset:end], total, nil
}

func (f *fakeManagementAPI) GetChildren(_ context.Context, ids []string) ([]falcon.ChildTenant, error) {
	f.batchesAsked = append(f.batchesAsked, ids)
	if f.namesErr != nil {
		return nil, f.namesErr
	}
	out := make([]falcon.ChildTenant, 0, len(ids))
	for _, id := range ids {
		if name, ok := f.names[id]; ok {
			out = append(out, falcon.ChildTenant{ChildCID: id, Name: name})
		}
	}
	return out, nil
}

func newTestDirectory(api managementAPI, pinned ...string) *Directory {
	set := make(map[model.TenantID]struct{}, len(pinned))
	for _, p := range pinned {
		set[model.NormalizeID(p)] = struct{}{}
	}
	return New(api, "parent-cid", "Parent Org", set, zap.NewNop())
}

func TestDiscoverResolvesNamesAndPinning(t *testing.T) {
	api := &fakeManagementAPI{
		children: []string{"child-a", "child-b"},
		names:    map[string]string{"child-a": "Acme", "child-b": "Globex"},
	}
	d := newTestDirectory(api, "CHILD-B")

	tenants, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, tenants, 3)

	require.Equal(t, "Acme", tenants["child-a"].Name)
	require.False(t, tenants["child-a"].IsPinned)
	require.Equal(t, "Globex", tenants["child-b"].Name)
	require.True(t, tenants["child-b"].IsPinned, "pinned match is case-insensitive")
}

func TestDiscoverPaginatesPastOnePage(t *testing.T) {
	children := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		children = append(children, fmt.Sprintf("child-%03d", i))
	}
	api := &fakeManagementAPI{children: children, names: map[string]string{}}
	d := newTestDirectory(api)

	tenants, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, tenants, 251)
	require.Equal(t, 3, api.queryCalls)
}

func TestDiscoverStopsOnEmptyPageDespiteStaleTotal(t *testing.T) {
	api := &fakeManagementAPI{
		children:   []string{"child-a"},
		names:      map[string]string{},
		staleTotal: 10000,
		emptyAfter: 1,
	}
	d := newTestDirectory(api)

	tenants, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	require.Equal(t, 2, api.queryCalls, "one data page, one empty page, then stop")
}

func TestDiscoverDeduplicatesChildCIDs(t *testing.T) {
	api := &fakeManagementAPI{
		children: []string{"child-a", "CHILD-A", " child-a "},
		names:    map[string]string{},
	}
	d := newTestDirectory(api)

	tenants, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, tenants, 2)
}

func TestDiscoverQueryFailureAbortsDiscovery(t *testing.T) {
	api := &fakeManagementAPI{queryErr: errors.New("falcon unavailable")}
	d := newTestDirectory(api)

	_, err := d.Discover(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "query children")
}

func TestDiscoverNameResolutionFailureDegradesToCID(t *testing.T) {
	api := &fakeManagementAPI{
		children: []string{"child-a"},
		namesErr: errors.New("entities endpoint down"),
	}
	d := newTestDirectory(api)

	tenants, err := d.Discover(context.Background())
	require.NoError(t, err, "name resolution failure must not fail discovery")
	require.Equal(t, "child-a", tenants["child-a"].Name)
}

func TestDiscoverParentAlwaysPresentExactlyOnce(t *testing.T) {
	// Discovery reporting the parent CID as a child must not shadow the
	// configured display name.
	api := &fakeManagementAPI{
		children: []string{"parent-cid", "child-a"},
		names:    map[string]string{"parent-cid": "Wrong Name", "child-a": "Acme"},
	}
	d := newTestDirectory(api)

	tenants, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, tenants, 2)
	require.Equal(t, "Parent Org", tenants["parent-cid"].Name)
	require.True(t, tenants["parent-cid"].IsParent)
}

func TestDiscoverEmptyFleetStillHasParent(t *testing.T) {
	api := &fakeManagementAPI{names: map[string]string{}}
	d := newTestDirectory(api)

	tenants, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	require.True(t, tenants["parent-cid"].IsParent)
}
