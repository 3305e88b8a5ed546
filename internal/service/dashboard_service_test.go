package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/synapsedt/synapsedt-api/internal/models"
	appErrors "github.com/synapsedt/synapsedt-api/pkg/errors"
)

type cacheStub struct {
	entries map[string][]byte
	sets    int
	gets    int
}

func newCacheStub() *cacheStub {
	return &cacheStub{entries: make(map[string][]byte)}
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	c.gets++
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	c.sets++
	return nil
}

func (c *cacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	delete(c.entries, pattern)
	return nil
}

func TestDashboardComputesStatistics(t *testing.T) {
	versions := newVersionRepoStub()
	versions.versions["ver-1"] = &models.Version{ID: "ver-1", PhaseID: "phase-1", Status: models.VersionStatusDraft}
	items := &itemListerStub{items: map[string][]models.VersionItem{
		"ver-1": {
			decidedItem("ver-1", models.ItemTypeDataSource, models.ItemStatusApproved),
			decidedItem("ver-1", models.ItemTypeAttribute, models.ItemStatusRejected),
			{VersionID: "ver-1", ItemType: models.ItemTypeAttribute, Status: models.ItemStatusPending},
		},
	}}
	svc := NewDashboardService(versions, items, nil, time.Minute, nil)

	dashboard, err := svc.Get(context.Background(), "ver-1")
	require.NoError(t, err)
	require.Equal(t, 3, dashboard.TotalItems)
	require.Equal(t, 2, dashboard.DecidedItems)
	require.Equal(t, 1, dashboard.PendingDecisions)
	require.InDelta(t, 66.67, dashboard.CompletionPercentage, 0.001)
	require.False(t, dashboard.CanSubmit)
	require.Contains(t, dashboard.SubmissionRequirements, "All attribute items must have tester decisions")

	for _, breakdown := range dashboard.ItemsByType {
		if breakdown.ItemType == models.ItemTypeAttribute {
			require.Equal(t, 2, breakdown.Total)
			require.Equal(t, 1, breakdown.Rejected)
			require.Equal(t, 1, breakdown.Pending)
		}
	}
}

func TestDashboardEmptyVersion(t *testing.T) {
	versions := newVersionRepoStub()
	versions.versions["ver-1"] = &models.Version{ID: "ver-1", PhaseID: "phase-1", Status: models.VersionStatusDraft}
	items := &itemListerStub{items: map[string][]models.VersionItem{}}
	svc := NewDashboardService(versions, items, nil, time.Minute, nil)

	dashboard, err := svc.Get(context.Background(), "ver-1")
	require.NoError(t, err)
	require.Equal(t, 0, dashboard.TotalItems)
	require.Equal(t, 0.0, dashboard.CompletionPercentage)
	require.False(t, dashboard.CanSubmit)
	require.Contains(t, dashboard.SubmissionRequirements, "Version must have at least one approved component")
}

func TestDashboardCanSubmitRequiresDraft(t *testing.T) {
	versions := newVersionRepoStub()
	versions.versions["ver-1"] = &models.Version{ID: "ver-1", PhaseID: "phase-1", Status: models.VersionStatusPending}
	items := &itemListerStub{items: map[string][]models.VersionItem{
		"ver-1": {decidedItem("ver-1", models.ItemTypeSample, models.ItemStatusApproved)},
	}}
	svc := NewDashboardService(versions, items, nil, time.Minute, nil)

	dashboard, err := svc.Get(context.Background(), "ver-1")
	require.NoError(t, err)
	require.Empty(t, dashboard.SubmissionRequirements)
	require.False(t, dashboard.CanSubmit)
}

func TestDashboardCachesAndInvalidates(t *testing.T) {
	versions := newVersionRepoStub()
	versions.versions["ver-1"] = &models.Version{ID: "ver-1", PhaseID: "phase-1", Status: models.VersionStatusDraft}
	items := &itemListerStub{items: map[string][]models.VersionItem{
		"ver-1": {decidedItem("ver-1", models.ItemTypeSample, models.ItemStatusApproved)},
	}}
	cache := newCacheStub()
	svc := NewDashboardService(versions, items, cache, time.Minute, nil)

	first, err := svc.Get(context.Background(), "ver-1")
	require.NoError(t, err)
	require.True(t, first.CanSubmit)
	require.Equal(t, 1, cache.sets)

	// Second read comes from cache even after the item set changed.
	items.items["ver-1"] = append(items.items["ver-1"], models.VersionItem{VersionID: "ver-1", ItemType: models.ItemTypeSample, Status: models.ItemStatusPending})
	cached, err := svc.Get(context.Background(), "ver-1")
	require.NoError(t, err)
	require.Equal(t, first.TotalItems, cached.TotalItems)
	require.Equal(t, 1, cache.sets)

	// Invalidation forces a recompute.
	svc.InvalidateVersion(context.Background(), "ver-1")
	fresh, err := svc.Get(context.Background(), "ver-1")
	require.NoError(t, err)
	require.Equal(t, 2, fresh.TotalItems)
	require.Equal(t, 2, cache.sets)
}
