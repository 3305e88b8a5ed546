package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/synapsedt/synapsedt-api/internal/dto"
	"github.com/synapsedt/synapsedt-api/internal/models"
	appErrors "github.com/synapsedt/synapsedt-api/pkg/errors"
)

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// cacheRecorder tracks cache effectiveness for observability.
type cacheRecorder interface {
	RecordCacheOperation(hit bool)
}

// DashboardService derives version statistics on demand. Everything it
// returns is recomputed from the child items; the only state it holds is an
// optional read-through cache.
type DashboardService struct {
	versions versionFinder
	items    versionItemLister
	cache    dashboardCache
	cacheTTL time.Duration
	metrics  cacheRecorder
	logger   *zap.Logger
}

// DashboardServiceOption configures the service.
type DashboardServiceOption func(*DashboardService)

// WithCacheMetrics wires cache hit/miss counters.
func WithCacheMetrics(rec cacheRecorder) DashboardServiceOption {
	return func(s *DashboardService) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// NewDashboardService constructs the service. A nil cache disables caching.
func NewDashboardService(versions versionFinder, items versionItemLister, cache dashboardCache, cacheTTL time.Duration, logger *zap.Logger, opts ...DashboardServiceOption) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &DashboardService{
		versions: versions,
		items:    items,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

func dashboardCacheKey(versionID string) string {
	return fmt.Sprintf("dashboard:version:%s", versionID)
}

// Get assembles the dashboard payload for a version.
func (s *DashboardService) Get(ctx context.Context, versionID string) (*dto.VersionDashboardResponse, error) {
	if s.cache != nil {
		var cached dto.VersionDashboardResponse
		err := s.cache.Get(ctx, dashboardCacheKey(versionID), &cached)
		if err == nil {
			if s.metrics != nil {
				s.metrics.RecordCacheOperation(true)
			}
			return &cached, nil
		}
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(false)
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	version, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found")
	}
	items, err := s.items.ListByVersion(ctx, models.ItemFilter{VersionID: versionID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version items")
	}

	response := buildDashboard(version, items)

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey(versionID), response, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return response, nil
}

// InvalidateVersion drops the cached dashboard for a version. Called after
// every summary refresh so readers never see stale counters.
func (s *DashboardService) InvalidateVersion(ctx context.Context, versionID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, dashboardCacheKey(versionID)); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.String("version_id", versionID), zap.Error(err))
	}
}

func buildDashboard(version *models.Version, items []models.VersionItem) *dto.VersionDashboardResponse {
	byType := make(map[models.ItemType]*dto.ItemTypeBreakdown, len(models.ItemTypes))
	for _, itemType := range models.ItemTypes {
		byType[itemType] = &dto.ItemTypeBreakdown{ItemType: itemType}
	}

	total := 0
	decided := 0
	for i := range items {
		item := &items[i]
		breakdown := byType[item.ItemType]
		if breakdown == nil {
			continue
		}
		total++
		breakdown.Total++
		switch item.Status {
		case models.ItemStatusApproved:
			breakdown.Approved++
		case models.ItemStatusRejected:
			breakdown.Rejected++
		default:
			breakdown.Pending++
		}
		if item.Decided() {
			decided++
		}
	}

	completion := 0.0
	if total > 0 {
		completion = math.Round(float64(decided)/float64(total)*100*100) / 100
	}

	requirements := SubmissionRequirements(items)
	if requirements == nil {
		requirements = []string{}
	}

	breakdowns := make([]dto.ItemTypeBreakdown, 0, len(models.ItemTypes))
	for _, itemType := range models.ItemTypes {
		breakdowns = append(breakdowns, *byType[itemType])
	}

	return &dto.VersionDashboardResponse{
		Version:                version,
		ItemsByType:            breakdowns,
		TotalItems:             total,
		DecidedItems:           decided,
		PendingDecisions:       total - decided,
		CompletionPercentage:   completion,
		CanSubmit:              len(requirements) == 0 && version.Status == models.VersionStatusDraft,
		SubmissionRequirements: requirements,
	}
}
