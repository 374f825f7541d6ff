package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/unipath/unipath-api/internal/models"
	appErrors "github.com/unipath/unipath-api/pkg/errors"
)

type dashboardApplicationSource interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
	CountByStatus(ctx context.Context, studentID string) ([]models.StatusCount, error)
}

const dashboardCachePrefix = "dashboard"

// DashboardService assembles the per-student overview: profile strength,
// application counts per state and the most recent applications.
type DashboardService struct {
	applications dashboardApplicationSource
	matches      *MatchService
	cache        *CacheService
	cacheTTL     time.Duration
	enabled      bool
	logger       *zap.Logger
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(applications dashboardApplicationSource, matches *MatchService, cache *CacheService, cacheTTL time.Duration, enabled bool, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		applications: applications,
		matches:      matches,
		cache:        cache,
		cacheTTL:     cacheTTL,
		enabled:      enabled,
		logger:       logger,
	}
}

// Enabled reports whether the dashboard endpoint is switched on.
func (s *DashboardService) Enabled() bool {
	return s != nil && s.enabled
}

// Summary builds the overview for one student, served from cache when fresh.
// The second return value reports whether the summary came from cache.
func (s *DashboardService) Summary(ctx context.Context, studentID string) (*models.DashboardSummary, bool, error) {
	if !s.Enabled() {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "dashboard is disabled")
	}
	key := fmt.Sprintf("%s:%s", dashboardCachePrefix, studentID)
	var cached models.DashboardSummary
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	strength, err := s.matches.ProfileStrength(ctx, studentID)
	if err != nil {
		return nil, false, err
	}
	counts, err := s.applications.CountByStatus(ctx, studentID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applications")
	}
	recent, _, err := s.applications.List(ctx, models.ApplicationFilter{StudentID: studentID, PageSize: 5})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent applications")
	}

	summary := &models.DashboardSummary{
		ProfileStrength:    *strength,
		ApplicationCounts:  counts,
		RecentApplications: recent,
		GeneratedAt:        time.Now().UTC(),
	}
	if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
		s.logger.Debug("dashboard cache write skipped", zap.Error(err))
	}
	return summary, false, nil
}

// Invalidate drops the cached summary for a student after a write.
func (s *DashboardService) Invalidate(ctx context.Context, studentID string) {
	if !s.Enabled() {
		return
	}
	key := fmt.Sprintf("%s:%s", dashboardCachePrefix, studentID)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}
