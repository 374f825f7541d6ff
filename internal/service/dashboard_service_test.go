package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unipath/unipath-api/internal/models"
	appErrors "github.com/unipath/unipath-api/pkg/errors"
)

type dashboardAppsMock struct {
	counts    []models.StatusCount
	recent    []models.ApplicationDetail
	listCalls int
}

func (m *dashboardAppsMock) List(_ context.Context, _ models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	m.listCalls++
	return m.recent, len(m.recent), nil
}

func (m *dashboardAppsMock) CountByStatus(_ context.Context, _ string) ([]models.StatusCount, error) {
	return m.counts, nil
}

func newDashboardFixture(enabled bool) (*DashboardService, *dashboardAppsMock) {
	apps := &dashboardAppsMock{
		counts: []models.StatusCount{{Status: models.StatusDraft, Count: 2}, {Status: models.StatusSubmitted, Count: 1}},
		recent: []models.ApplicationDetail{{Application: models.Application{ID: "app-1", Status: models.StatusDraft}}},
	}
	profiles := &matchProfileMock{sections: completedSections(models.SectionPersonal, models.SectionEducation)}
	matches := NewMatchService(profiles, &matchUniversityMock{}, nil)
	cache := NewCacheService(newCacheRepoMock(), nil, time.Minute, nil, true)
	return NewDashboardService(apps, matches, cache, time.Minute, enabled, nil), apps
}

func TestDashboardServiceSummary(t *testing.T) {
	svc, _ := newDashboardFixture(true)

	summary, cacheHit, err := svc.Summary(context.Background(), "stu-1")
	require.NoError(t, err)
	require.False(t, cacheHit)
	require.Equal(t, 2, summary.ProfileStrength.CompletedSections)
	require.Len(t, summary.ApplicationCounts, 2)
	require.Len(t, summary.RecentApplications, 1)
	require.False(t, summary.GeneratedAt.IsZero())
}

func TestDashboardServiceSummaryCached(t *testing.T) {
	svc, apps := newDashboardFixture(true)
	ctx := context.Background()

	_, hit, err := svc.Summary(ctx, "stu-1")
	require.NoError(t, err)
	require.False(t, hit)
	_, hit, err = svc.Summary(ctx, "stu-1")
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 1, apps.listCalls)

	svc.Invalidate(ctx, "stu-1")
	_, hit, err = svc.Summary(ctx, "stu-1")
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, 2, apps.listCalls)
}

func TestDashboardServiceDisabled(t *testing.T) {
	svc, _ := newDashboardFixture(false)

	_, _, err := svc.Summary(context.Background(), "stu-1")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}
