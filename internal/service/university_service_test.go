package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/unipath/unipath-api/internal/models"
	appErrors "github.com/unipath/unipath-api/pkg/errors"
)

type cacheRepoMock struct {
	data map[string][]byte
}

func newCacheRepoMock() *cacheRepoMock {
	return &cacheRepoMock{data: map[string][]byte{}}
}

func (m *cacheRepoMock) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *cacheRepoMock) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *cacheRepoMock) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

type universityRepoMock struct {
	universities map[string]*models.University
	listCalls    int
}

func newUniversityRepoMock() *universityRepoMock {
	return &universityRepoMock{universities: map[string]*models.University{}}
}

func (m *universityRepoMock) List(_ context.Context, _ models.UniversityFilter) ([]models.University, int, error) {
	m.listCalls++
	var out []models.University
	for _, u := range m.universities {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *universityRepoMock) FindByID(_ context.Context, id string) (*models.University, error) {
	u, ok := m.universities[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (m *universityRepoMock) Create(_ context.Context, u *models.University) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	m.universities[u.ID] = u
	return nil
}

func (m *universityRepoMock) Update(_ context.Context, u *models.University) error {
	m.universities[u.ID] = u
	return nil
}

func (m *universityRepoMock) Delete(_ context.Context, id string) error {
	if _, ok := m.universities[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.universities, id)
	return nil
}

type programsByUniversityMock struct {
	programs map[string][]models.Program
}

func (m *programsByUniversityMock) ListByUniversity(_ context.Context, universityID string) ([]models.Program, error) {
	return m.programs[universityID], nil
}

func newUniversityFixture() (*UniversityService, *universityRepoMock, *cacheRepoMock) {
	repo := newUniversityRepoMock()
	cacheRepo := newCacheRepoMock()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	programs := &programsByUniversityMock{programs: map[string][]models.Program{}}
	svc := NewUniversityService(repo, programs, cache, nil, time.Minute, nil, nil)
	return svc, repo, cacheRepo
}

func TestUniversityServiceListUsesCache(t *testing.T) {
	svc, repo, _ := newUniversityFixture()
	ctx := context.Background()
	_, err := svc.Create(ctx, "adm-1", SaveUniversityRequest{Name: "Aalto", Country: "Finland"})
	require.NoError(t, err)

	filter := models.UniversityFilter{Page: 1, PageSize: 20}
	first, _, err := svc.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, _, err := svc.List(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.listCalls)
}

func TestUniversityServiceWriteInvalidatesCache(t *testing.T) {
	svc, repo, _ := newUniversityFixture()
	ctx := context.Background()

	filter := models.UniversityFilter{Page: 1, PageSize: 20}
	_, _, err := svc.List(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, 1, repo.listCalls)

	_, err = svc.Create(ctx, "adm-1", SaveUniversityRequest{Name: "Tartu", Country: "Estonia"})
	require.NoError(t, err)

	_, _, err = svc.List(ctx, filter)
	require.NoError(t, err)
	require.Equal(t, 2, repo.listCalls)
}

func TestUniversityServiceGetBundlesPrograms(t *testing.T) {
	repo := newUniversityRepoMock()
	cache := NewCacheService(newCacheRepoMock(), nil, time.Minute, nil, true)
	university := &models.University{ID: uuid.NewString(), Name: "Tartu", Country: "Estonia"}
	repo.universities[university.ID] = university
	programs := &programsByUniversityMock{programs: map[string][]models.Program{
		university.ID: {{ID: uuid.NewString(), UniversityID: university.ID, Name: "CS", Level: models.LevelBachelor}},
	}}
	svc := NewUniversityService(repo, programs, cache, nil, time.Minute, nil, nil)

	detail, err := svc.Get(context.Background(), university.ID)
	require.NoError(t, err)
	require.Equal(t, "Tartu", detail.Name)
	require.Len(t, detail.Programs, 1)
}

func TestUniversityServiceGetMissing(t *testing.T) {
	svc, _, _ := newUniversityFixture()

	_, err := svc.Get(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUniversityServiceCreateValidation(t *testing.T) {
	svc, _, _ := newUniversityFixture()

	_, err := svc.Create(context.Background(), "adm-1", SaveUniversityRequest{Name: "No Country"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}
