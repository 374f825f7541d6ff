package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unipath/unipath-api/internal/models"
	appErrors "github.com/unipath/unipath-api/pkg/errors"
)

type profileRepoMock struct {
	sections   map[models.SectionID]*models.ProfileSection
	references bool
}

func newProfileRepoMock() *profileRepoMock {
	return &profileRepoMock{sections: map[models.SectionID]*models.ProfileSection{}}
}

func (m *profileRepoMock) ListByStudent(_ context.Context, _ string) ([]models.ProfileSection, error) {
	var out []models.ProfileSection
	for _, section := range m.sections {
		out = append(out, *section)
	}
	return out, nil
}

func (m *profileRepoMock) FindSection(_ context.Context, _ string, sectionID models.SectionID) (*models.ProfileSection, error) {
	section, ok := m.sections[sectionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return section, nil
}

func (m *profileRepoMock) Upsert(_ context.Context, section *models.ProfileSection) error {
	m.sections[section.SectionID] = section
	return nil
}

func (m *profileRepoMock) SetCompleted(_ context.Context, _ string, sectionID models.SectionID, completed bool, _ time.Time) error {
	section, ok := m.sections[sectionID]
	if !ok {
		return sql.ErrNoRows
	}
	section.Completed = completed
	return nil
}

func (m *profileRepoMock) Delete(_ context.Context, _ string, sectionID models.SectionID) error {
	if _, ok := m.sections[sectionID]; !ok {
		return sql.ErrNoRows
	}
	delete(m.sections, sectionID)
	return nil
}

func (m *profileRepoMock) HasReferences(_ context.Context, _ string) (bool, error) {
	return m.references, nil
}

func (m *profileRepoMock) SetReferences(_ context.Context, _ string, ready bool, _ time.Time) error {
	m.references = ready
	return nil
}

func TestProfileServiceListFillsPlaceholders(t *testing.T) {
	repo := newProfileRepoMock()
	repo.sections[models.SectionPersonal] = &models.ProfileSection{
		StudentID: "stu-1",
		SectionID: models.SectionPersonal,
		Completed: true,
	}
	svc := NewProfileService(repo, nil, nil)

	sections, err := svc.List(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, sections, 7)
	require.Equal(t, models.SectionPersonal, sections[0].SectionID)
	require.True(t, sections[0].Completed)
	require.False(t, sections[1].Completed)
}

func TestProfileServiceSaveValidatesVariant(t *testing.T) {
	svc := NewProfileService(newProfileRepoMock(), nil, nil)
	ctx := context.Background()

	valid := json.RawMessage(`{"first_name":"Mari","last_name":"Tamm"}`)
	section, err := svc.Save(ctx, "stu-1", models.SectionPersonal, SaveSectionRequest{Data: valid, Completed: true})
	require.NoError(t, err)
	require.True(t, section.Completed)

	missingRequired := json.RawMessage(`{"first_name":"Mari"}`)
	_, err = svc.Save(ctx, "stu-1", models.SectionPersonal, SaveSectionRequest{Data: missingRequired})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	wrongVariant := json.RawMessage(`{"interests":["physics"]}`)
	_, err = svc.Save(ctx, "stu-1", models.SectionPersonal, SaveSectionRequest{Data: wrongVariant})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestProfileServiceSaveStatementMinLength(t *testing.T) {
	svc := NewProfileService(newProfileRepoMock(), nil, nil)

	short := json.RawMessage(`{"text":"too short"}`)
	_, err := svc.Save(context.Background(), "stu-1", models.SectionStatement, SaveSectionRequest{Data: short})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestProfileServiceUnknownSection(t *testing.T) {
	svc := NewProfileService(newProfileRepoMock(), nil, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, "stu-1", "hobbies")
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Save(ctx, "stu-1", "hobbies", SaveSectionRequest{Data: json.RawMessage(`{}`)})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestProfileServiceSetCompletedMissingSection(t *testing.T) {
	svc := NewProfileService(newProfileRepoMock(), nil, nil)

	err := svc.SetCompleted(context.Background(), "stu-1", models.SectionEducation, true)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestProfileServiceReferencesFlag(t *testing.T) {
	repo := newProfileRepoMock()
	svc := NewProfileService(repo, nil, nil)
	ctx := context.Background()

	ready, err := svc.References(ctx, "stu-1")
	require.NoError(t, err)
	require.False(t, ready)

	require.NoError(t, svc.SetReferences(ctx, "stu-1", true))
	ready, err = svc.References(ctx, "stu-1")
	require.NoError(t, err)
	require.True(t, ready)
}
