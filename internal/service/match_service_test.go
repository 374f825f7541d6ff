package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unipath/unipath-api/internal/models"
)

type matchProfileMock struct {
	sections   []models.ProfileSection
	references bool
}

func (m *matchProfileMock) ListByStudent(_ context.Context, _ string) ([]models.ProfileSection, error) {
	return m.sections, nil
}

func (m *matchProfileMock) HasReferences(_ context.Context, _ string) (bool, error) {
	return m.references, nil
}

type matchUniversityMock struct {
	universities []models.University
}

func (m *matchUniversityMock) ListAll(_ context.Context) ([]models.University, error) {
	return m.universities, nil
}

func completedSections(ids ...models.SectionID) []models.ProfileSection {
	sections := make([]models.ProfileSection, 0, len(ids))
	for _, id := range ids {
		sections = append(sections, models.ProfileSection{SectionID: id, Completed: true})
	}
	return sections
}

func twoUniversities() *matchUniversityMock {
	ranking := 12
	return &matchUniversityMock{universities: []models.University{
		{ID: "uni-1", Name: "Aalto University", Ranking: &ranking},
		{ID: "uni-2", Name: "Unranked College"},
	}}
}

func TestMatchServiceEmptyProfile(t *testing.T) {
	svc := NewMatchService(&matchProfileMock{}, twoUniversities(), nil)

	results, err := svc.ComputeMatches(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, results, 2)

	first := results[0]
	require.Equal(t, 0, first.MatchScore)
	require.Equal(t, "Not Ready", first.MatchLevel)
	require.Equal(t, "#ef4444", first.MatchColor)
	require.Len(t, first.Gaps, 6)
	require.Empty(t, first.Strengths)
	require.Len(t, first.ActionSteps, 6)
	// 2 critical + 3 high + 1 medium open gaps is 9 weeks, rounded up to months.
	require.Equal(t, "3 months", first.EstimatedToReady)
}

func TestMatchServiceCompleteProfile(t *testing.T) {
	profiles := &matchProfileMock{
		sections: completedSections(
			models.SectionPersonal,
			models.SectionEducation,
			models.SectionLanguages,
			models.SectionStatement,
			models.SectionExperience,
		),
		references: true,
	}
	svc := NewMatchService(profiles, twoUniversities(), nil)

	results, err := svc.ComputeMatches(context.Background(), "stu-1")
	require.NoError(t, err)
	for _, result := range results {
		require.Equal(t, 100, result.MatchScore)
		require.Equal(t, "Strong Match", result.MatchLevel)
		require.Empty(t, result.Gaps)
		require.Empty(t, result.ActionSteps)
		require.Len(t, result.Strengths, 6)
		require.Equal(t, "Ready to apply!", result.EstimatedToReady)
	}
}

func TestMatchServicePartialProfile(t *testing.T) {
	profiles := &matchProfileMock{
		sections: completedSections(models.SectionEducation, models.SectionStatement),
	}
	svc := NewMatchService(profiles, twoUniversities(), nil)

	results, err := svc.ComputeMatches(context.Background(), "stu-1")
	require.NoError(t, err)

	first := results[0]
	require.Equal(t, 55, first.MatchScore)
	require.Equal(t, "Developing", first.MatchLevel)
	require.Len(t, first.Gaps, 4)
	require.Len(t, first.Strengths, 2)
	// 3 high + 1 medium open gaps is 5 weeks, rounded up to months.
	require.Equal(t, "2 months", first.EstimatedToReady)
}

func TestMatchServiceInterestsDoNotScore(t *testing.T) {
	profiles := &matchProfileMock{
		sections: completedSections(models.SectionInterests, models.SectionAchievements),
	}
	svc := NewMatchService(profiles, twoUniversities(), nil)

	results, err := svc.ComputeMatches(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, 0, results[0].MatchScore)
}

func TestMatchServiceReadinessBands(t *testing.T) {
	cases := []struct {
		name     string
		sections []models.SectionID
		refs     bool
		score    int
		level    string
		ready    string
	}{
		{
			name:     "one critical gap",
			sections: []models.SectionID{models.SectionPersonal, models.SectionLanguages, models.SectionStatement, models.SectionExperience},
			refs:     true,
			score:    70,
			level:    "Good Match",
			ready:    "2 weeks",
		},
		{
			name:     "only medium gap",
			sections: []models.SectionID{models.SectionPersonal, models.SectionEducation, models.SectionLanguages, models.SectionStatement},
			refs:     true,
			score:    90,
			level:    "Strong Match",
			ready:    "Less than 1 week",
		},
		{
			name:     "one high gap",
			sections: []models.SectionID{models.SectionPersonal, models.SectionEducation, models.SectionStatement, models.SectionExperience},
			refs:     true,
			score:    85,
			level:    "Strong Match",
			ready:    "2 weeks",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			profiles := &matchProfileMock{sections: completedSections(tc.sections...), references: tc.refs}
			svc := NewMatchService(profiles, twoUniversities(), nil)

			results, err := svc.ComputeMatches(context.Background(), "stu-1")
			require.NoError(t, err)
			require.Equal(t, tc.score, results[0].MatchScore)
			require.Equal(t, tc.level, results[0].MatchLevel)
			require.Equal(t, tc.ready, results[0].EstimatedToReady)
		})
	}
}

func TestMatchServiceDeterministicOrder(t *testing.T) {
	svc := NewMatchService(&matchProfileMock{}, twoUniversities(), nil)
	ctx := context.Background()

	first, err := svc.ComputeMatches(ctx, "stu-1")
	require.NoError(t, err)
	second, err := svc.ComputeMatches(ctx, "stu-1")
	require.NoError(t, err)
	require.Equal(t, first, second)

	// Equal scores keep catalog order, ranked universities first.
	require.Equal(t, "uni-1", first[0].UniversityID)
	require.Equal(t, "uni-2", first[1].UniversityID)
}

func TestMatchServiceProfileStrength(t *testing.T) {
	profiles := &matchProfileMock{
		sections: completedSections(models.SectionPersonal, models.SectionEducation, models.SectionInterests),
		// References never count toward profile strength.
		references: true,
	}
	svc := NewMatchService(profiles, twoUniversities(), nil)

	strength, err := svc.ProfileStrength(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, 3, strength.CompletedSections)
	require.Equal(t, 7, strength.TotalSections)
	require.Equal(t, 43, strength.Percent)
	require.True(t, strength.Sections[models.SectionInterests])
	require.False(t, strength.Sections[models.SectionStatement])
}

func TestMatchServiceStrengthFullAndEmpty(t *testing.T) {
	empty := NewMatchService(&matchProfileMock{}, twoUniversities(), nil)
	strength, err := empty.ProfileStrength(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, 0, strength.Percent)

	full := NewMatchService(&matchProfileMock{sections: completedSections(models.ProfileSections...)}, twoUniversities(), nil)
	strength, err = full.ProfileStrength(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Equal(t, 100, strength.Percent)
}
