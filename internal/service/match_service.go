package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/unipath/unipath-api/internal/models"
	appErrors "github.com/unipath/unipath-api/pkg/errors"
)

type matchProfileRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.ProfileSection, error)
	HasReferences(ctx context.Context, studentID string) (bool, error)
}

type matchUniversityRepository interface {
	ListAll(ctx context.Context) ([]models.University, error)
}

// checklistItem is one weighted entry of the readiness checklist. The six
// items total 100. Note the checklist is not the profile-section enumeration:
// interests and achievements are absent and references has no section at all.
type checklistItem struct {
	area     string
	weight   int
	impact   models.GapImpact
	strength string
	gap      string
	action   models.ActionStep
}

// checklist is applied identically to every university. Per-university
// requirement records do not exist yet, so the weights are flat.
var checklist = []checklistItem{
	{
		area:     "personal",
		weight:   10,
		impact:   models.ImpactHigh,
		strength: "Personal information complete",
		gap:      "Personal information is incomplete",
		action:   models.ActionStep{Action: "Fill in your personal information", Timeframe: "1 day", Priority: "High"},
	},
	{
		area:     "education",
		weight:   30,
		impact:   models.ImpactCritical,
		strength: "Education history documented",
		gap:      "Education history is missing",
		action:   models.ActionStep{Action: "Add your education history and grades", Timeframe: "2-3 days", Priority: "Critical"},
	},
	{
		area:     "languages",
		weight:   15,
		impact:   models.ImpactHigh,
		strength: "Language proficiency confirmed",
		gap:      "Language proficiency is not documented",
		action:   models.ActionStep{Action: "Record language skills and test scores", Timeframe: "1 week", Priority: "High"},
	},
	{
		area:     "statement",
		weight:   25,
		impact:   models.ImpactCritical,
		strength: "Personal statement written",
		gap:      "Personal statement is missing",
		action:   models.ActionStep{Action: "Write your personal statement", Timeframe: "1-2 weeks", Priority: "Critical"},
	},
	{
		area:     "experience",
		weight:   10,
		impact:   models.ImpactMedium,
		strength: "Relevant experience listed",
		gap:      "No experience entries yet",
		action:   models.ActionStep{Action: "List internships, jobs or volunteering", Timeframe: "2-3 days", Priority: "Medium"},
	},
	{
		area:     "references",
		weight:   10,
		impact:   models.ImpactHigh,
		strength: "Reference letters arranged",
		gap:      "Reference letters are not arranged",
		action:   models.ActionStep{Action: "Ask teachers or employers for reference letters", Timeframe: "2 weeks", Priority: "High"},
	},
}

// matchLevels maps score thresholds to display bands, highest first.
var matchLevels = []struct {
	minScore int
	level    string
	color    string
}{
	{80, "Strong Match", "#22c55e"},
	{60, "Good Match", "#84cc16"},
	{40, "Developing", "#f59e0b"},
	{0, "Not Ready", "#ef4444"},
}

// MatchService computes deterministic compatibility scores between a student
// profile and the university catalog. It is a pure read-time computation;
// results are never persisted.
type MatchService struct {
	profiles     matchProfileRepository
	universities matchUniversityRepository
	logger       *zap.Logger
}

// NewMatchService constructs the match service.
func NewMatchService(profiles matchProfileRepository, universities matchUniversityRepository, logger *zap.Logger) *MatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchService{profiles: profiles, universities: universities, logger: logger}
}

// ComputeMatches scores every university in the catalog for the student and
// returns the list ranked descending by score. Ties keep catalog order.
func (s *MatchService) ComputeMatches(ctx context.Context, studentID string) ([]models.MatchResult, error) {
	sections, err := s.profiles.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile sections")
	}
	references, err := s.profiles.HasReferences(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load references flag")
	}
	universities, err := s.universities.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load university catalog")
	}

	completed := completedAreas(sections, references)
	verdict := scoreChecklist(completed)

	results := make([]models.MatchResult, 0, len(universities))
	for _, u := range universities {
		results = append(results, models.MatchResult{
			UniversityID:     u.ID,
			UniversityName:   u.Name,
			Ranking:          u.Ranking,
			MatchScore:       verdict.score,
			MatchLevel:       verdict.level,
			MatchColor:       verdict.color,
			Gaps:             verdict.gaps,
			Strengths:        verdict.strengths,
			ActionSteps:      verdict.steps,
			EstimatedToReady: verdict.readiness,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MatchScore > results[j].MatchScore
	})
	return results, nil
}

// ProfileStrength computes overall completion over the fixed seven-section
// enumeration. This deliberately uses a different item set than the
// per-university checklist: interests and achievements count here but not
// there, and references counts there but not here.
func (s *MatchService) ProfileStrength(ctx context.Context, studentID string) (*models.ProfileStrength, error) {
	sections, err := s.profiles.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile sections")
	}
	strength := profileStrength(sections)
	return &strength, nil
}

type checklistVerdict struct {
	score     int
	level     string
	color     string
	gaps      []models.Gap
	strengths []string
	steps     []models.ActionStep
	readiness string
}

func completedAreas(sections []models.ProfileSection, references bool) map[string]bool {
	completed := make(map[string]bool, len(sections)+1)
	for _, section := range sections {
		if section.Completed {
			completed[string(section.SectionID)] = true
		}
	}
	if references {
		completed["references"] = true
	}
	return completed
}

func scoreChecklist(completed map[string]bool) checklistVerdict {
	verdict := checklistVerdict{
		gaps:      []models.Gap{},
		strengths: []string{},
		steps:     []models.ActionStep{},
	}
	for _, item := range checklist {
		if completed[item.area] {
			verdict.score += item.weight
			verdict.strengths = append(verdict.strengths, item.strength)
			continue
		}
		verdict.gaps = append(verdict.gaps, models.Gap{
			Area:        item.area,
			Impact:      item.impact,
			Description: item.gap,
		})
		verdict.steps = append(verdict.steps, item.action)
	}
	verdict.level, verdict.color = matchLevel(verdict.score)
	verdict.readiness = estimateReadiness(verdict.gaps)
	return verdict
}

func matchLevel(score int) (string, string) {
	for _, band := range matchLevels {
		if score >= band.minScore {
			return band.level, band.color
		}
	}
	last := matchLevels[len(matchLevels)-1]
	return last.level, last.color
}

// estimateReadiness converts open gaps into a rough human-readable timeline:
// 2 weeks per critical gap, 1.5 per high, 0.5 per medium.
func estimateReadiness(gaps []models.Gap) string {
	var weeks float64
	for _, gap := range gaps {
		switch gap.Impact {
		case models.ImpactCritical:
			weeks += 2
		case models.ImpactHigh:
			weeks += 1.5
		case models.ImpactMedium:
			weeks += 0.5
		}
	}
	switch {
	case weeks == 0:
		return "Ready to apply!"
	case weeks < 1:
		return "Less than 1 week"
	case weeks < 4:
		return fmt.Sprintf("%d weeks", int(math.Ceil(weeks)))
	default:
		return fmt.Sprintf("%d months", int(math.Ceil(weeks/4)))
	}
}

func profileStrength(sections []models.ProfileSection) models.ProfileStrength {
	byID := make(map[models.SectionID]bool, len(sections))
	for _, section := range sections {
		byID[section.SectionID] = section.Completed
	}
	state := make(map[models.SectionID]bool, len(models.ProfileSections))
	completedCount := 0
	for _, id := range models.ProfileSections {
		state[id] = byID[id]
		if state[id] {
			completedCount++
		}
	}
	total := len(models.ProfileSections)
	return models.ProfileStrength{
		Percent:           int(math.Round(100 * float64(completedCount) / float64(total))),
		CompletedSections: completedCount,
		TotalSections:     total,
		Sections:          state,
	}
}
