package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unipath/unipath-api/internal/models"
	appErrors "github.com/unipath/unipath-api/pkg/errors"
)

type profileRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.ProfileSection, error)
	FindSection(ctx context.Context, studentID string, sectionID models.SectionID) (*models.ProfileSection, error)
	Upsert(ctx context.Context, section *models.ProfileSection) error
	SetCompleted(ctx context.Context, studentID string, sectionID models.SectionID, completed bool, updatedAt time.Time) error
	Delete(ctx context.Context, studentID string, sectionID models.SectionID) error
	HasReferences(ctx context.Context, studentID string) (bool, error)
	SetReferences(ctx context.Context, studentID string, ready bool, updatedAt time.Time) error
}

// SaveSectionRequest holds a section payload. Data is decoded into the
// per-section variant before persisting, so malformed payloads never land
// in the database.
type SaveSectionRequest struct {
	Data      json.RawMessage `json:"data" validate:"required"`
	Completed bool            `json:"completed"`
}

// ProfileService manages the per-student profile sections.
type ProfileService struct {
	repo      profileRepository
	summaries summaryInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// SetSummaryCache attaches the dashboard cache so profile writes refresh it.
func (s *ProfileService) SetSummaryCache(inv summaryInvalidator) {
	s.summaries = inv
}

func (s *ProfileService) invalidateSummary(ctx context.Context, studentID string) {
	if s.summaries != nil {
		s.summaries.Invalidate(ctx, studentID)
	}
}

// NewProfileService constructs the profile service.
func NewProfileService(repo profileRepository, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{repo: repo, validator: validate, logger: logger}
}

// List returns the full profile of a student. Sections never written are
// returned as empty incomplete placeholders so clients always see all seven.
func (s *ProfileService) List(ctx context.Context, studentID string) ([]models.ProfileSection, error) {
	stored, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list profile sections")
	}
	byID := make(map[models.SectionID]models.ProfileSection, len(stored))
	for _, section := range stored {
		byID[section.SectionID] = section
	}
	sections := make([]models.ProfileSection, 0, len(models.ProfileSections))
	for _, id := range models.ProfileSections {
		if section, ok := byID[id]; ok {
			sections = append(sections, section)
			continue
		}
		sections = append(sections, models.ProfileSection{StudentID: studentID, SectionID: id})
	}
	return sections, nil
}

// Get returns one section of a student profile.
func (s *ProfileService) Get(ctx context.Context, studentID string, sectionID models.SectionID) (*models.ProfileSection, error) {
	if !models.ValidSectionID(sectionID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown section %q", sectionID))
	}
	section, err := s.repo.FindSection(ctx, studentID, sectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "profile section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load profile section")
	}
	return section, nil
}

// Save validates and stores one section. The payload must decode into the
// variant that belongs to the section id.
func (s *ProfileService) Save(ctx context.Context, studentID string, sectionID models.SectionID, req SaveSectionRequest) (*models.ProfileSection, error) {
	if !models.ValidSectionID(sectionID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown section %q", sectionID))
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid section payload")
	}
	if err := s.validatePayload(sectionID, req.Data); err != nil {
		return nil, err
	}
	section := &models.ProfileSection{
		StudentID: studentID,
		SectionID: sectionID,
		Completed: req.Completed,
		Data:      &req.Data,
	}
	if err := s.repo.Upsert(ctx, section); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save profile section")
	}
	s.invalidateSummary(ctx, studentID)
	return section, nil
}

// SetCompleted flips the completion flag without touching the payload.
func (s *ProfileService) SetCompleted(ctx context.Context, studentID string, sectionID models.SectionID, completed bool) error {
	if !models.ValidSectionID(sectionID) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown section %q", sectionID))
	}
	if err := s.repo.SetCompleted(ctx, studentID, sectionID, completed, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "profile section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update completion flag")
	}
	s.invalidateSummary(ctx, studentID)
	return nil
}

// Delete removes one section from the profile.
func (s *ProfileService) Delete(ctx context.Context, studentID string, sectionID models.SectionID) error {
	if !models.ValidSectionID(sectionID) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown section %q", sectionID))
	}
	if err := s.repo.Delete(ctx, studentID, sectionID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "profile section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete profile section")
	}
	s.invalidateSummary(ctx, studentID)
	return nil
}

// References reports whether the student marked reference letters as arranged.
func (s *ProfileService) References(ctx context.Context, studentID string) (bool, error) {
	ready, err := s.repo.HasReferences(ctx, studentID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load references flag")
	}
	return ready, nil
}

// SetReferences stores the reference-letters flag.
func (s *ProfileService) SetReferences(ctx context.Context, studentID string, ready bool) error {
	if err := s.repo.SetReferences(ctx, studentID, ready, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store references flag")
	}
	s.invalidateSummary(ctx, studentID)
	return nil
}

func (s *ProfileService) validatePayload(sectionID models.SectionID, raw json.RawMessage) error {
	var target interface{}
	switch sectionID {
	case models.SectionPersonal:
		target = &models.PersonalData{}
	case models.SectionEducation:
		target = &models.EducationData{}
	case models.SectionInterests:
		target = &models.InterestsData{}
	case models.SectionAchievements:
		target = &models.AchievementsData{}
	case models.SectionExperience:
		target = &models.ExperienceData{}
	case models.SectionLanguages:
		target = &models.LanguagesData{}
	case models.SectionStatement:
		target = &models.StatementData{}
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown section %q", sectionID))
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("malformed %s payload", sectionID))
	}
	if err := s.validator.Struct(target); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid %s payload", sectionID))
	}
	return nil
}
