package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/unipath/unipath-api/internal/models"
	appErrors "github.com/unipath/unipath-api/pkg/errors"
)

type programRepository interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.ProgramDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.ProgramDetail, error)
	Create(ctx context.Context, program *models.Program) error
	Update(ctx context.Context, program *models.Program) error
	Delete(ctx context.Context, id string) error
}

type programUniversityRepository interface {
	FindByID(ctx context.Context, id string) (*models.University, error)
}

// SaveProgramRequest holds payload for creating or updating a program.
type SaveProgramRequest struct {
	UniversityID string              `json:"university_id" validate:"required,uuid4"`
	Name         string              `json:"name" validate:"required"`
	Level        models.ProgramLevel `json:"level" validate:"required"`
	Duration     string              `json:"duration"`
	Fee          string              `json:"fee"`
	Description  string              `json:"description"`
	IP           string              `json:"-"`
	UserAgent    string              `json:"-"`
}

// ProgramService manages degree programs within the catalog.
type ProgramService struct {
	repo         programRepository
	universities programUniversityRepository
	cache        *CacheService
	audits       auditRecorder
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewProgramService constructs the program service.
func NewProgramService(repo programRepository, universities programUniversityRepository, cache *CacheService, audits auditRecorder, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramService{repo: repo, universities: universities, cache: cache, audits: audits, validator: validate, logger: logger}
}

// List returns programs matching the filter.
func (s *ProgramService) List(ctx context.Context, filter models.ProgramFilter) ([]models.ProgramDetail, *models.Pagination, error) {
	if filter.Level != nil && !models.ValidProgramLevel(*filter.Level) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown level %q", *filter.Level))
	}
	programs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}
	return programs, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one program with its university context.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.ProgramDetail, error) {
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	return program, nil
}

// Create adds a program under an existing university.
func (s *ProgramService) Create(ctx context.Context, actorID string, req SaveProgramRequest) (*models.Program, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	if _, err := s.universities.FindByID(ctx, req.UniversityID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "university not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load university")
	}
	program := &models.Program{
		UniversityID: req.UniversityID,
		Name:         req.Name,
		Level:        req.Level,
		Duration:     req.Duration,
		Fee:          req.Fee,
		Description:  req.Description,
	}
	if err := s.repo.Create(ctx, program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create program")
	}
	s.afterWrite(ctx, actorID, program.ID, req.IP, req.UserAgent)
	return program, nil
}

// Update replaces the mutable fields of a program.
func (s *ProgramService) Update(ctx context.Context, id, actorID string, req SaveProgramRequest) (*models.Program, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	program := detail.Program
	program.UniversityID = req.UniversityID
	program.Name = req.Name
	program.Level = req.Level
	program.Duration = req.Duration
	program.Fee = req.Fee
	program.Description = req.Description
	if err := s.repo.Update(ctx, &program); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update program")
	}
	s.afterWrite(ctx, actorID, id, req.IP, req.UserAgent)
	return &program, nil
}

// Delete removes a program.
func (s *ProgramService) Delete(ctx context.Context, id, actorID, ip, userAgent string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete program")
	}
	s.afterWrite(ctx, actorID, id, ip, userAgent)
	return nil
}

func (s *ProgramService) validate(req SaveProgramRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid program payload")
	}
	if !models.ValidProgramLevel(req.Level) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown level %q", req.Level))
	}
	return nil
}

func (s *ProgramService) afterWrite(ctx context.Context, actorID, programID, ip, userAgent string) {
	if err := s.cache.Invalidate(ctx, universityCachePrefix+":*"); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
	if s.audits == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionCatalogMutation,
		Resource:   "programs",
		ResourceID: &programID,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	if err := s.audits.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}
}
