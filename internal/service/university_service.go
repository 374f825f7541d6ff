package service

import (
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

type universityRepository interface {
	List(ctx context.Context, filter models.UniversityFilter) ([]models.University, int, error)
	FindByID(ctx context.Context, id string) (*models.University, error)
	Create(ctx context.Context, university *models.University) error
	Update(ctx context.Context, university *models.University) error
	Delete(ctx context.Context, id string) error
}

type universityProgramRepository interface {
	ListByUniversity(ctx context.Context, universityID string) ([]models.Program, error)
}

// SaveUniversityRequest holds payload for creating or updating a university.
type SaveUniversityRequest struct {
	Name        string `json:"name" validate:"required"`
	Location    string `json:"location"`
	Country     string `json:"country" validate:"required"`
	Ranking     *int   `json:"ranking" validate:"omitempty,gt=0"`
	Description string `json:"description"`
	IP          string `json:"-"`
	UserAgent   string `json:"-"`
}

const universityCachePrefix = "catalog:universities"

// UniversityService manages the university catalog. Reads go through the
// cache; every write invalidates the whole catalog prefix.
type UniversityService struct {
	repo      universityRepository
	programs  universityProgramRepository
	cache     *CacheService
	audits    auditRecorder
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUniversityService constructs the university service.
func NewUniversityService(repo universityRepository, programs universityProgramRepository, cache *CacheService, audits auditRecorder, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *UniversityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UniversityService{repo: repo, programs: programs, cache: cache, audits: audits, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

type universityPage struct {
	Universities []models.University `json:"universities"`
	Total        int                 `json:"total"`
}

// List returns a page of the catalog, serving repeated queries from cache.
func (s *UniversityService) List(ctx context.Context, filter models.UniversityFilter) ([]models.University, *models.Pagination, error) {
	key := fmt.Sprintf("%s:%s", universityCachePrefix, filterKey(filter))
	var cached universityPage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Universities, paginationFor(filter.Page, filter.PageSize, cached.Total), nil
	}

	universities, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list universities")
	}
	if err := s.cache.Set(ctx, key, universityPage{Universities: universities, Total: total}, s.cacheTTL); err != nil {
		s.logger.Debug("catalog cache write skipped", zap.Error(err))
	}
	return universities, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Get returns one university with its programs.
func (s *UniversityService) Get(ctx context.Context, id string) (*models.UniversityDetail, error) {
	key := fmt.Sprintf("%s:detail:%s", universityCachePrefix, id)
	var cached models.UniversityDetail
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	university, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "university not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load university")
	}
	programs, err := s.programs.ListByUniversity(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load programs")
	}
	detail := &models.UniversityDetail{University: *university, Programs: programs}
	if err := s.cache.Set(ctx, key, detail, s.cacheTTL); err != nil {
		s.logger.Debug("catalog cache write skipped", zap.Error(err))
	}
	return detail, nil
}

// Create adds a university to the catalog.
func (s *UniversityService) Create(ctx context.Context, actorID string, req SaveUniversityRequest) (*models.University, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid university payload")
	}
	university := &models.University{
		Name:        req.Name,
		Location:    req.Location,
		Country:     req.Country,
		Ranking:     req.Ranking,
		Description: req.Description,
	}
	if err := s.repo.Create(ctx, university); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create university")
	}
	s.afterWrite(ctx, actorID, "universities", university.ID, req.IP, req.UserAgent)
	return university, nil
}

// Update replaces the mutable fields of a university.
func (s *UniversityService) Update(ctx context.Context, id, actorID string, req SaveUniversityRequest) (*models.University, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid university payload")
	}
	university, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "university not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load university")
	}
	university.Name = req.Name
	university.Location = req.Location
	university.Country = req.Country
	university.Ranking = req.Ranking
	university.Description = req.Description
	if err := s.repo.Update(ctx, university); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update university")
	}
	s.afterWrite(ctx, actorID, "universities", id, req.IP, req.UserAgent)
	return university, nil
}

// Delete removes a university and everything hanging off it.
func (s *UniversityService) Delete(ctx context.Context, id, actorID, ip, userAgent string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "university not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete university")
	}
	s.afterWrite(ctx, actorID, "universities", id, ip, userAgent)
	return nil
}

func (s *UniversityService) afterWrite(ctx context.Context, actorID, resource, resourceID, ip, userAgent string) {
	if err := s.cache.Invalidate(ctx, universityCachePrefix+":*"); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
	if s.audits == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"resource": resource})
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionCatalogMutation,
		Resource:   resource,
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	if err := s.audits.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}
}

func filterKey(filter models.UniversityFilter) string {
	return fmt.Sprintf("q=%s:c=%s:p=%d:s=%d:sort=%s-%s", filter.Search, filter.Country, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
