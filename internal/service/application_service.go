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

type applicationRepository interface {
	FindByID(ctx context.Context, id string) (*models.ApplicationDetail, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
	ExistsActive(ctx context.Context, studentID, programID string) (bool, error)
	Create(ctx context.Context, app *models.Application) error
	UpdateStatus(ctx context.Context, id string, from, to models.ApplicationStatus, updatedAt time.Time) error
	UpdateNotes(ctx context.Context, id, notes string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context, studentID string) ([]models.StatusCount, error)
}

type applicationProgramRepository interface {
	FindByID(ctx context.Context, id string) (*models.ProgramDetail, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// summaryInvalidator drops cached per-student summaries after writes.
type summaryInvalidator interface {
	Invalidate(ctx context.Context, studentID string)
}

// CreateApplicationRequest holds payload for opening a draft application.
type CreateApplicationRequest struct {
	ProgramID string `json:"program_id" validate:"required,uuid4"`
	Notes     string `json:"notes" validate:"max=2000"`
}

// TransitionApplicationRequest holds payload for a lifecycle transition.
type TransitionApplicationRequest struct {
	Status    models.ApplicationStatus `json:"status" validate:"required"`
	IP        string                   `json:"-"`
	UserAgent string                   `json:"-"`
}

// UpdateApplicationNotesRequest holds payload for editing notes.
type UpdateApplicationNotesRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// ApplicationService drives the application lifecycle. All state changes go
// through the transition graph in models; the repository guards make
// concurrent writers serialize on the current status.
type ApplicationService struct {
	repo      applicationRepository
	programs  applicationProgramRepository
	audits    auditRecorder
	summaries summaryInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// SetSummaryCache attaches the dashboard cache, wired after construction
// because the dashboard reads through this service's repository.
func (s *ApplicationService) SetSummaryCache(inv summaryInvalidator) {
	s.summaries = inv
}

func (s *ApplicationService) invalidateSummary(ctx context.Context, studentID string) {
	if s.summaries != nil {
		s.summaries.Invalidate(ctx, studentID)
	}
}

// NewApplicationService constructs the application service.
func NewApplicationService(repo applicationRepository, programs applicationProgramRepository, audits auditRecorder, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{repo: repo, programs: programs, audits: audits, validator: validate, logger: logger}
}

// List returns applications visible to the actor. Students only ever see
// their own; admins may filter by any student.
func (s *ApplicationService) List(ctx context.Context, actorID string, actorRole models.UserRole, filter models.ApplicationFilter) ([]models.ApplicationDetail, *models.Pagination, error) {
	if actorRole != models.RoleAdmin {
		filter.StudentID = actorID
	}
	if filter.Status != nil && !models.ValidStatus(*filter.Status) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", *filter.Status))
	}
	applications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return applications, pagination, nil
}

// Get returns one application, enforcing ownership for students.
func (s *ApplicationService) Get(ctx context.Context, id, actorID string, actorRole models.UserRole) (*models.ApplicationDetail, error) {
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(detail, actorID, actorRole); err != nil {
		return nil, err
	}
	return detail, nil
}

// Create opens a new draft application. A student can hold at most one
// non-terminal application per program.
func (s *ApplicationService) Create(ctx context.Context, actorID string, req CreateApplicationRequest) (*models.ApplicationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	if _, err := s.programs.FindByID(ctx, req.ProgramID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	active, err := s.repo.ExistsActive(ctx, actorID, req.ProgramID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing applications")
	}
	if active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an active application for this program already exists")
	}
	app := &models.Application{
		StudentID: actorID,
		ProgramID: req.ProgramID,
		Status:    models.StatusDraft,
		Notes:     req.Notes,
	}
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}
	s.invalidateSummary(ctx, actorID)
	return s.load(ctx, app.ID)
}

// transitionRoles gates who may move an application into each target state.
// Students drive their own submissions and withdrawals; review outcomes are
// an admin concern.
var transitionRoles = map[models.ApplicationStatus]map[models.UserRole]bool{
	models.StatusSubmitted:   {models.RoleStudent: true, models.RoleAdmin: true},
	models.StatusWithdrawn:   {models.RoleStudent: true, models.RoleAdmin: true},
	models.StatusUnderReview: {models.RoleAdmin: true},
	models.StatusAccepted:    {models.RoleAdmin: true},
	models.StatusRejected:    {models.RoleAdmin: true},
}

// Transition moves an application along one edge of the lifecycle graph.
// The submitted_at timestamp is stamped on the first successful move into
// submitted and never touched again.
func (s *ApplicationService) Transition(ctx context.Context, id, actorID string, actorRole models.UserRole, req TransitionApplicationRequest) (*models.ApplicationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}
	if !models.ValidStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(detail, actorID, actorRole); err != nil {
		return nil, err
	}
	if allowed := transitionRoles[req.Status]; !allowed[actorRole] {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s may not set status %s", actorRole, req.Status))
	}
	from := detail.Status
	if !models.CanTransition(from, req.Status) {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, fmt.Sprintf("cannot transition from %s to %s", from, req.Status))
	}

	// The repository performs the status change and, for the submitted
	// edge, the submitted_at stamp in a single guarded statement, so a
	// failed transition leaves the row untouched.
	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, from, req.Status, now); err != nil {
		if err == sql.ErrNoRows {
			// Another writer changed the status between our read and the
			// guarded update. Exactly one of the racers gets here.
			return nil, appErrors.Clone(appErrors.ErrConflict, "application was modified concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application status")
	}

	s.audit(ctx, actorID, models.AuditActionAppTransition, id, req.IP, req.UserAgent, map[string]string{
		"from": string(from),
		"to":   string(req.Status),
	})
	s.invalidateSummary(ctx, detail.StudentID)

	return s.load(ctx, id)
}

// UpdateNotes edits the free-form notes. Only draft applications accept
// edits; later states are read-only for students.
func (s *ApplicationService) UpdateNotes(ctx context.Context, id, actorID string, actorRole models.UserRole, req UpdateApplicationNotesRequest) (*models.ApplicationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notes payload")
	}
	detail, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(detail, actorID, actorRole); err != nil {
		return nil, err
	}
	if detail.Status != models.StatusDraft && actorRole != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only draft applications can be edited")
	}
	if err := s.repo.UpdateNotes(ctx, id, req.Notes, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notes")
	}
	return s.load(ctx, id)
}

// Delete removes an application. Students may only delete drafts; withdrawing
// is the path for anything already submitted.
func (s *ApplicationService) Delete(ctx context.Context, id, actorID string, actorRole models.UserRole, ip, userAgent string) error {
	detail, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(detail, actorID, actorRole); err != nil {
		return err
	}
	if detail.Status != models.StatusDraft && actorRole != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrConflict, "only draft applications can be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete application")
	}
	s.audit(ctx, actorID, models.AuditActionAppDelete, id, ip, userAgent, map[string]string{
		"status": string(detail.Status),
	})
	s.invalidateSummary(ctx, detail.StudentID)
	return nil
}

// CountByStatus aggregates the student's applications per lifecycle state.
func (s *ApplicationService) CountByStatus(ctx context.Context, studentID string) ([]models.StatusCount, error) {
	counts, err := s.repo.CountByStatus(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applications")
	}
	return counts, nil
}

func (s *ApplicationService) load(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	return detail, nil
}

func (s *ApplicationService) authorize(detail *models.ApplicationDetail, actorID string, actorRole models.UserRole) error {
	if actorRole == models.RoleAdmin {
		return nil
	}
	if detail.StudentID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
	}
	return nil
}

func (s *ApplicationService) audit(ctx context.Context, actorID, action, resourceID, ip, userAgent string, values map[string]string) {
	if s.audits == nil {
		return
	}
	payload, _ := json.Marshal(values)
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "applications",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  ip,
		UserAgent:  userAgent,
	}
	if err := s.audits.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}
