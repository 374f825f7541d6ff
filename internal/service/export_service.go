package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/unipath/unipath-api/internal/models"
	appErrors "github.com/unipath/unipath-api/pkg/errors"
	"github.com/unipath/unipath-api/pkg/export"
	"github.com/unipath/unipath-api/pkg/jobs"
	"github.com/unipath/unipath-api/pkg/storage"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	UpdateStatus(ctx context.Context, id string, status models.ExportStatus, resultURL *string, errMessage *string, finishedAt *time.Time) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ExportJob, error)
}

type exportApplicationSource interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, int, error)
}

type exportProfileSource interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.ProfileSection, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type exportJobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportCSVRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type exportPDFRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportRequest holds payload for requesting a background export.
type ExportRequest struct {
	Type      models.ExportType   `json:"type"`
	Format    models.ExportFormat `json:"format"`
	StudentID string              `json:"student_id,omitempty"`
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportServiceConfig tunes export behaviour.
type ExportServiceConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportService turns a student's applications or profile into downloadable
// CSV or PDF files. Generation runs on the background queue; results are
// fetched through signed URLs and swept after the TTL.
type ExportService struct {
	repo         exportJobStore
	applications exportApplicationSource
	profiles     exportProfileSource
	storage      exportFileStorage
	queue        exportJobDispatcher
	csv          exportCSVRenderer
	pdf          exportPDFRenderer
	signer       *storage.SignedURLSigner
	logger       *zap.Logger
	cfg          ExportServiceConfig
}

// NewExportService constructs the export service. The queue is attached
// later with SetQueue because the queue handler needs the service.
func NewExportService(repo exportJobStore, applications exportApplicationSource, profiles exportProfileSource, store exportFileStorage, signer *storage.SignedURLSigner, csv exportCSVRenderer, pdf exportPDFRenderer, logger *zap.Logger, cfg ExportServiceConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		repo:         repo,
		applications: applications,
		profiles:     profiles,
		storage:      store,
		signer:       signer,
		csv:          csv,
		pdf:          pdf,
		logger:       logger,
		cfg:          cfg,
	}
}

// SetQueue wires the dispatcher after queue construction.
func (s *ExportService) SetQueue(queue exportJobDispatcher) {
	s.queue = queue
}

// CreateJob validates the request, persists the job and enqueues processing.
func (s *ExportService) CreateJob(ctx context.Context, actorID string, actorRole models.UserRole, req ExportRequest) (*models.ExportJob, error) {
	if req.Type != models.ExportTypeApplications && req.Type != models.ExportTypeProfile {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export type %q", req.Type))
	}
	if req.Format != models.ExportFormatCSV && req.Format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", req.Format))
	}
	studentID := actorID
	if actorRole == models.RoleAdmin && req.StudentID != "" {
		studentID = req.StudentID
	}
	job := &models.ExportJob{
		Type:      req.Type,
		Params:    models.ExportJobParams{StudentID: studentID, Format: req.Format},
		Status:    models.ExportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "export queue unavailable")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.UpdateStatus(ctx, job.ID, models.ExportStatusFailed, nil, &msg, &now)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return job, nil
}

// GetStatus returns job metadata, enforcing ownership for students.
func (s *ExportService) GetStatus(ctx context.Context, id, actorID string, actorRole models.UserRole) (*models.ExportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if actorRole != models.RoleAdmin && job.CreatedBy != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export job belongs to another user")
	}
	return job, nil
}

// ListJobs returns the actor's recent export jobs.
func (s *ExportService) ListJobs(ctx context.Context, actorID string, limit int) ([]models.ExportJob, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	recent, err := s.repo.ListByUser(ctx, actorID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	return recent, nil
}

// ResolveDownload validates the token and opens the stored export file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status != models.ExportStatusFinished || job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// Handle processes a queue job: build the dataset, render it, store the file
// and publish the signed result URL.
func (s *ExportService) Handle(ctx context.Context, job jobs.Job) error {
	record, err := s.repo.FindByID(ctx, job.ID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, record.ID, models.ExportStatusProcessing, nil, nil, nil); err != nil {
		return err
	}

	dataset, title, err := s.buildDataset(ctx, record)
	if err != nil {
		s.markFailed(ctx, record.ID, err)
		return err
	}

	var rendered []byte
	switch record.Params.Format {
	case models.ExportFormatCSV:
		rendered, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		rendered, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %q", record.Params.Format)
	}
	if err != nil {
		s.markFailed(ctx, record.ID, err)
		return err
	}

	filename := fmt.Sprintf("%s_%s_%d.%s", record.Type, record.ID[:8], time.Now().UTC().Unix(), record.Params.Format)
	relPath, err := s.storage.Save(filename, rendered)
	if err != nil {
		s.markFailed(ctx, record.ID, err)
		return err
	}

	token, _, err := s.signer.Generate(record.ID, relPath)
	if err != nil {
		s.markFailed(ctx, record.ID, err)
		return err
	}
	url := fmt.Sprintf("%s/exports/download/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token)
	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, record.ID, models.ExportStatusFinished, &url, nil, &now); err != nil {
		s.logger.Warn("failed to mark export finished", zap.String("job_id", record.ID), zap.Error(err))
		return err
	}
	return nil
}

// StartCleanup boots a goroutine that purges expired export files.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
				}
			}
		}
	}()
}

func (s *ExportService) markFailed(ctx context.Context, id string, cause error) {
	msg := cause.Error()
	now := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, models.ExportStatusFailed, nil, &msg, &now); err != nil {
		s.logger.Warn("failed to mark export failed", zap.String("job_id", id), zap.Error(err))
	}
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeApplications:
		return s.buildApplicationsDataset(ctx, job.Params)
	case models.ExportTypeProfile:
		return s.buildProfileDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %q", job.Type)
	}
}

func (s *ExportService) buildApplicationsDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	applications, _, err := s.applications.List(ctx, models.ApplicationFilter{StudentID: params.StudentID, PageSize: 100})
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load applications: %w", err)
	}
	headers := []string{"University", "Program", "Level", "Status", "Submitted", "Created"}
	rows := make([]map[string]string, 0, len(applications))
	for _, app := range applications {
		rows = append(rows, map[string]string{
			"University": deref(app.UniversityName),
			"Program":    deref(app.ProgramName),
			"Level":      deref(app.ProgramLevel),
			"Status":     string(app.Status),
			"Submitted":  formatExportTime(app.SubmittedAt),
			"Created":    app.CreatedAt.Format("2006-01-02"),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}, "My Applications", nil
}

func (s *ExportService) buildProfileDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	sections, err := s.profiles.ListByStudent(ctx, params.StudentID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load profile: %w", err)
	}
	byID := make(map[models.SectionID]models.ProfileSection, len(sections))
	for _, section := range sections {
		byID[section.SectionID] = section
	}
	headers := []string{"Section", "Completed", "Updated"}
	rows := make([]map[string]string, 0, len(models.ProfileSections))
	for _, id := range models.ProfileSections {
		row := map[string]string{"Section": string(id), "Completed": "no", "Updated": ""}
		if section, ok := byID[id]; ok {
			if section.Completed {
				row["Completed"] = "yes"
			}
			row["Updated"] = section.UpdatedAt.Format("2006-01-02")
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}, "Profile Overview", nil
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatExportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}
