package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/unipath/unipath-api/internal/models"
	appErrors "github.com/unipath/unipath-api/pkg/errors"
	"github.com/unipath/unipath-api/pkg/export"
	"github.com/unipath/unipath-api/pkg/jobs"
	"github.com/unipath/unipath-api/pkg/storage"
)

type exportJobStoreMock struct {
	jobs map[string]*models.ExportJob
}

func newExportJobStoreMock() *exportJobStoreMock {
	return &exportJobStoreMock{jobs: map[string]*models.ExportJob{}}
}

func (m *exportJobStoreMock) Create(_ context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *exportJobStoreMock) FindByID(_ context.Context, id string) (*models.ExportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (m *exportJobStoreMock) UpdateStatus(_ context.Context, id string, status models.ExportStatus, resultURL *string, errMessage *string, finishedAt *time.Time) error {
	job, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = status
	if resultURL != nil {
		job.ResultURL = resultURL
	}
	job.ErrorMessage = errMessage
	job.FinishedAt = finishedAt
	return nil
}

func (m *exportJobStoreMock) ListByUser(_ context.Context, userID string, _ int) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, job := range m.jobs {
		if job.CreatedBy == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

type exportApplicationsMock struct {
	applications []models.ApplicationDetail
}

func (m *exportApplicationsMock) List(_ context.Context, _ models.ApplicationFilter) ([]models.ApplicationDetail, int, error) {
	return m.applications, len(m.applications), nil
}

type queueMock struct {
	enqueued []jobs.Job
}

func (m *queueMock) Enqueue(job jobs.Job) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

func newExportFixture(t *testing.T) (*ExportService, *exportJobStoreMock, *queueMock) {
	store := newExportJobStoreMock()
	fs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)

	programName := "Data Science"
	universityName := "University of Tartu"
	level := "master"
	submitted := time.Now().UTC()
	apps := &exportApplicationsMock{applications: []models.ApplicationDetail{
		{
			Application:    models.Application{ID: uuid.NewString(), Status: models.StatusSubmitted, SubmittedAt: &submitted, CreatedAt: submitted},
			ProgramName:    &programName,
			ProgramLevel:   &level,
			UniversityName: &universityName,
		},
	}}
	profiles := &matchProfileMock{sections: completedSections(models.SectionPersonal)}

	svc := NewExportService(store, apps, profiles, fs, signer, export.NewCSVExporter(), export.NewPDFExporter(), nil, ExportServiceConfig{})
	queue := &queueMock{}
	svc.SetQueue(queue)
	return svc, store, queue
}

func TestExportServiceCreateJobValidation(t *testing.T) {
	svc, _, _ := newExportFixture(t)
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, "stu-1", models.RoleStudent, ExportRequest{Type: "grades", Format: models.ExportFormatCSV})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.CreateJob(ctx, "stu-1", models.RoleStudent, ExportRequest{Type: models.ExportTypeProfile, Format: "xlsx"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportServiceStudentScopedToOwnData(t *testing.T) {
	svc, store, queue := newExportFixture(t)

	job, err := svc.CreateJob(context.Background(), "stu-1", models.RoleStudent, ExportRequest{
		Type:      models.ExportTypeApplications,
		Format:    models.ExportFormatCSV,
		StudentID: "stu-2",
	})
	require.NoError(t, err)
	require.Equal(t, "stu-1", store.jobs[job.ID].Params.StudentID)
	require.Len(t, queue.enqueued, 1)
}

func TestExportServiceHandleProducesDownloadableCSV(t *testing.T) {
	svc, store, queue := newExportFixture(t)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, "stu-1", models.RoleStudent, ExportRequest{Type: models.ExportTypeApplications, Format: models.ExportFormatCSV})
	require.NoError(t, err)

	require.NoError(t, svc.Handle(ctx, queue.enqueued[0]))

	stored := store.jobs[job.ID]
	require.Equal(t, models.ExportStatusFinished, stored.Status)
	require.NotNil(t, stored.ResultURL)

	parts := strings.Split(*stored.ResultURL, "/")
	token := parts[len(parts)-1]
	download, err := svc.ResolveDownload(ctx, token)
	require.NoError(t, err)
	defer download.File.Close()
	require.Equal(t, models.ExportFormatCSV, download.Format)
	require.True(t, strings.HasSuffix(download.Filename, ".csv"))
}

func TestExportServiceHandleRendersPDFProfile(t *testing.T) {
	svc, store, queue := newExportFixture(t)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, "stu-1", models.RoleStudent, ExportRequest{Type: models.ExportTypeProfile, Format: models.ExportFormatPDF})
	require.NoError(t, err)

	require.NoError(t, svc.Handle(ctx, queue.enqueued[0]))
	require.Equal(t, models.ExportStatusFinished, store.jobs[job.ID].Status)
}

func TestExportServiceStatusOwnership(t *testing.T) {
	svc, _, queue := newExportFixture(t)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, "stu-1", models.RoleStudent, ExportRequest{Type: models.ExportTypeProfile, Format: models.ExportFormatCSV})
	require.NoError(t, err)
	require.Len(t, queue.enqueued, 1)

	_, err = svc.GetStatus(ctx, job.ID, "stu-2", models.RoleStudent)
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.GetStatus(ctx, job.ID, "adm-1", models.RoleAdmin)
	require.NoError(t, err)
}
