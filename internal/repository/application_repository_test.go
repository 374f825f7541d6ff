package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/unipath/unipath-api/internal/models"
)

func newApplicationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestApplicationRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "student_id", "program_id", "status", "notes", "created_at", "updated_at", "submitted_at", "program_name", "program_level", "university_id", "university_name"}).
		AddRow("app-1", "stu-1", "prog-1", models.StatusDraft, "", now, now, nil, "CS BSc", "bachelor", "uni-1", "Tartu")
	mock.ExpectQuery("SELECT (.+) FROM applications a").
		WithArgs("app-1").
		WillReturnRows(rows)

	detail, err := repo.FindByID(context.Background(), "app-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusDraft, detail.Status)
	require.Nil(t, detail.SubmittedAt)
	require.NotNil(t, detail.UniversityName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryUpdateStatusGuard(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")).
		WithArgs("app-1", models.StatusSubmitted, models.StatusUnderReview, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "app-1", models.StatusSubmitted, models.StatusUnderReview, now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositorySubmitStampsInSameStatement(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	// The submitted edge must change status and stamp submitted_at in one
	// guarded UPDATE so a failure cannot persist the status alone.
	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status = $3, updated_at = $4, submitted_at = COALESCE(submitted_at, $4) WHERE id = $1 AND status = $2")).
		WithArgs("app-1", models.StatusDraft, models.StatusSubmitted, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "app-1", models.StatusDraft, models.StatusSubmitted, now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryExistsActive(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery("SELECT 1 FROM applications WHERE student_id").
		WithArgs("stu-1", "prog-1", models.StatusDraft, models.StatusSubmitted, models.StatusUnderReview).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsActive(context.Background(), "stu-1", "prog-1")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM applications WHERE id = $1")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "ghost")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
