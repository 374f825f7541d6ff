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

func newProfileRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestProfileRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newProfileRepoMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "student_id", "section_id", "completed", "data", "updated_at"}).
		AddRow("sec-1", "stu-1", models.SectionEducation, true, []byte(`{"institution":"Lyceum 1"}`), now).
		AddRow("sec-2", "stu-1", models.SectionStatement, false, nil, now)
	mock.ExpectQuery("SELECT (.+) FROM profile_sections WHERE student_id").
		WithArgs("stu-1").
		WillReturnRows(rows)

	sections, err := repo.ListByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, sections, 2)
	require.True(t, sections[0].Completed)
	require.NotNil(t, sections[0].Data)
	require.JSONEq(t, `{"institution":"Lyceum 1"}`, string(*sections[0].Data))
	// A section saved without a payload stores NULL; the read path must
	// treat that as an empty payload, not an error.
	require.Nil(t, sections[1].Data)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepositorySetCompletedMissing(t *testing.T) {
	db, mock, cleanup := newProfileRepoMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE profile_sections SET completed = $3, updated_at = $4 WHERE student_id = $1 AND section_id = $2")).
		WithArgs("stu-1", models.SectionLanguages, true, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetCompleted(context.Background(), "stu-1", models.SectionLanguages, true, now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepositoryHasReferencesDefaultsFalse(t *testing.T) {
	db, mock, cleanup := newProfileRepoMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	mock.ExpectQuery("SELECT references_ready FROM student_flags").
		WithArgs("stu-1").
		WillReturnError(sql.ErrNoRows)

	ready, err := repo.HasReferences(context.Background(), "stu-1")
	require.NoError(t, err)
	require.False(t, ready)
	require.NoError(t, mock.ExpectationsWereMet())
}
