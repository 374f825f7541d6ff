package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/unipath/unipath-api/internal/models"
)

func newUniversityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestUniversityRepositoryListWithSearch(t *testing.T) {
	db, mock, cleanup := newUniversityRepoMock(t)
	defer cleanup()
	repo := NewUniversityRepository(db)

	now := time.Now().UTC()
	ranking := 42
	rows := sqlmock.NewRows([]string{"id", "name", "location", "country", "ranking", "description", "created_at", "updated_at"}).
		AddRow("uni-1", "University of Tartu", "Tartu", "Estonia", ranking, "", now, now)
	mock.ExpectQuery("SELECT (.+) FROM universities WHERE 1=1 AND").
		WithArgs("%tartu%").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM universities").
		WithArgs("%tartu%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	universities, total, err := repo.List(context.Background(), models.UniversityFilter{Search: "Tartu"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, universities, 1)
	require.NotNil(t, universities[0].Ranking)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUniversityRepositoryListAllOrdersByRanking(t *testing.T) {
	db, mock, cleanup := newUniversityRepoMock(t)
	defer cleanup()
	repo := NewUniversityRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "location", "country", "ranking", "description", "created_at", "updated_at"}).
		AddRow("uni-1", "Aalto", "Espoo", "Finland", 100, "", now, now).
		AddRow("uni-2", "Unranked College", "Nowhere", "Utopia", nil, "", now, now)
	mock.ExpectQuery("SELECT (.+) FROM universities ORDER BY ranking ASC NULLS LAST").
		WillReturnRows(rows)

	universities, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, universities, 2)
	require.Nil(t, universities[1].Ranking)
	require.NoError(t, mock.ExpectationsWereMet())
}
