package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ops/invigil-api/internal/models"
)

func newInvigilatorRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestInvigilatorRepositoryList(t *testing.T) {
	db, mock, cleanup := newInvigilatorRepoMock(t)
	defer cleanup()
	repo := NewInvigilatorRepository(db)

	rows := sqlmock.NewRows([]string{"id", "preferred_name", "full_name", "email", "phone", "resigned", "resigned_at", "created_at", "updated_at"}).
		AddRow("inv-1", "Ada", "Ada Price", "ada@example.com", nil, false, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, preferred_name, full_name, email, phone, resigned, resigned_at, created_at, updated_at FROM invigilators WHERE 1=1 ORDER BY full_name ASC LIMIT 50 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM invigilators WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.InvigilatorFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvigilatorRepositoryListFiltersResigned(t *testing.T) {
	db, mock, cleanup := newInvigilatorRepoMock(t)
	defer cleanup()
	repo := NewInvigilatorRepository(db)

	resigned := false
	mock.ExpectQuery(regexp.QuoteMeta("FROM invigilators WHERE 1=1 AND resigned = $1")).
		WithArgs(false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "preferred_name", "full_name", "email", "phone", "resigned", "resigned_at", "created_at", "updated_at"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM invigilators WHERE 1=1 AND resigned = $1")).
		WithArgs(false).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.InvigilatorFilter{Resigned: &resigned})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvigilatorRepositoryCreateAndMarkResigned(t *testing.T) {
	db, mock, cleanup := newInvigilatorRepoMock(t)
	defer cleanup()
	repo := NewInvigilatorRepository(db)

	mock.ExpectExec("INSERT INTO invigilators").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Ada Price", "ada@example.com", sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.Invigilator{FullName: "Ada Price", Email: "ada@example.com"})
	require.NoError(t, err)

	mock.ExpectExec("UPDATE invigilators SET resigned = TRUE").
		WithArgs("inv-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.MarkResigned(context.Background(), "inv-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvigilatorRepositoryLoadRestrictions(t *testing.T) {
	db, mock, cleanup := newInvigilatorRepoMock(t)
	defer cleanup()
	repo := NewInvigilatorRepository(db)

	invigilators := []models.Invigilator{{ID: "inv-1"}, {ID: "inv-2"}}

	rows := sqlmock.NewRows([]string{"invigilator_id", "diet_id", "code"}).
		AddRow("inv-1", "diet-1", "no_evenings").
		AddRow("inv-1", "diet-1", "no_fridays").
		AddRow("inv-2", "diet-1", "no_evenings")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT invigilator_id, diet_id, code FROM invigilator_restrictions WHERE invigilator_id = ANY($1) AND diet_id = $2")).
		WithArgs(sqlmock.AnyArg(), "diet-1").
		WillReturnRows(rows)

	require.NoError(t, repo.LoadRestrictions(context.Background(), invigilators, "diet-1"))
	assert.Equal(t, []string{"no_evenings", "no_fridays"}, invigilators[0].RestrictionsForDiet("diet-1"))
	assert.Equal(t, []string{"no_evenings"}, invigilators[1].RestrictionsForDiet("diet-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
