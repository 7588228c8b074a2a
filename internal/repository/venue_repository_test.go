package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-ops/invigil-api/internal/models"
)

func newVenueRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestVenueRepositoryList(t *testing.T) {
	db, mock, cleanup := newVenueRepoMock(t)
	defer cleanup()
	repo := NewVenueRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "type", "capacity", "created_at", "updated_at"}).
		AddRow("venue-1", "Main Hall", "MAIN_HALL", 300, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, type, capacity, created_at, updated_at FROM venues WHERE 1=1 ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM venues WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	venues, total, err := repo.List(context.Background(), models.VenueFilter{})
	require.NoError(t, err)
	require.Len(t, venues, 1)
	assert.Equal(t, "Main Hall", venues[0].Name)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVenueRepositoryListFiltersByType(t *testing.T) {
	db, mock, cleanup := newVenueRepoMock(t)
	defer cleanup()
	repo := NewVenueRepository(db)

	venueType := models.VenueTypeSeparateRoom
	mock.ExpectQuery(regexp.QuoteMeta("FROM venues WHERE 1=1 AND type = $1")).
		WithArgs(venueType).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "capacity", "created_at", "updated_at"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(venueType).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.VenueFilter{Type: &venueType})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVenueRepositoryFindByIDLoadsCapabilities(t *testing.T) {
	db, mock, cleanup := newVenueRepoMock(t)
	defer cleanup()
	repo := NewVenueRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, type, capacity, created_at, updated_at FROM venues WHERE id = $1")).
		WithArgs("venue-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "capacity", "created_at", "updated_at"}).
			AddRow("venue-1", "Room B", "SEPARATE_ROOM", 12, time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT venue_id, code FROM venue_capabilities WHERE venue_id = ANY($1) ORDER BY code ASC")).
		WithArgs(pq.Array([]string{"venue-1"})).
		WillReturnRows(sqlmock.NewRows([]string{"venue_id", "code"}).
			AddRow("venue-1", "COMPUTER").
			AddRow("venue-1", "SCRIBE"))

	venue, err := repo.FindByID(context.Background(), "venue-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"COMPUTER", "SCRIBE"}, venue.Capabilities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVenueRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newVenueRepoMock(t)
	defer cleanup()
	repo := NewVenueRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO venues")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	venue := &models.Venue{Name: "Room C", Type: models.VenueTypeClassroom, Capacity: 30}
	require.NoError(t, repo.Create(context.Background(), venue))
	assert.NotEmpty(t, venue.ID)
	assert.False(t, venue.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVenueRepositoryReplaceCapabilities(t *testing.T) {
	db, mock, cleanup := newVenueRepoMock(t)
	defer cleanup()
	repo := NewVenueRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM venue_capabilities WHERE venue_id = $1")).
		WithArgs("venue-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO venue_capabilities (venue_id, code) VALUES ($1, $2)")).
		WithArgs("venue-1", "SCRIBE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceCapabilities(context.Background(), "venue-1", []string{"SCRIBE"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
