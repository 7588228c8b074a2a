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

func newAssignmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func assignmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "invigilator_id", "exam_venue_id", "assigned_start", "assigned_end", "role", "confirmed", "cancelled", "cancel_cause", "cancel_requested_at", "created_at", "updated_at"})
}

func TestAssignmentRepositoryListByExamVenue(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	start := time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	rows := assignmentRows().
		AddRow("asg-1", "inv-1", "ev-1", start, end, "lead", nil, false, nil, nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM assignments WHERE exam_venue_id = $1 AND cancelled = FALSE ORDER BY created_at ASC")).
		WithArgs("ev-1").
		WillReturnRows(rows)

	assignments, err := repo.ListByExamVenue(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "inv-1", assignments[0].InvigilatorID)
	assert.Equal(t, "lead", assignments[0].RoleOrEmpty())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCreateUpdateDelete(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec("INSERT INTO assignments").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Create(context.Background(), &models.Assignment{InvigilatorID: "inv-1", ExamVenueID: "ev-1"}))

	start := time.Date(2026, 5, 12, 9, 30, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET assigned_start = $2, assigned_end = $3, role = NULLIF($4, ''), updated_at = $5 WHERE id = $1")).
		WithArgs("asg-1", start, end, "reader support", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.UpdateWindow(context.Background(), "asg-1", &start, &end, "reader support"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assignments WHERE id = $1")).
		WithArgs("asg-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Delete(context.Background(), "asg-1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentRepositoryCancellationLifecycle(t *testing.T) {
	db, mock, cleanup := newAssignmentRepoMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	at := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET cancel_cause = $2, cancel_requested_at = $3, updated_at = $3 WHERE id = $1")).
		WithArgs("asg-1", "illness", at).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.RequestCancellation(context.Background(), "asg-1", "illness", at))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET cancelled = TRUE, cancel_requested_at = NULL, updated_at = $2 WHERE id = $1")).
		WithArgs("asg-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.ResolveCancellation(context.Background(), "asg-1", true))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignments SET cancel_cause = NULL, cancel_requested_at = NULL, updated_at = $2 WHERE id = $1")).
		WithArgs("asg-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.ResolveCancellation(context.Background(), "asg-2", false))

	assert.NoError(t, mock.ExpectationsWereMet())
}
