package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campus-ops/invigil-api/internal/models"
)

// AssignmentRepository manages invigilation shift persistence.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = "id, invigilator_id, exam_venue_id, assigned_start, assigned_end, role, confirmed, cancelled, cancel_cause, cancel_requested_at, created_at, updated_at"

// FindByID fetches a single assignment.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := fmt.Sprintf("SELECT %s FROM assignments WHERE id = $1", assignmentColumns)
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListByExamVenue returns non-cancelled assignments for one exam-venue window.
// These are the persisted selection the reconciler diffs against.
func (r *AssignmentRepository) ListByExamVenue(ctx context.Context, examVenueID string) ([]models.Assignment, error) {
	query := fmt.Sprintf("SELECT %s FROM assignments WHERE exam_venue_id = $1 AND cancelled = FALSE ORDER BY created_at ASC", assignmentColumns)
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, examVenueID); err != nil {
		return nil, fmt.Errorf("list assignments for exam venue: %w", err)
	}
	return assignments, nil
}

// ListActiveByInvigilators returns all non-cancelled assignments held by the
// given invigilators, hydrating windows straight from the assignment rows.
func (r *AssignmentRepository) ListActiveByInvigilators(ctx context.Context, invigilatorIDs []string) ([]models.Assignment, error) {
	if len(invigilatorIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM assignments WHERE invigilator_id = ANY($1) AND cancelled = FALSE", assignmentColumns)
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, pq.Array(invigilatorIDs)); err != nil {
		return nil, fmt.Errorf("list assignments for invigilators: %w", err)
	}
	return assignments, nil
}

// ListByInvigilator returns an invigilator's assignments, newest first.
func (r *AssignmentRepository) ListByInvigilator(ctx context.Context, invigilatorID string, includeCancelled bool) ([]models.Assignment, error) {
	query := fmt.Sprintf("SELECT %s FROM assignments WHERE invigilator_id = $1", assignmentColumns)
	if !includeCancelled {
		query += " AND cancelled = FALSE"
	}
	query += " ORDER BY assigned_start DESC NULLS LAST, created_at DESC"
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, invigilatorID); err != nil {
		return nil, fmt.Errorf("list assignments for invigilator: %w", err)
	}
	return assignments, nil
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO assignments (id, invigilator_id, exam_venue_id, assigned_start, assigned_end, role, confirmed, cancelled, cancel_cause, cancel_requested_at, created_at, updated_at)
		VALUES (:id, :invigilator_id, :exam_venue_id, :assigned_start, :assigned_end, :role, :confirmed, :cancelled, :cancel_cause, :cancel_requested_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// UpdateWindow rewrites the timing and role of an existing assignment.
func (r *AssignmentRepository) UpdateWindow(ctx context.Context, id string, start, end *time.Time, role string) error {
	const query = `UPDATE assignments SET assigned_start = $2, assigned_end = $3, role = NULLIF($4, ''), updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, start, end, role, time.Now().UTC()); err != nil {
		return fmt.Errorf("update assignment window: %w", err)
	}
	return nil
}

// Delete removes an assignment outright. Reconciliation removals use this;
// the cancellation workflow keeps the row and flips flags instead.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM assignments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// SetConfirmed records the invigilator's confirmation decision.
func (r *AssignmentRepository) SetConfirmed(ctx context.Context, id string, confirmed bool) error {
	const query = `UPDATE assignments SET confirmed = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, confirmed, time.Now().UTC()); err != nil {
		return fmt.Errorf("confirm assignment: %w", err)
	}
	return nil
}

// RequestCancellation records a pending cancellation request.
func (r *AssignmentRepository) RequestCancellation(ctx context.Context, id string, cause string, at time.Time) error {
	const query = `UPDATE assignments SET cancel_cause = $2, cancel_requested_at = $3, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, cause, at); err != nil {
		return fmt.Errorf("request cancellation: %w", err)
	}
	return nil
}

// WithdrawCancellation clears a pending cancellation request.
func (r *AssignmentRepository) WithdrawCancellation(ctx context.Context, id string) error {
	const query = `UPDATE assignments SET cancel_cause = NULL, cancel_requested_at = NULL, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("withdraw cancellation: %w", err)
	}
	return nil
}

// ResolveCancellation finalises a pending request. Approval marks the
// assignment cancelled; rejection clears the request and keeps the shift.
func (r *AssignmentRepository) ResolveCancellation(ctx context.Context, id string, approved bool) error {
	now := time.Now().UTC()
	if approved {
		const query = `UPDATE assignments SET cancelled = TRUE, cancel_requested_at = NULL, updated_at = $2 WHERE id = $1`
		if _, err := r.db.ExecContext(ctx, query, id, now); err != nil {
			return fmt.Errorf("approve cancellation: %w", err)
		}
		return nil
	}
	const query = `UPDATE assignments SET cancel_cause = NULL, cancel_requested_at = NULL, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("reject cancellation: %w", err)
	}
	return nil
}
