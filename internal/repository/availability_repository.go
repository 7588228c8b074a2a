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

// AvailabilityRepository manages half-day availability declarations.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an AvailabilityRepository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const availabilityColumns = "id, invigilator_id, date, slot, available, created_at, updated_at"

// ListForInvigilator returns an invigilator's declarations within a date range.
func (r *AvailabilityRepository) ListForInvigilator(ctx context.Context, invigilatorID string, from, to time.Time) ([]models.AvailabilityEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM availability_entries WHERE invigilator_id = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC, slot ASC", availabilityColumns)
	var entries []models.AvailabilityEntry
	if err := r.db.SelectContext(ctx, &entries, query, invigilatorID, from, to); err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return entries, nil
}

// ListForInvigilators returns declarations for a set of invigilators on a day.
// Used to hydrate the roster before eligibility filtering.
func (r *AvailabilityRepository) ListForInvigilators(ctx context.Context, invigilatorIDs []string, day time.Time) ([]models.AvailabilityEntry, error) {
	if len(invigilatorIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM availability_entries WHERE invigilator_id = ANY($1) AND date = $2", availabilityColumns)
	var entries []models.AvailabilityEntry
	if err := r.db.SelectContext(ctx, &entries, query, pq.Array(invigilatorIDs), day); err != nil {
		return nil, fmt.Errorf("list availability for roster: %w", err)
	}
	return entries, nil
}

// Upsert records a declaration, replacing any existing entry for the same
// invigilator, date and slot.
func (r *AvailabilityRepository) Upsert(ctx context.Context, entry *models.AvailabilityEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO availability_entries (id, invigilator_id, date, slot, available, created_at, updated_at)
		VALUES (:id, :invigilator_id, :date, :slot, :available, :created_at, :updated_at)
		ON CONFLICT (invigilator_id, date, slot)
		DO UPDATE SET available = EXCLUDED.available, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("upsert availability: %w", err)
	}
	return nil
}

// Delete removes a declaration, returning the slot to the unknown state.
func (r *AvailabilityRepository) Delete(ctx context.Context, invigilatorID string, day time.Time, slot models.Slot) error {
	const query = `DELETE FROM availability_entries WHERE invigilator_id = $1 AND date = $2 AND slot = $3`
	if _, err := r.db.ExecContext(ctx, query, invigilatorID, day, slot); err != nil {
		return fmt.Errorf("delete availability: %w", err)
	}
	return nil
}
