package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campus-ops/invigil-api/internal/models"
)

// InvigilatorRepository manages persistence for the invigilation roster.
type InvigilatorRepository struct {
	db *sqlx.DB
}

// NewInvigilatorRepository constructs an InvigilatorRepository.
func NewInvigilatorRepository(db *sqlx.DB) *InvigilatorRepository {
	return &InvigilatorRepository{db: db}
}

const invigilatorColumns = "id, preferred_name, full_name, email, phone, resigned, resigned_at, created_at, updated_at"

// List returns roster members matching filters along with total count.
func (r *InvigilatorRepository) List(ctx context.Context, filter models.InvigilatorFilter) ([]models.Invigilator, int, error) {
	base := "FROM invigilators WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Resigned != nil {
		conditions = append(conditions, fmt.Sprintf("resigned = $%d", len(args)+1))
		args = append(args, *filter.Resigned)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(COALESCE(preferred_name, '')) LIKE $%d OR LOWER(email) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, search)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "full_name"
	}
	allowedSorts := map[string]string{
		"full_name":  "full_name",
		"email":      "email",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "full_name"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", invigilatorColumns, base, column, order, size, offset)
	var invigilators []models.Invigilator
	if err := r.db.SelectContext(ctx, &invigilators, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invigilators: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count invigilators: %w", err)
	}

	return invigilators, total, nil
}

// Roster returns the full roster ordered by display preference, without
// pagination. Eligibility filtering works over the complete list.
func (r *InvigilatorRepository) Roster(ctx context.Context) ([]models.Invigilator, error) {
	query := fmt.Sprintf("SELECT %s FROM invigilators ORDER BY COALESCE(NULLIF(preferred_name, ''), full_name) ASC", invigilatorColumns)
	var invigilators []models.Invigilator
	if err := r.db.SelectContext(ctx, &invigilators, query); err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	return invigilators, nil
}

// FindByID fetches a roster member by ID.
func (r *InvigilatorRepository) FindByID(ctx context.Context, id string) (*models.Invigilator, error) {
	query := fmt.Sprintf("SELECT %s FROM invigilators WHERE id = $1", invigilatorColumns)
	var invigilator models.Invigilator
	if err := r.db.GetContext(ctx, &invigilator, query, id); err != nil {
		return nil, err
	}
	return &invigilator, nil
}

// ExistsByEmail checks if another roster member uses the same email.
func (r *InvigilatorRepository) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM invigilators WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check invigilator email: %w", err)
	}
	return true, nil
}

// Create inserts a new roster member.
func (r *InvigilatorRepository) Create(ctx context.Context, invigilator *models.Invigilator) error {
	if invigilator.ID == "" {
		invigilator.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if invigilator.CreatedAt.IsZero() {
		invigilator.CreatedAt = now
	}
	invigilator.UpdatedAt = now

	const query = `INSERT INTO invigilators (id, preferred_name, full_name, email, phone, resigned, resigned_at, created_at, updated_at)
		VALUES (:id, :preferred_name, :full_name, :email, :phone, :resigned, :resigned_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invigilator); err != nil {
		return fmt.Errorf("create invigilator: %w", err)
	}
	return nil
}

// Update modifies an existing roster member.
func (r *InvigilatorRepository) Update(ctx context.Context, invigilator *models.Invigilator) error {
	invigilator.UpdatedAt = time.Now().UTC()
	const query = `UPDATE invigilators SET preferred_name = :preferred_name, full_name = :full_name, email = :email, phone = :phone, resigned = :resigned, resigned_at = :resigned_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, invigilator); err != nil {
		return fmt.Errorf("update invigilator: %w", err)
	}
	return nil
}

// MarkResigned flags a roster member as resigned.
func (r *InvigilatorRepository) MarkResigned(ctx context.Context, id string) error {
	now := time.Now().UTC()
	const query = `UPDATE invigilators SET resigned = TRUE, resigned_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, now); err != nil {
		return fmt.Errorf("mark invigilator resigned: %w", err)
	}
	return nil
}

// LoadQualifications attaches qualification codes to each invigilator.
func (r *InvigilatorRepository) LoadQualifications(ctx context.Context, invigilators []models.Invigilator) error {
	if len(invigilators) == 0 {
		return nil
	}
	ids := make([]string, len(invigilators))
	index := make(map[string]int, len(invigilators))
	for i, inv := range invigilators {
		ids[i] = inv.ID
		index[inv.ID] = i
	}

	const query = `SELECT invigilator_id, code FROM invigilator_qualifications WHERE invigilator_id = ANY($1) ORDER BY code ASC`
	rows := []struct {
		InvigilatorID string `db:"invigilator_id"`
		Code          string `db:"code"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load qualifications: %w", err)
	}
	for _, row := range rows {
		if i, ok := index[row.InvigilatorID]; ok {
			invigilators[i].Qualifications = append(invigilators[i].Qualifications, row.Code)
		}
	}
	return nil
}

// LoadRestrictions attaches per-diet restriction codes to each invigilator.
func (r *InvigilatorRepository) LoadRestrictions(ctx context.Context, invigilators []models.Invigilator, dietID string) error {
	if len(invigilators) == 0 {
		return nil
	}
	ids := make([]string, len(invigilators))
	index := make(map[string]int, len(invigilators))
	for i, inv := range invigilators {
		ids[i] = inv.ID
		index[inv.ID] = i
	}

	query := `SELECT invigilator_id, diet_id, code FROM invigilator_restrictions WHERE invigilator_id = ANY($1)`
	args := []interface{}{pq.Array(ids)}
	if dietID != "" {
		query += " AND diet_id = $2"
		args = append(args, dietID)
	}
	query += " ORDER BY code ASC"

	rows := []struct {
		InvigilatorID string `db:"invigilator_id"`
		DietID        string `db:"diet_id"`
		Code          string `db:"code"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("load restrictions: %w", err)
	}
	for _, row := range rows {
		i, ok := index[row.InvigilatorID]
		if !ok {
			continue
		}
		attached := false
		for j := range invigilators[i].Restrictions {
			if invigilators[i].Restrictions[j].DietID == row.DietID {
				invigilators[i].Restrictions[j].Codes = append(invigilators[i].Restrictions[j].Codes, row.Code)
				attached = true
				break
			}
		}
		if !attached {
			invigilators[i].Restrictions = append(invigilators[i].Restrictions, models.DietRestriction{DietID: row.DietID, Codes: []string{row.Code}})
		}
	}
	return nil
}

// ReplaceQualifications swaps an invigilator's qualification codes.
func (r *InvigilatorRepository) ReplaceQualifications(ctx context.Context, invigilatorID string, codes []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin qualifications tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM invigilator_qualifications WHERE invigilator_id = $1`, invigilatorID); err != nil {
		return fmt.Errorf("clear qualifications: %w", err)
	}
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx, `INSERT INTO invigilator_qualifications (invigilator_id, code) VALUES ($1, $2)`, invigilatorID, code); err != nil {
			return fmt.Errorf("insert qualification: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit qualifications: %w", err)
	}
	return nil
}
