package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campus-ops/invigil-api/internal/models"
)

// VenueRepository manages venue and capability persistence.
type VenueRepository struct {
	db *sqlx.DB
}

// NewVenueRepository constructs a VenueRepository.
func NewVenueRepository(db *sqlx.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

const venueColumns = "id, name, type, capacity, created_at, updated_at"

// List returns venues matching filters along with total count.
func (r *VenueRepository) List(ctx context.Context, filter models.VenueFilter) ([]models.Venue, int, error) {
	base := "FROM venues WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY name %s LIMIT %d OFFSET %d", venueColumns, base, order, size, offset)
	var venues []models.Venue
	if err := r.db.SelectContext(ctx, &venues, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list venues: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count venues: %w", err)
	}

	return venues, total, nil
}

// ListAll returns every venue with capabilities attached.
func (r *VenueRepository) ListAll(ctx context.Context) ([]models.Venue, error) {
	query := fmt.Sprintf("SELECT %s FROM venues ORDER BY name ASC", venueColumns)
	var venues []models.Venue
	if err := r.db.SelectContext(ctx, &venues, query); err != nil {
		return nil, fmt.Errorf("list all venues: %w", err)
	}
	if err := r.LoadCapabilities(ctx, venues); err != nil {
		return nil, err
	}
	return venues, nil
}

// FindByID fetches a venue with its capabilities.
func (r *VenueRepository) FindByID(ctx context.Context, id string) (*models.Venue, error) {
	query := fmt.Sprintf("SELECT %s FROM venues WHERE id = $1", venueColumns)
	var venue models.Venue
	if err := r.db.GetContext(ctx, &venue, query, id); err != nil {
		return nil, err
	}
	venues := []models.Venue{venue}
	if err := r.LoadCapabilities(ctx, venues); err != nil {
		return nil, err
	}
	return &venues[0], nil
}

// LoadCapabilities attaches capability codes to each venue.
func (r *VenueRepository) LoadCapabilities(ctx context.Context, venues []models.Venue) error {
	if len(venues) == 0 {
		return nil
	}
	ids := make([]string, len(venues))
	index := make(map[string]int, len(venues))
	for i, v := range venues {
		ids[i] = v.ID
		index[v.ID] = i
	}

	const query = `SELECT venue_id, code FROM venue_capabilities WHERE venue_id = ANY($1) ORDER BY code ASC`
	rows := []struct {
		VenueID string `db:"venue_id"`
		Code    string `db:"code"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("load venue capabilities: %w", err)
	}
	for _, row := range rows {
		if i, ok := index[row.VenueID]; ok {
			venues[i].Capabilities = append(venues[i].Capabilities, row.Code)
		}
	}
	return nil
}

// Create inserts a new venue.
func (r *VenueRepository) Create(ctx context.Context, venue *models.Venue) error {
	if venue.ID == "" {
		venue.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if venue.CreatedAt.IsZero() {
		venue.CreatedAt = now
	}
	venue.UpdatedAt = now

	const query = `INSERT INTO venues (id, name, type, capacity, created_at, updated_at)
		VALUES (:id, :name, :type, :capacity, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, venue); err != nil {
		return fmt.Errorf("create venue: %w", err)
	}
	return nil
}

// Update modifies an existing venue.
func (r *VenueRepository) Update(ctx context.Context, venue *models.Venue) error {
	venue.UpdatedAt = time.Now().UTC()
	const query = `UPDATE venues SET name = :name, type = :type, capacity = :capacity, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, venue); err != nil {
		return fmt.Errorf("update venue: %w", err)
	}
	return nil
}

// ReplaceCapabilities swaps a venue's capability codes.
func (r *VenueRepository) ReplaceCapabilities(ctx context.Context, venueID string, codes []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin capabilities tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM venue_capabilities WHERE venue_id = $1`, venueID); err != nil {
		return fmt.Errorf("clear venue capabilities: %w", err)
	}
	for _, code := range codes {
		if _, err := tx.ExecContext(ctx, `INSERT INTO venue_capabilities (venue_id, code) VALUES ($1, $2)`, venueID, code); err != nil {
			return fmt.Errorf("insert venue capability: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit venue capabilities: %w", err)
	}
	return nil
}
