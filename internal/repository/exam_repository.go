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

// ExamRepository manages diets, exams, sitting windows and provisions.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs an ExamRepository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

const examVenueColumns = "id, exam_id, venue_id, start_at, length_minutes, core, created_at, updated_at"

// ListDiets returns all exam diets, most recent first.
func (r *ExamRepository) ListDiets(ctx context.Context) ([]models.Diet, error) {
	const query = `SELECT id, name, start_date, end_date, created_at, updated_at FROM diets ORDER BY start_date DESC`
	var diets []models.Diet
	if err := r.db.SelectContext(ctx, &diets, query); err != nil {
		return nil, fmt.Errorf("list diets: %w", err)
	}
	return diets, nil
}

// FindDiet fetches a diet by ID.
func (r *ExamRepository) FindDiet(ctx context.Context, id string) (*models.Diet, error) {
	const query = `SELECT id, name, start_date, end_date, created_at, updated_at FROM diets WHERE id = $1`
	var diet models.Diet
	if err := r.db.GetContext(ctx, &diet, query, id); err != nil {
		return nil, err
	}
	return &diet, nil
}

// CreateDiet inserts a new exam diet.
func (r *ExamRepository) CreateDiet(ctx context.Context, diet *models.Diet) error {
	if diet.ID == "" {
		diet.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if diet.CreatedAt.IsZero() {
		diet.CreatedAt = now
	}
	diet.UpdatedAt = now

	const query = `INSERT INTO diets (id, name, start_date, end_date, created_at, updated_at)
		VALUES (:id, :name, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, diet); err != nil {
		return fmt.Errorf("create diet: %w", err)
	}
	return nil
}

// ListExams returns exams matching filters along with total count.
func (r *ExamRepository) ListExams(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error) {
	base := "FROM exams WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.DietID != "" {
		conditions = append(conditions, fmt.Sprintf("diet_id = $%d", len(args)+1))
		args = append(args, filter.DietID)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(code) LIKE $%d OR LOWER(title) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, search)
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

	query := fmt.Sprintf("SELECT id, diet_id, code, title, created_at, updated_at %s ORDER BY code ASC LIMIT %d OFFSET %d", base, size, offset)
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}

	return exams, total, nil
}

// FindExam fetches an exam by ID.
func (r *ExamRepository) FindExam(ctx context.Context, id string) (*models.Exam, error) {
	const query = `SELECT id, diet_id, code, title, created_at, updated_at FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// CreateExam inserts a new exam.
func (r *ExamRepository) CreateExam(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	exam.UpdatedAt = now

	const query = `INSERT INTO exams (id, diet_id, code, title, created_at, updated_at)
		VALUES (:id, :diet_id, :code, :title, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// FindExamVenue fetches a single sitting window.
func (r *ExamRepository) FindExamVenue(ctx context.Context, id string) (*models.ExamVenue, error) {
	query := fmt.Sprintf("SELECT %s FROM exam_venues WHERE id = $1", examVenueColumns)
	var ev models.ExamVenue
	if err := r.db.GetContext(ctx, &ev, query, id); err != nil {
		return nil, err
	}
	return &ev, nil
}

// ListExamVenues returns the sitting windows scheduled for an exam.
func (r *ExamRepository) ListExamVenues(ctx context.Context, examID string) ([]models.ExamVenue, error) {
	query := fmt.Sprintf("SELECT %s FROM exam_venues WHERE exam_id = $1 ORDER BY start_at ASC NULLS LAST", examVenueColumns)
	var evs []models.ExamVenue
	if err := r.db.SelectContext(ctx, &evs, query, examID); err != nil {
		return nil, fmt.Errorf("list exam venues: %w", err)
	}
	return evs, nil
}

// ListWindowsByVenues returns sitting windows grouped under each venue,
// used as clash context when matching venues against provisions.
func (r *ExamRepository) ListWindowsByVenues(ctx context.Context, venueIDs []string) (map[string][]models.ExamVenue, error) {
	if len(venueIDs) == 0 {
		return map[string][]models.ExamVenue{}, nil
	}
	query := fmt.Sprintf("SELECT %s FROM exam_venues WHERE venue_id = ANY($1)", examVenueColumns)
	var evs []models.ExamVenue
	if err := r.db.SelectContext(ctx, &evs, query, pq.Array(venueIDs)); err != nil {
		return nil, fmt.Errorf("list venue windows: %w", err)
	}
	grouped := make(map[string][]models.ExamVenue, len(venueIDs))
	for _, ev := range evs {
		grouped[ev.VenueID] = append(grouped[ev.VenueID], ev)
	}
	return grouped, nil
}

// CreateExamVenue schedules an exam sitting at a venue.
func (r *ExamRepository) CreateExamVenue(ctx context.Context, ev *models.ExamVenue) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = now
	}
	ev.UpdatedAt = now

	const query = `INSERT INTO exam_venues (id, exam_id, venue_id, start_at, length_minutes, core, created_at, updated_at)
		VALUES (:id, :exam_id, :venue_id, :start_at, :length_minutes, :core, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ev); err != nil {
		return fmt.Errorf("create exam venue: %w", err)
	}
	return nil
}

// UpdateExamVenue rewrites a sitting window.
func (r *ExamRepository) UpdateExamVenue(ctx context.Context, ev *models.ExamVenue) error {
	ev.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exam_venues SET venue_id = :venue_id, start_at = :start_at, length_minutes = :length_minutes, core = :core, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, ev); err != nil {
		return fmt.Errorf("update exam venue: %w", err)
	}
	return nil
}

// ListProvisions returns provision requirements for an exam with codes
// attached.
func (r *ExamRepository) ListProvisions(ctx context.Context, examID string) ([]models.ProvisionRequirement, error) {
	const query = `SELECT id, exam_id, student_ref, created_at, updated_at FROM provision_requirements WHERE exam_id = $1 ORDER BY student_ref ASC`
	var provisions []models.ProvisionRequirement
	if err := r.db.SelectContext(ctx, &provisions, query, examID); err != nil {
		return nil, fmt.Errorf("list provisions: %w", err)
	}
	if len(provisions) == 0 {
		return provisions, nil
	}

	ids := make([]string, len(provisions))
	index := make(map[string]int, len(provisions))
	for i, p := range provisions {
		ids[i] = p.ID
		index[p.ID] = i
	}

	const codeQuery = `SELECT provision_id, code FROM provision_codes WHERE provision_id = ANY($1) ORDER BY code ASC`
	rows := []struct {
		ProvisionID string `db:"provision_id"`
		Code        string `db:"code"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, codeQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load provision codes: %w", err)
	}
	for _, row := range rows {
		if i, ok := index[row.ProvisionID]; ok {
			provisions[i].Codes = append(provisions[i].Codes, row.Code)
		}
	}
	return provisions, nil
}

// SaveProvision upserts a provision requirement and replaces its codes.
func (r *ExamRepository) SaveProvision(ctx context.Context, provision *models.ProvisionRequirement) error {
	if provision.ID == "" {
		provision.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if provision.CreatedAt.IsZero() {
		provision.CreatedAt = now
	}
	provision.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin provision tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const upsert = `INSERT INTO provision_requirements (id, exam_id, student_ref, created_at, updated_at)
		VALUES (:id, :exam_id, :student_ref, :created_at, :updated_at)
		ON CONFLICT (exam_id, student_ref)
		DO UPDATE SET updated_at = EXCLUDED.updated_at`
	if _, err := tx.NamedExecContext(ctx, upsert, provision); err != nil {
		return fmt.Errorf("upsert provision: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM provision_codes WHERE provision_id = $1`, provision.ID); err != nil {
		return fmt.Errorf("clear provision codes: %w", err)
	}
	for _, code := range provision.Codes {
		if _, err := tx.ExecContext(ctx, `INSERT INTO provision_codes (provision_id, code) VALUES ($1, $2)`, provision.ID, code); err != nil {
			return fmt.Errorf("insert provision code: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit provision: %w", err)
	}
	return nil
}
