package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-ops/invigil-api/internal/models"
	appErrors "github.com/campus-ops/invigil-api/pkg/errors"
)

type examRepository interface {
	ListDiets(ctx context.Context) ([]models.Diet, error)
	FindDiet(ctx context.Context, id string) (*models.Diet, error)
	CreateDiet(ctx context.Context, diet *models.Diet) error
	ListExams(ctx context.Context, filter models.ExamFilter) ([]models.Exam, int, error)
	FindExam(ctx context.Context, id string) (*models.Exam, error)
	CreateExam(ctx context.Context, exam *models.Exam) error
	FindExamVenue(ctx context.Context, id string) (*models.ExamVenue, error)
	ListExamVenues(ctx context.Context, examID string) ([]models.ExamVenue, error)
	CreateExamVenue(ctx context.Context, ev *models.ExamVenue) error
	UpdateExamVenue(ctx context.Context, ev *models.ExamVenue) error
	ListProvisions(ctx context.Context, examID string) ([]models.ProvisionRequirement, error)
	SaveProvision(ctx context.Context, provision *models.ProvisionRequirement) error
}

type examVenueLookup interface {
	FindByID(ctx context.Context, id string) (*models.Venue, error)
}

// CreateDietRequest represents payload for opening an exam diet.
type CreateDietRequest struct {
	Name      string    `json:"name" validate:"required,max=200"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
}

// CreateExamRequest represents payload for registering an exam.
type CreateExamRequest struct {
	DietID string `json:"diet_id" validate:"required"`
	Code   string `json:"code" validate:"required,max=50"`
	Title  string `json:"title" validate:"required,max=300"`
}

// ScheduleSittingRequest places an exam sitting into a venue. Start and
// length may be omitted when the timing is not yet fixed.
type ScheduleSittingRequest struct {
	ExamID        string     `json:"exam_id" validate:"required"`
	VenueID       string     `json:"venue_id" validate:"required"`
	StartAt       *time.Time `json:"start_at"`
	LengthMinutes *int       `json:"length_minutes" validate:"omitempty,gt=0"`
	Core          bool       `json:"core"`
}

// SaveProvisionRequest records the capability codes a student needs.
type SaveProvisionRequest struct {
	ExamID     string   `json:"exam_id" validate:"required"`
	StudentRef string   `json:"student_ref" validate:"required,max=100"`
	Codes      []string `json:"codes" validate:"required"`
}

// ExamService orchestrates diets, exams, sitting windows and provisions.
type ExamService struct {
	repo      examRepository
	venues    examVenueLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService constructs an ExamService.
func NewExamService(repo examRepository, venues examVenueLookup, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{repo: repo, venues: venues, validator: validate, logger: logger}
}

// ListDiets returns all exam diets.
func (s *ExamService) ListDiets(ctx context.Context) ([]models.Diet, error) {
	diets, err := s.repo.ListDiets(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list diets")
	}
	return diets, nil
}

// CreateDiet opens a new exam diet.
func (s *ExamService) CreateDiet(ctx context.Context, req CreateDietRequest) (*models.Diet, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid diet payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "diet end date precedes start date")
	}
	diet := &models.Diet{
		Name:      strings.TrimSpace(req.Name),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := s.repo.CreateDiet(ctx, diet); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create diet")
	}
	return diet, nil
}

// ListExams returns exams plus pagination data.
func (s *ExamService) ListExams(ctx context.Context, filter models.ExamFilter) ([]models.Exam, *models.Pagination, error) {
	exams, total, err := s.repo.ListExams(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return exams, pagination, nil
}

// GetExam returns an exam with its sitting windows attached.
func (s *ExamService) GetExam(ctx context.Context, id string) (*models.Exam, []models.ExamVenue, error) {
	exam, err := s.repo.FindExam(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	sittings, err := s.repo.ListExamVenues(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam sittings")
	}
	return exam, sittings, nil
}

// CreateExam registers an exam inside a diet.
func (s *ExamService) CreateExam(ctx context.Context, req CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	if _, err := s.repo.FindDiet(ctx, req.DietID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "diet not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load diet")
	}
	exam := &models.Exam{
		DietID: req.DietID,
		Code:   strings.TrimSpace(req.Code),
		Title:  strings.TrimSpace(req.Title),
	}
	if err := s.repo.CreateExam(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return exam, nil
}

// ScheduleSitting creates an exam-venue window.
func (s *ExamService) ScheduleSitting(ctx context.Context, req ScheduleSittingRequest) (*models.ExamVenue, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sitting payload")
	}
	if _, err := s.repo.FindExam(ctx, req.ExamID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if _, err := s.venues.FindByID(ctx, req.VenueID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "venue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load venue")
	}

	ev := &models.ExamVenue{
		ExamID:        req.ExamID,
		VenueID:       req.VenueID,
		StartAt:       req.StartAt,
		LengthMinutes: req.LengthMinutes,
		Core:          req.Core,
	}
	if err := s.repo.CreateExamVenue(ctx, ev); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule sitting")
	}
	return ev, nil
}

// RescheduleSitting rewrites the timing or venue of a sitting window.
func (s *ExamService) RescheduleSitting(ctx context.Context, id string, req ScheduleSittingRequest) (*models.ExamVenue, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid sitting payload")
	}
	ev, err := s.repo.FindExamVenue(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam venue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam venue")
	}

	ev.VenueID = req.VenueID
	ev.StartAt = req.StartAt
	ev.LengthMinutes = req.LengthMinutes
	ev.Core = req.Core
	if err := s.repo.UpdateExamVenue(ctx, ev); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule sitting")
	}
	return ev, nil
}

// ListProvisions returns provision requirements recorded against an exam.
func (s *ExamService) ListProvisions(ctx context.Context, examID string) ([]models.ProvisionRequirement, error) {
	if _, err := s.repo.FindExam(ctx, examID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	provisions, err := s.repo.ListProvisions(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list provisions")
	}
	return provisions, nil
}

// SaveProvision records or replaces a student's provision requirement.
func (s *ExamService) SaveProvision(ctx context.Context, req SaveProvisionRequest) (*models.ProvisionRequirement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid provision payload")
	}
	if _, err := s.repo.FindExam(ctx, req.ExamID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	provision := &models.ProvisionRequirement{
		ExamID:     req.ExamID,
		StudentRef: strings.TrimSpace(req.StudentRef),
		Codes:      req.Codes,
	}
	if err := s.repo.SaveProvision(ctx, provision); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save provision")
	}
	return provision, nil
}
