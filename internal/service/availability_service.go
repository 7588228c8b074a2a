package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-ops/invigil-api/internal/models"
	appErrors "github.com/campus-ops/invigil-api/pkg/errors"
)

type availabilityRepository interface {
	ListForInvigilator(ctx context.Context, invigilatorID string, from, to time.Time) ([]models.AvailabilityEntry, error)
	Upsert(ctx context.Context, entry *models.AvailabilityEntry) error
	Delete(ctx context.Context, invigilatorID string, day time.Time, slot models.Slot) error
}

type availabilityRosterRepository interface {
	FindByID(ctx context.Context, id string) (*models.Invigilator, error)
}

// DeclareAvailabilityRequest records one half-day declaration.
type DeclareAvailabilityRequest struct {
	InvigilatorID string      `json:"invigilator_id" validate:"required"`
	Date          time.Time   `json:"date" validate:"required"`
	Slot          models.Slot `json:"slot" validate:"required"`
	Available     bool        `json:"available"`
}

// DeclareRangeRequest fills every date in [From, To] for one slot.
type DeclareRangeRequest struct {
	InvigilatorID string      `json:"invigilator_id" validate:"required"`
	From          time.Time   `json:"from" validate:"required"`
	To            time.Time   `json:"to" validate:"required"`
	Slot          models.Slot `json:"slot" validate:"required"`
	Available     bool        `json:"available"`
}

// AvailabilityService manages half-day availability declarations.
type AvailabilityService struct {
	repo      availabilityRepository
	roster    availabilityRosterRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService.
func NewAvailabilityService(repo availabilityRepository, roster availabilityRosterRepository, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, roster: roster, validator: validate, logger: logger}
}

// List returns an invigilator's declarations within a date range.
func (s *AvailabilityService) List(ctx context.Context, invigilatorID string, from, to time.Time) ([]models.AvailabilityEntry, error) {
	if err := s.ensureInvigilator(ctx, invigilatorID); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end precedes range start")
	}
	entries, err := s.repo.ListForInvigilator(ctx, invigilatorID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list availability")
	}
	return entries, nil
}

// Declare records or overwrites a half-day declaration.
func (s *AvailabilityService) Declare(ctx context.Context, req DeclareAvailabilityRequest) (*models.AvailabilityEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if !req.Slot.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slot must be MORNING or EVENING")
	}
	if err := s.ensureInvigilator(ctx, req.InvigilatorID); err != nil {
		return nil, err
	}

	entry := &models.AvailabilityEntry{
		InvigilatorID: req.InvigilatorID,
		Date:          req.Date,
		Slot:          req.Slot,
		Available:     req.Available,
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability")
	}
	return entry, nil
}

// maxRangeDays bounds bulk declarations to roughly one diet's span.
const maxRangeDays = 92

// DeclareRange overwrites one slot's declaration for every date in the range,
// inclusive of both endpoints.
func (s *AvailabilityService) DeclareRange(ctx context.Context, req DeclareRangeRequest) ([]models.AvailabilityEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if !req.Slot.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slot must be MORNING or EVENING")
	}
	if req.To.Before(req.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end precedes range start")
	}
	if int(req.To.Sub(req.From).Hours()/24) > maxRangeDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range exceeds 92 days")
	}
	if err := s.ensureInvigilator(ctx, req.InvigilatorID); err != nil {
		return nil, err
	}

	var entries []models.AvailabilityEntry
	for day := req.From; !day.After(req.To); day = day.AddDate(0, 0, 1) {
		entry := &models.AvailabilityEntry{
			InvigilatorID: req.InvigilatorID,
			Date:          day,
			Slot:          req.Slot,
			Available:     req.Available,
		}
		if err := s.repo.Upsert(ctx, entry); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability")
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Clear deletes a declaration, returning the slot to the unknown state.
// Unknown availability excludes the invigilator from only-available queries.
func (s *AvailabilityService) Clear(ctx context.Context, invigilatorID string, day time.Time, slot models.Slot) error {
	if !slot.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "slot must be MORNING or EVENING")
	}
	if err := s.ensureInvigilator(ctx, invigilatorID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, invigilatorID, day, slot); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear availability")
	}
	return nil
}

func (s *AvailabilityService) ensureInvigilator(ctx context.Context, id string) error {
	if _, err := s.roster.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "invigilator not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invigilator")
	}
	return nil
}
