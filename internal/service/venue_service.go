package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-ops/invigil-api/internal/models"
	"github.com/campus-ops/invigil-api/internal/rostering"
	appErrors "github.com/campus-ops/invigil-api/pkg/errors"
)

type venueRepository interface {
	List(ctx context.Context, filter models.VenueFilter) ([]models.Venue, int, error)
	ListAll(ctx context.Context) ([]models.Venue, error)
	FindByID(ctx context.Context, id string) (*models.Venue, error)
	Create(ctx context.Context, venue *models.Venue) error
	Update(ctx context.Context, venue *models.Venue) error
	ReplaceCapabilities(ctx context.Context, venueID string, codes []string) error
	LoadCapabilities(ctx context.Context, venues []models.Venue) error
}

type venueExamRepository interface {
	FindExamVenue(ctx context.Context, id string) (*models.ExamVenue, error)
	ListWindowsByVenues(ctx context.Context, venueIDs []string) (map[string][]models.ExamVenue, error)
}

// CreateVenueRequest represents payload for registering venues.
type CreateVenueRequest struct {
	Name         string           `json:"name" validate:"required,max=200"`
	Type         models.VenueType `json:"type" validate:"required,oneof=MAIN_HALL SEPARATE_ROOM CLASSROOM"`
	Capacity     int              `json:"capacity" validate:"gte=0"`
	Capabilities []string         `json:"capabilities" validate:"omitempty,dive,max=100"`
}

// UpdateVenueRequest represents payload for updating venues.
type UpdateVenueRequest struct {
	Name         string           `json:"name" validate:"required,max=200"`
	Type         models.VenueType `json:"type" validate:"required,oneof=MAIN_HALL SEPARATE_ROOM CLASSROOM"`
	Capacity     int              `json:"capacity" validate:"gte=0"`
	Capabilities []string         `json:"capabilities" validate:"omitempty,dive,max=100"`
}

// MatchVenuesRequest asks which venues can host a provision requirement
// during an exam-venue window.
type MatchVenuesRequest struct {
	ExamVenueID     string   `json:"-" validate:"required"`
	Requirement     []string `json:"requirement" validate:"required"`
	ExcludeMainHall bool     `json:"exclude_main_hall"`
}

// ToggleRequirementRequest applies one capability toggle to a selection.
type ToggleRequirementRequest struct {
	Selected []string `json:"selected"`
	Toggled  string   `json:"toggled" validate:"required"`
}

// VenueService orchestrates venue management and capability matching.
type VenueService struct {
	repo      venueRepository
	exams     venueExamRepository
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewVenueService constructs a VenueService. Cache is optional.
func NewVenueService(repo venueRepository, exams venueExamRepository, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *VenueService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VenueService{repo: repo, exams: exams, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

type cachedVenueList struct {
	Venues     []models.Venue     `json:"venues"`
	Pagination *models.Pagination `json:"pagination"`
}

// List returns venues plus pagination data.
func (s *VenueService) List(ctx context.Context, filter models.VenueFilter) ([]models.Venue, *models.Pagination, error) {
	cacheKey := s.listCacheKey(filter)
	if s.cache != nil {
		var cached cachedVenueList
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached.Venues, cached.Pagination, nil
		}
	}

	venues, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list venues")
	}
	if err := s.repo.LoadCapabilities(ctx, venues); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load capabilities")
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

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, cachedVenueList{Venues: venues, Pagination: pagination}, s.cacheTTL); err != nil {
			s.logger.Warn("venue list cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return venues, pagination, nil
}

func (s *VenueService) listCacheKey(filter models.VenueFilter) string {
	venueType := ""
	if filter.Type != nil {
		venueType = string(*filter.Type)
	}
	return fmt.Sprintf("venues:list:%s:%s:%d:%d:%s:%s", venueType, filter.Search, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

func (s *VenueService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "venues:*"); err != nil {
		s.logger.Warn("venue cache invalidation failed", zap.Error(err))
	}
}

// Get returns a venue by id.
func (s *VenueService) Get(ctx context.Context, id string) (*models.Venue, error) {
	venue, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "venue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load venue")
	}
	return venue, nil
}

// Create registers a new venue.
func (s *VenueService) Create(ctx context.Context, req CreateVenueRequest) (*models.Venue, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid venue payload")
	}
	venue := &models.Venue{
		Name:     strings.TrimSpace(req.Name),
		Type:     req.Type,
		Capacity: req.Capacity,
	}
	if err := s.repo.Create(ctx, venue); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create venue")
	}
	if len(req.Capabilities) > 0 {
		if err := s.repo.ReplaceCapabilities(ctx, venue.ID, req.Capabilities); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save capabilities")
		}
		venue.Capabilities = req.Capabilities
	}
	s.invalidateCache(ctx)
	return venue, nil
}

// Update modifies an existing venue.
func (s *VenueService) Update(ctx context.Context, id string, req UpdateVenueRequest) (*models.Venue, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid venue payload")
	}
	venue, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	venue.Name = strings.TrimSpace(req.Name)
	venue.Type = req.Type
	venue.Capacity = req.Capacity
	if err := s.repo.Update(ctx, venue); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update venue")
	}
	if req.Capabilities != nil {
		if err := s.repo.ReplaceCapabilities(ctx, id, req.Capabilities); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save capabilities")
		}
		venue.Capabilities = req.Capabilities
	}
	s.invalidateCache(ctx)
	return venue, nil
}

// NormalizeRequirement applies a capability toggle to a provision selection,
// keeping the mutually exclusive separate-room codes consistent.
func (s *VenueService) NormalizeRequirement(ctx context.Context, req ToggleRequirementRequest) ([]string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid requirement payload")
	}
	return rostering.NormalizeRequirement(req.Selected, req.Toggled), nil
}

// Match returns the venues able to host the given requirement during the
// exam-venue window being edited.
func (s *VenueService) Match(ctx context.Context, req MatchVenuesRequest) ([]models.Venue, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid match query")
	}

	editing, err := s.exams.FindExamVenue(ctx, req.ExamVenueID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam venue not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam venue")
	}

	venues, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list venues")
	}
	venueIDs := make([]string, len(venues))
	for i, v := range venues {
		venueIDs[i] = v.ID
	}
	windows, err := s.exams.ListWindowsByVenues(ctx, venueIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load venue windows")
	}

	candidates := make([]rostering.VenueCandidate, len(venues))
	for i, v := range venues {
		candidates[i] = rostering.VenueCandidate{Venue: v, Windows: windows[v.ID]}
	}

	target, _ := rostering.WindowInterval(*editing)
	matched := rostering.EligibleVenues(req.Requirement, candidates, target, editing.ID, req.ExcludeMainHall)

	out := make([]models.Venue, len(matched))
	for i, c := range matched {
		out[i] = c.Venue
	}
	return out, nil
}
