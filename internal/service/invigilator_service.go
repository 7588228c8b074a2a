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
	appErrors "github.com/campus-ops/invigil-api/pkg/errors"
)

type invigilatorRepository interface {
	List(ctx context.Context, filter models.InvigilatorFilter) ([]models.Invigilator, int, error)
	FindByID(ctx context.Context, id string) (*models.Invigilator, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, invigilator *models.Invigilator) error
	Update(ctx context.Context, invigilator *models.Invigilator) error
	MarkResigned(ctx context.Context, id string) error
	LoadQualifications(ctx context.Context, invigilators []models.Invigilator) error
	LoadRestrictions(ctx context.Context, invigilators []models.Invigilator, dietID string) error
	ReplaceQualifications(ctx context.Context, invigilatorID string, codes []string) error
}

// CreateInvigilatorRequest represents payload for adding roster members.
type CreateInvigilatorRequest struct {
	Email         string   `json:"email" validate:"required,email"`
	FullName      string   `json:"full_name" validate:"required"`
	PreferredName *string  `json:"preferred_name" validate:"omitempty,max=100"`
	Phone         *string  `json:"phone" validate:"omitempty,max=50"`
	Qualifications []string `json:"qualifications" validate:"omitempty,dive,max=100"`
}

// UpdateInvigilatorRequest represents payload for updating roster members.
type UpdateInvigilatorRequest struct {
	Email         string   `json:"email" validate:"required,email"`
	FullName      string   `json:"full_name" validate:"required"`
	PreferredName *string  `json:"preferred_name" validate:"omitempty,max=100"`
	Phone         *string  `json:"phone" validate:"omitempty,max=50"`
	Qualifications []string `json:"qualifications" validate:"omitempty,dive,max=100"`
}

// InvigilatorService orchestrates roster membership operations.
type InvigilatorService struct {
	repo      invigilatorRepository
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInvigilatorService constructs an InvigilatorService. Cache may be nil to
// disable roster list caching.
func NewInvigilatorService(repo invigilatorRepository, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *InvigilatorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvigilatorService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

type cachedInvigilatorList struct {
	Invigilators []models.Invigilator `json:"invigilators"`
	Pagination   *models.Pagination   `json:"pagination"`
}

// List returns roster members plus pagination data, with qualifications and
// optionally diet-scoped restrictions attached.
func (s *InvigilatorService) List(ctx context.Context, filter models.InvigilatorFilter, dietID string) ([]models.Invigilator, *models.Pagination, error) {
	cacheKey := s.listCacheKey(filter, dietID)
	if s.cache != nil && s.cache.Enabled() {
		var cached cachedInvigilatorList
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached.Invigilators, cached.Pagination, nil
		}
	}

	invigilators, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invigilators")
	}
	if err := s.repo.LoadQualifications(ctx, invigilators); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load qualifications")
	}
	if dietID != "" {
		if err := s.repo.LoadRestrictions(ctx, invigilators, dietID); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load restrictions")
		}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}

	if s.cache != nil && s.cache.Enabled() {
		payload := cachedInvigilatorList{Invigilators: invigilators, Pagination: pagination}
		if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache roster list", zap.Error(err))
		}
	}
	return invigilators, pagination, nil
}

func (s *InvigilatorService) listCacheKey(filter models.InvigilatorFilter, dietID string) string {
	resigned := "any"
	if filter.Resigned != nil {
		resigned = fmt.Sprintf("%t", *filter.Resigned)
	}
	return fmt.Sprintf("roster:list:%s:%s:%s:%d:%d:%s:%s",
		dietID, filter.Search, resigned, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

func (s *InvigilatorService) invalidateCache(ctx context.Context) {
	if s.cache == nil || !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "roster:*"); err != nil {
		s.logger.Warn("failed to invalidate roster cache", zap.Error(err))
	}
}

// Get returns a roster member by id with details attached.
func (s *InvigilatorService) Get(ctx context.Context, id string) (*models.Invigilator, error) {
	invigilator, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invigilator not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invigilator")
	}
	hydrate := []models.Invigilator{*invigilator}
	if err := s.repo.LoadQualifications(ctx, hydrate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load qualifications")
	}
	if err := s.repo.LoadRestrictions(ctx, hydrate, ""); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load restrictions")
	}
	return &hydrate[0], nil
}

// Create registers a new roster member.
func (s *InvigilatorService) Create(ctx context.Context, req CreateInvigilatorRequest) (*models.Invigilator, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invigilator payload")
	}
	exists, err := s.repo.ExistsByEmail(ctx, req.Email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already used")
	}

	invigilator := &models.Invigilator{
		Email:    strings.TrimSpace(req.Email),
		FullName: strings.TrimSpace(req.FullName),
	}
	invigilator.PreferredName = normalizeOptional(req.PreferredName)
	invigilator.Phone = normalizeOptional(req.Phone)

	if err := s.repo.Create(ctx, invigilator); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invigilator")
	}
	if len(req.Qualifications) > 0 {
		if err := s.repo.ReplaceQualifications(ctx, invigilator.ID, req.Qualifications); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save qualifications")
		}
		invigilator.Qualifications = req.Qualifications
	}
	s.invalidateCache(ctx)
	return invigilator, nil
}

// Update modifies an existing roster member.
func (s *InvigilatorService) Update(ctx context.Context, id string, req UpdateInvigilatorRequest) (*models.Invigilator, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invigilator payload")
	}

	invigilator, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invigilator not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invigilator")
	}

	exists, err := s.repo.ExistsByEmail(ctx, req.Email, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already used")
	}

	invigilator.Email = strings.TrimSpace(req.Email)
	invigilator.FullName = strings.TrimSpace(req.FullName)
	invigilator.PreferredName = normalizeOptional(req.PreferredName)
	invigilator.Phone = normalizeOptional(req.Phone)

	if err := s.repo.Update(ctx, invigilator); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update invigilator")
	}
	if req.Qualifications != nil {
		if err := s.repo.ReplaceQualifications(ctx, id, req.Qualifications); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save qualifications")
		}
		invigilator.Qualifications = req.Qualifications
	}
	s.invalidateCache(ctx)
	return invigilator, nil
}

// MarkResigned flags a roster member as resigned. Existing assignments are
// untouched; the flag only blocks new additions.
func (s *InvigilatorService) MarkResigned(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "invigilator not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invigilator")
	}
	if err := s.repo.MarkResigned(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark invigilator resigned")
	}
	s.invalidateCache(ctx)
	return nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
