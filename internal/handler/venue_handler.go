package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campus-ops/invigil-api/internal/models"
	"github.com/campus-ops/invigil-api/internal/service"
	appErrors "github.com/campus-ops/invigil-api/pkg/errors"
	"github.com/campus-ops/invigil-api/pkg/response"
)

// VenueHandler wires venue management and capability matching to HTTP routes.
type VenueHandler struct {
	venues *service.VenueService
}

// NewVenueHandler constructs a new VenueHandler.
func NewVenueHandler(venues *service.VenueService) *VenueHandler {
	return &VenueHandler{venues: venues}
}

// List godoc
// @Summary List venues
// @Tags Venues
// @Produce json
// @Param search query string false "Search by name"
// @Param type query string false "Filter by venue type"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /venues [get]
func (h *VenueHandler) List(c *gin.Context) {
	filter := models.VenueFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if venueType := c.Query("type"); venueType != "" {
		vt := models.VenueType(venueType)
		filter.Type = &vt
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	venues, pagination, err := h.venues.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, venues, pagination)
}

// Get godoc
// @Summary Get venue detail
// @Tags Venues
// @Produce json
// @Param id path string true "Venue ID"
// @Success 200 {object} response.Envelope
// @Router /venues/{id} [get]
func (h *VenueHandler) Get(c *gin.Context) {
	venue, err := h.venues.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, venue, nil)
}

// Create godoc
// @Summary Register a venue
// @Tags Venues
// @Accept json
// @Produce json
// @Param payload body service.CreateVenueRequest true "Venue payload"
// @Success 201 {object} response.Envelope
// @Router /venues [post]
func (h *VenueHandler) Create(c *gin.Context) {
	var req service.CreateVenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid venue payload"))
		return
	}
	venue, err := h.venues.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, venue)
}

// Update godoc
// @Summary Update venue
// @Tags Venues
// @Accept json
// @Produce json
// @Param id path string true "Venue ID"
// @Param payload body service.UpdateVenueRequest true "Venue payload"
// @Success 200 {object} response.Envelope
// @Router /venues/{id} [put]
func (h *VenueHandler) Update(c *gin.Context) {
	var req service.UpdateVenueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid venue payload"))
		return
	}
	venue, err := h.venues.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, venue, nil)
}

// NormalizeRequirement godoc
// @Summary Normalize a provision requirement selection
// @Description Applies a capability toggle, keeping the separate-room codes mutually exclusive.
// @Tags Venues
// @Accept json
// @Produce json
// @Param payload body service.ToggleRequirementRequest true "Toggle payload"
// @Success 200 {object} response.Envelope
// @Router /venues/requirements/normalize [post]
func (h *VenueHandler) NormalizeRequirement(c *gin.Context) {
	var req service.ToggleRequirementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid toggle payload"))
		return
	}
	normalized, err := h.venues.NormalizeRequirement(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"requirement": normalized}, nil)
}

// Match godoc
// @Summary Match venues for a provision requirement
// @Description Lists venues capable of hosting the requirement during the exam-venue window.
// @Tags Venues
// @Accept json
// @Produce json
// @Param id path string true "Exam-venue ID"
// @Param payload body service.MatchVenuesRequest true "Requirement payload"
// @Success 200 {object} response.Envelope
// @Router /exam-venues/{id}/venue-matches [post]
func (h *VenueHandler) Match(c *gin.Context) {
	var req service.MatchVenuesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid match payload"))
		return
	}
	req.ExamVenueID = c.Param("id")

	venues, err := h.venues.Match(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, venues, nil)
}
