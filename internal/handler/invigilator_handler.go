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

// InvigilatorHandler wires roster management to HTTP routes.
type InvigilatorHandler struct {
	invigilators *service.InvigilatorService
}

// NewInvigilatorHandler constructs a new InvigilatorHandler.
func NewInvigilatorHandler(invigilators *service.InvigilatorService) *InvigilatorHandler {
	return &InvigilatorHandler{invigilators: invigilators}
}

// List godoc
// @Summary List invigilators
// @Tags Invigilators
// @Produce json
// @Param search query string false "Search by name"
// @Param resigned query bool false "Filter by resigned status"
// @Param dietId query string false "Scope restrictions to a diet"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort field (full_name,email,created_at)"
// @Param order query string false "Sort order (asc/desc)"
// @Success 200 {object} response.Envelope
// @Router /invigilators [get]
func (h *InvigilatorHandler) List(c *gin.Context) {
	filter := models.InvigilatorFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if resigned := c.Query("resigned"); resigned != "" {
		if val, err := strconv.ParseBool(resigned); err == nil {
			filter.Resigned = &val
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	invigilators, pagination, err := h.invigilators.List(c.Request.Context(), filter, c.Query("dietId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invigilators, pagination)
}

// Get godoc
// @Summary Get invigilator detail
// @Tags Invigilators
// @Produce json
// @Param id path string true "Invigilator ID"
// @Success 200 {object} response.Envelope
// @Router /invigilators/{id} [get]
func (h *InvigilatorHandler) Get(c *gin.Context) {
	invigilator, err := h.invigilators.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invigilator, nil)
}

// Create godoc
// @Summary Add invigilator to the roster
// @Tags Invigilators
// @Accept json
// @Produce json
// @Param payload body service.CreateInvigilatorRequest true "Invigilator payload"
// @Success 201 {object} response.Envelope
// @Router /invigilators [post]
func (h *InvigilatorHandler) Create(c *gin.Context) {
	var req service.CreateInvigilatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid invigilator payload"))
		return
	}
	invigilator, err := h.invigilators.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invigilator)
}

// Update godoc
// @Summary Update invigilator
// @Tags Invigilators
// @Accept json
// @Produce json
// @Param id path string true "Invigilator ID"
// @Param payload body service.UpdateInvigilatorRequest true "Invigilator payload"
// @Success 200 {object} response.Envelope
// @Router /invigilators/{id} [put]
func (h *InvigilatorHandler) Update(c *gin.Context) {
	var req service.UpdateInvigilatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid invigilator payload"))
		return
	}
	invigilator, err := h.invigilators.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invigilator, nil)
}

// Resign godoc
// @Summary Mark invigilator as resigned
// @Description Resigned members keep their existing assignments but cannot be newly assigned.
// @Tags Invigilators
// @Produce json
// @Param id path string true "Invigilator ID"
// @Success 204 {object} response.Envelope
// @Router /invigilators/{id}/resign [post]
func (h *InvigilatorHandler) Resign(c *gin.Context) {
	if err := h.invigilators.MarkResigned(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
