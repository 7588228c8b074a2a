package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campus-ops/invigil-api/internal/models"
	"github.com/campus-ops/invigil-api/internal/service"
	appErrors "github.com/campus-ops/invigil-api/pkg/errors"
	"github.com/campus-ops/invigil-api/pkg/response"
)

// AvailabilityHandler wires half-day availability declarations to HTTP routes.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
}

// NewAvailabilityHandler constructs a new AvailabilityHandler.
func NewAvailabilityHandler(availability *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// List godoc
// @Summary List availability declarations
// @Tags Availability
// @Produce json
// @Param id path string true "Invigilator ID"
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /invigilators/{id}/availability [get]
func (h *AvailabilityHandler) List(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be a date (YYYY-MM-DD)"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be a date (YYYY-MM-DD)"))
		return
	}

	entries, err := h.availability.List(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Declare godoc
// @Summary Declare availability for a half-day slot
// @Description Upserts the declaration for the (invigilator, date, slot) tuple.
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Invigilator ID"
// @Param payload body service.DeclareAvailabilityRequest true "Declaration payload"
// @Success 200 {object} response.Envelope
// @Router /invigilators/{id}/availability [put]
func (h *AvailabilityHandler) Declare(c *gin.Context) {
	var req service.DeclareAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	req.InvigilatorID = c.Param("id")

	entry, err := h.availability.Declare(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// DeclareRange godoc
// @Summary Declare availability over a date range
// @Description Upserts one slot's declaration for every date between from and to.
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Invigilator ID"
// @Param payload body service.DeclareRangeRequest true "Range declaration payload"
// @Success 200 {object} response.Envelope
// @Router /invigilators/{id}/availability/bulk [put]
func (h *AvailabilityHandler) DeclareRange(c *gin.Context) {
	var req service.DeclareRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	req.InvigilatorID = c.Param("id")

	entries, err := h.availability.DeclareRange(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Clear godoc
// @Summary Clear an availability declaration
// @Description Returns the slot to the unknown state.
// @Tags Availability
// @Produce json
// @Param id path string true "Invigilator ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param slot query string true "Slot (MORNING/EVENING)"
// @Success 204 {object} response.Envelope
// @Router /invigilators/{id}/availability [delete]
func (h *AvailabilityHandler) Clear(c *gin.Context) {
	day, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be a date (YYYY-MM-DD)"))
		return
	}
	slot := models.Slot(c.Query("slot"))

	if err := h.availability.Clear(c.Request.Context(), c.Param("id"), day, slot); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
