package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campus-ops/invigil-api/internal/dto"
	"github.com/campus-ops/invigil-api/internal/service"
	appErrors "github.com/campus-ops/invigil-api/pkg/errors"
	"github.com/campus-ops/invigil-api/pkg/response"
)

// AssignmentHandler wires roster assignment workflows to HTTP routes.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler constructs a new AssignmentHandler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// EligibleRoster godoc
// @Summary Eligible roster for an exam-venue
// @Description Lists invigilators eligible for assignment alongside any existing assignment.
// @Tags Assignments
// @Produce json
// @Param id path string true "Exam-venue ID"
// @Param q query string false "Filter by display name"
// @Param onlyAvailable query bool false "Restrict to declared-available invigilators"
// @Success 200 {object} response.Envelope
// @Router /exam-venues/{id}/roster [get]
func (h *AssignmentHandler) EligibleRoster(c *gin.Context) {
	req := service.EligibleRosterRequest{
		ExamVenueID: c.Param("id"),
		Query:       c.Query("q"),
	}
	if only := c.Query("onlyAvailable"); only != "" {
		if val, err := strconv.ParseBool(only); err == nil {
			req.OnlyAvailable = val
		}
	}

	roster, assignments, err := h.assignments.Eligible(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	entries := make([]dto.RosterEntry, 0, len(roster))
	for _, invigilator := range roster {
		entry := dto.RosterEntry{Invigilator: invigilator}
		if assignment, ok := assignments[invigilator.ID]; ok {
			copy := assignment
			entry.Assignment = &copy
		}
		entries = append(entries, entry)
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Reconcile godoc
// @Summary Reconcile the selection for an exam-venue
// @Description Applies the desired end-state selection: removals first, then updates, then additions.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Exam-venue ID"
// @Param payload body dto.ReconcileRequest true "Desired selection"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /exam-venues/{id}/assignments [put]
func (h *AssignmentHandler) Reconcile(c *gin.Context) {
	var payload dto.ReconcileRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reconcile payload"))
		return
	}

	req := service.ReconcileRequest{
		ExamVenueID: c.Param("id"),
		SelectedIDs: payload.SelectedIDs,
	}
	if len(payload.Edits) > 0 {
		req.Edits = make(map[string]service.AssignmentEditRequest, len(payload.Edits))
		for id, edit := range payload.Edits {
			parsed, err := parseAssignmentEdit(edit)
			if err != nil {
				response.Error(c, err)
				return
			}
			req.Edits[id] = parsed
		}
	}

	delta, err := h.assignments.Reconcile(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, delta, nil)
}

// ListForVenue godoc
// @Summary List assignments for an exam-venue
// @Tags Assignments
// @Produce json
// @Param id path string true "Exam-venue ID"
// @Success 200 {object} response.Envelope
// @Router /exam-venues/{id}/assignments [get]
func (h *AssignmentHandler) ListForVenue(c *gin.Context) {
	assignments, err := h.assignments.ListForVenue(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// ListForInvigilator godoc
// @Summary List an invigilator's assignments
// @Tags Assignments
// @Produce json
// @Param id path string true "Invigilator ID"
// @Param includeCancelled query bool false "Include cancelled assignments"
// @Success 200 {object} response.Envelope
// @Router /invigilators/{id}/assignments [get]
func (h *AssignmentHandler) ListForInvigilator(c *gin.Context) {
	includeCancelled := false
	if include := c.Query("includeCancelled"); include != "" {
		if val, err := strconv.ParseBool(include); err == nil {
			includeCancelled = val
		}
	}
	assignments, err := h.assignments.ListForInvigilator(c.Request.Context(), c.Param("id"), includeCancelled)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Confirm godoc
// @Summary Confirm or unconfirm an assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.ConfirmRequest true "Confirmation payload"
// @Success 204 {object} response.Envelope
// @Router /assignments/{id}/confirm [post]
func (h *AssignmentHandler) Confirm(c *gin.Context) {
	var payload dto.ConfirmRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid confirmation payload"))
		return
	}
	if err := h.assignments.Confirm(c.Request.Context(), c.Param("id"), payload.Confirmed); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RequestCancellation godoc
// @Summary Request cancellation of an assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.CancellationRequest true "Cancellation cause"
// @Success 204 {object} response.Envelope
// @Router /assignments/{id}/cancellation [post]
func (h *AssignmentHandler) RequestCancellation(c *gin.Context) {
	var payload dto.CancellationRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cancellation cause required"))
		return
	}
	err := h.assignments.RequestCancellation(c.Request.Context(), service.CancellationRequest{
		AssignmentID: c.Param("id"),
		Cause:        payload.Cause,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// WithdrawCancellation godoc
// @Summary Withdraw a pending cancellation request
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204 {object} response.Envelope
// @Router /assignments/{id}/cancellation [delete]
func (h *AssignmentHandler) WithdrawCancellation(c *gin.Context) {
	if err := h.assignments.WithdrawCancellation(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ResolveCancellation godoc
// @Summary Approve or reject a cancellation request
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.ResolveCancellationRequest true "Decision"
// @Success 204 {object} response.Envelope
// @Router /assignments/{id}/cancellation/resolve [post]
func (h *AssignmentHandler) ResolveCancellation(c *gin.Context) {
	var payload dto.ResolveCancellationRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}
	if err := h.assignments.ResolveCancellation(c.Request.Context(), c.Param("id"), payload.Approved); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseAssignmentEdit(edit dto.AssignmentEdit) (service.AssignmentEditRequest, error) {
	parsed := service.AssignmentEditRequest{Role: edit.Role}
	if edit.Start != nil {
		start, err := time.Parse(time.RFC3339, *edit.Start)
		if err != nil {
			return parsed, appErrors.Clone(appErrors.ErrValidation, "start must be RFC3339")
		}
		parsed.Start = &start
	}
	if edit.End != nil {
		end, err := time.Parse(time.RFC3339, *edit.End)
		if err != nil {
			return parsed, appErrors.Clone(appErrors.ErrValidation, "end must be RFC3339")
		}
		parsed.End = &end
	}
	return parsed, nil
}
