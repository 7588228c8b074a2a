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

// ExamHandler wires diet, exam and sitting management to HTTP routes.
type ExamHandler struct {
	exams *service.ExamService
}

// NewExamHandler constructs a new ExamHandler.
func NewExamHandler(exams *service.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// ListDiets godoc
// @Summary List exam diets
// @Tags Exams
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /diets [get]
func (h *ExamHandler) ListDiets(c *gin.Context) {
	diets, err := h.exams.ListDiets(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, diets, nil)
}

// CreateDiet godoc
// @Summary Open an exam diet
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body service.CreateDietRequest true "Diet payload"
// @Success 201 {object} response.Envelope
// @Router /diets [post]
func (h *ExamHandler) CreateDiet(c *gin.Context) {
	var req service.CreateDietRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid diet payload"))
		return
	}
	diet, err := h.exams.CreateDiet(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, diet)
}

// ListExams godoc
// @Summary List exams
// @Tags Exams
// @Produce json
// @Param dietId query string false "Filter by diet"
// @Param search query string false "Search by code/title"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /exams [get]
func (h *ExamHandler) ListExams(c *gin.Context) {
	filter := models.ExamFilter{
		DietID: c.Query("dietId"),
		Search: strings.TrimSpace(c.Query("search")),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	exams, pagination, err := h.exams.ListExams(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exams, pagination)
}

// GetExam godoc
// @Summary Get exam detail with its sittings
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
	exam, sittings, err := h.exams.GetExam(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"exam": exam, "sittings": sittings}, nil)
}

// CreateExam godoc
// @Summary Register an exam
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body service.CreateExamRequest true "Exam payload"
// @Success 201 {object} response.Envelope
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req service.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid exam payload"))
		return
	}
	exam, err := h.exams.CreateExam(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// ScheduleSitting godoc
// @Summary Schedule an exam sitting into a venue
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body service.ScheduleSittingRequest true "Sitting payload"
// @Success 201 {object} response.Envelope
// @Router /exam-venues [post]
func (h *ExamHandler) ScheduleSitting(c *gin.Context) {
	var req service.ScheduleSittingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sitting payload"))
		return
	}
	sitting, err := h.exams.ScheduleSitting(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sitting)
}

// RescheduleSitting godoc
// @Summary Reschedule an exam sitting
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam-venue ID"
// @Param payload body service.ScheduleSittingRequest true "Sitting payload"
// @Success 200 {object} response.Envelope
// @Router /exam-venues/{id} [put]
func (h *ExamHandler) RescheduleSitting(c *gin.Context) {
	var req service.ScheduleSittingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sitting payload"))
		return
	}
	sitting, err := h.exams.RescheduleSitting(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sitting, nil)
}

// ListProvisions godoc
// @Summary List provision requirements for an exam
// @Tags Exams
// @Produce json
// @Param id path string true "Exam ID"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/provisions [get]
func (h *ExamHandler) ListProvisions(c *gin.Context) {
	provisions, err := h.exams.ListProvisions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, provisions, nil)
}

// SaveProvision godoc
// @Summary Save a student's provision requirement
// @Description Replaces the capability codes recorded for the (exam, student) pair.
// @Tags Exams
// @Accept json
// @Produce json
// @Param id path string true "Exam ID"
// @Param payload body service.SaveProvisionRequest true "Provision payload"
// @Success 200 {object} response.Envelope
// @Router /exams/{id}/provisions [put]
func (h *ExamHandler) SaveProvision(c *gin.Context) {
	var req service.SaveProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid provision payload"))
		return
	}
	req.ExamID = c.Param("id")

	provision, err := h.exams.SaveProvision(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, provision, nil)
}
