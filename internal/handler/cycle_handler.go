package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/synapsedt/synapsedt-api/internal/dto"
	"github.com/synapsedt/synapsedt-api/internal/models"
	appErrors "github.com/synapsedt/synapsedt-api/pkg/errors"
	"github.com/synapsedt/synapsedt-api/pkg/response"
)

type cycleService interface {
	CreateCycle(ctx context.Context, req dto.CreateCycleRequest, actorID string) (*models.TestCycle, error)
	GetCycle(ctx context.Context, id string) (*models.TestCycle, error)
	ListCycles(ctx context.Context, filter models.CycleFilter) ([]models.TestCycle, *models.Pagination, error)
	CloseCycle(ctx context.Context, id, actorID string) (*models.TestCycle, error)
	CreateReport(ctx context.Context, cycleID string, req dto.CreateReportRequest, actorID string) (*models.CycleReport, error)
	GetReport(ctx context.Context, id string) (*models.CycleReport, error)
	ListReports(ctx context.Context, cycleID string) ([]models.CycleReport, error)
	AssignReport(ctx context.Context, id string, req dto.AssignReportRequest, actorID string) (*models.CycleReport, error)
	ListPhases(ctx context.Context, reportID string) ([]models.WorkflowPhase, error)
	AdvancePhase(ctx context.Context, phaseID, actorID string) (*models.WorkflowPhase, error)
}

// CycleHandler exposes REST endpoints for test cycles, reports and workflow phases.
type CycleHandler struct {
	service cycleService
}

// NewCycleHandler constructs the handler.
func NewCycleHandler(service cycleService) *CycleHandler {
	return &CycleHandler{service: service}
}

// CreateCycle godoc
// @Summary Open a new test cycle
// @Tags Cycles
// @Accept json
// @Produce json
// @Param payload body dto.CreateCycleRequest true "Cycle payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /cycles [post]
func (h *CycleHandler) CreateCycle(c *gin.Context) {
	var req dto.CreateCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid cycle payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	cycle, err := h.service.CreateCycle(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, cycle, nil)
}

// GetCycle godoc
// @Summary Get a test cycle
// @Tags Cycles
// @Produce json
// @Param id path string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cycles/{id} [get]
func (h *CycleHandler) GetCycle(c *gin.Context) {
	cycle, err := h.service.GetCycle(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cycle, nil)
}

// ListCycles godoc
// @Summary List test cycles
// @Tags Cycles
// @Produce json
// @Param status query string false "Status filter"
// @Param year query int false "Year filter"
// @Param quarter query int false "Quarter filter"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /cycles [get]
func (h *CycleHandler) ListCycles(c *gin.Context) {
	var filter models.CycleFilter
	filter.Status = models.CycleStatus(c.Query("status"))
	if year, err := strconv.Atoi(c.Query("year")); err == nil {
		filter.Year = year
	}
	if quarter, err := strconv.Atoi(c.Query("quarter")); err == nil {
		filter.Quarter = quarter
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	cycles, pagination, err := h.service.ListCycles(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cycles, pagination)
}

// CloseCycle godoc
// @Summary Close an active test cycle
// @Tags Cycles
// @Produce json
// @Param id path string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /cycles/{id}/close [post]
func (h *CycleHandler) CloseCycle(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	cycle, err := h.service.CloseCycle(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cycle, nil)
}

// CreateReport godoc
// @Summary Attach a regulatory report to a cycle
// @Description Creates the report and seeds its workflow phases with the first phase in progress.
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Cycle ID"
// @Param payload body dto.CreateReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /cycles/{id}/reports [post]
func (h *CycleHandler) CreateReport(c *gin.Context) {
	var req dto.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid report payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	report, err := h.service.CreateReport(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, report, nil)
}

// ListReports godoc
// @Summary List reports of a cycle
// @Tags Reports
// @Produce json
// @Param id path string true "Cycle ID"
// @Success 200 {object} response.Envelope
// @Router /cycles/{id}/reports [get]
func (h *CycleHandler) ListReports(c *gin.Context) {
	reports, err := h.service.ListReports(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, nil)
}

// GetReport godoc
// @Summary Get a report
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *CycleHandler) GetReport(c *gin.Context) {
	report, err := h.service.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// AssignReport godoc
// @Summary Assign tester and owner on a report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body dto.AssignReportRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id}/assignment [patch]
func (h *CycleHandler) AssignReport(c *gin.Context) {
	var req dto.AssignReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	report, err := h.service.AssignReport(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// ListPhases godoc
// @Summary List workflow phases of a report
// @Tags Phases
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/phases [get]
func (h *CycleHandler) ListPhases(c *gin.Context) {
	phases, err := h.service.ListPhases(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, phases, nil)
}

// AdvancePhase godoc
// @Summary Complete a phase and start the next one
// @Description Requires the phase to hold an approved version before it can advance.
// @Tags Phases
// @Produce json
// @Param id path string true "Phase ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /phases/{id}/advance [post]
func (h *CycleHandler) AdvancePhase(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	phase, err := h.service.AdvancePhase(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, phase, nil)
}
