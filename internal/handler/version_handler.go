package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/synapsedt/synapsedt-api/internal/dto"
	"github.com/synapsedt/synapsedt-api/internal/models"
	appErrors "github.com/synapsedt/synapsedt-api/pkg/errors"
	"github.com/synapsedt/synapsedt-api/pkg/response"
)

type versionService interface {
	Create(ctx context.Context, req dto.CreateVersionRequest, actorID string) (*models.Version, error)
	Get(ctx context.Context, id string) (*models.Version, error)
	Current(ctx context.Context, phaseID string) (*models.Version, error)
	List(ctx context.Context, query dto.VersionQuery) ([]models.Version, error)
	Submit(ctx context.Context, id, actorID string) (*models.Version, error)
	Approve(ctx context.Context, id, actorID string) (*models.Version, error)
	Reject(ctx context.Context, id string, req dto.RejectVersionRequest, actorID string) (*models.Version, error)
}

// VersionHandler exposes REST endpoints for version lifecycles.
type VersionHandler struct {
	service versionService
}

// NewVersionHandler constructs the handler.
func NewVersionHandler(service versionService) *VersionHandler {
	return &VersionHandler{service: service}
}

// Create godoc
// @Summary Open a new draft version
// @Tags Versions
// @Accept json
// @Produce json
// @Param payload body dto.CreateVersionRequest true "Version payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /versions [post]
func (h *VersionHandler) Create(c *gin.Context) {
	var req dto.CreateVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid version payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	version, err := h.service.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, version, nil)
}

// Get godoc
// @Summary Get a version by ID
// @Tags Versions
// @Produce json
// @Param id path string true "Version ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /versions/{id} [get]
func (h *VersionHandler) Get(c *gin.Context) {
	version, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version, nil)
}

// Current godoc
// @Summary Get the operative version of a phase
// @Description Returns the approved version of the phase, or its latest version when nothing is approved yet.
// @Tags Versions
// @Produce json
// @Param id path string true "Phase ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /phases/{id}/versions/current [get]
func (h *VersionHandler) Current(c *gin.Context) {
	version, err := h.service.Current(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version, nil)
}

// List godoc
// @Summary List versions
// @Tags Versions
// @Produce json
// @Param phaseId query string false "Phase ID"
// @Param status query []string false "Status filter"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /versions [get]
func (h *VersionHandler) List(c *gin.Context) {
	var query dto.VersionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid version query"))
		return
	}
	versions, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions, nil)
}

// Submit godoc
// @Summary Submit a draft version for approval
// @Tags Versions
// @Produce json
// @Param id path string true "Version ID"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /versions/{id}/submit [post]
func (h *VersionHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	version, err := h.service.Submit(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version, nil)
}

// Approve godoc
// @Summary Approve a pending version
// @Description Approves the version and supersedes any previously approved version of the same phase.
// @Tags Versions
// @Produce json
// @Param id path string true "Version ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /versions/{id}/approve [post]
func (h *VersionHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	version, err := h.service.Approve(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version, nil)
}

// Reject godoc
// @Summary Reject a pending version
// @Tags Versions
// @Accept json
// @Produce json
// @Param id path string true "Version ID"
// @Param payload body dto.RejectVersionRequest true "Rejection payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /versions/{id}/reject [post]
func (h *VersionHandler) Reject(c *gin.Context) {
	var req dto.RejectVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	version, err := h.service.Reject(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, version, nil)
}
