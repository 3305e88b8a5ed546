package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/synapsedt/synapsedt-api/internal/dto"
	appErrors "github.com/synapsedt/synapsedt-api/pkg/errors"
	"github.com/synapsedt/synapsedt-api/pkg/response"
)

type dashboardService interface {
	Get(ctx context.Context, versionID string) (*dto.VersionDashboardResponse, error)
}

// DashboardHandler serves derived version statistics.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Get godoc
// @Summary Version dashboard
// @Description Aggregated decision progress, submission readiness and per-type breakdown for a version.
// @Tags Dashboard
// @Produce json
// @Param id path string true "Version ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /versions/{id}/dashboard [get]
func (h *DashboardHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "dashboard service not configured"))
		return
	}
	dashboard, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}
