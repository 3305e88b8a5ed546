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

type itemService interface {
	Create(ctx context.Context, versionID string, req dto.CreateItemRequest, actorID string) (*models.VersionItem, error)
	Get(ctx context.Context, id string) (*models.VersionItem, error)
	List(ctx context.Context, filter models.ItemFilter) ([]models.VersionItem, error)
	UpdateDecision(ctx context.Context, itemID string, req dto.DecisionRequest, actorID string) (*models.VersionItem, error)
	UpdateOwnerDecision(ctx context.Context, itemID string, req dto.DecisionRequest, actorID string) (*models.VersionItem, error)
	BulkDecision(ctx context.Context, req dto.BulkDecisionRequest, actorID string) (*dto.BulkDecisionResult, error)
}

// ItemHandler exposes REST endpoints for version items and decisions.
type ItemHandler struct {
	service itemService
}

// NewItemHandler constructs the handler.
func NewItemHandler(service itemService) *ItemHandler {
	return &ItemHandler{service: service}
}

// Create godoc
// @Summary Add an item to a draft version
// @Tags Items
// @Accept json
// @Produce json
// @Param id path string true "Version ID"
// @Param payload body dto.CreateItemRequest true "Item payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /versions/{id}/items [post]
func (h *ItemHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid item payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	item, err := h.service.Create(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, item, nil)
}

// List godoc
// @Summary List items of a version
// @Tags Items
// @Produce json
// @Param id path string true "Version ID"
// @Param item_type query string false "Item type filter"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Envelope
// @Router /versions/{id}/items [get]
func (h *ItemHandler) List(c *gin.Context) {
	filter := models.ItemFilter{
		VersionID: c.Param("id"),
		ItemType:  models.ItemType(c.Query("item_type")),
		Status:    models.ItemStatus(c.Query("status")),
	}
	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get an item by ID
// @Tags Items
// @Produce json
// @Param id path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /items/{id} [get]
func (h *ItemHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Decision godoc
// @Summary Record the tester decision on an item
// @Tags Items
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body dto.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /items/{id}/decision [put]
func (h *ItemHandler) Decision(c *gin.Context) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	item, err := h.service.UpdateDecision(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// OwnerDecision godoc
// @Summary Record the report owner decision on an item
// @Description Advisory review that never changes the item status set by the tester decision.
// @Tags Items
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body dto.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /items/{id}/owner-decision [put]
func (h *ItemHandler) OwnerDecision(c *gin.Context) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	item, err := h.service.UpdateOwnerDecision(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// BulkDecision godoc
// @Summary Apply one decision across many items
// @Description Each item is processed independently; failures are reported per item and never roll back the rest.
// @Tags Items
// @Accept json
// @Produce json
// @Param payload body dto.BulkDecisionRequest true "Bulk decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /items/bulk-decision [post]
func (h *ItemHandler) BulkDecision(c *gin.Context) {
	var req dto.BulkDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid bulk decision payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.BulkDecision(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
