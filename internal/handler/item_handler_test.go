package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/synapsedt/synapsedt-api/internal/dto"
	"github.com/synapsedt/synapsedt-api/internal/models"
	appErrors "github.com/synapsedt/synapsedt-api/pkg/errors"
)

type itemServiceMock struct {
	item       *models.VersionItem
	createErr  error
	bulkResult *dto.BulkDecisionResult
	versionID  string
	actorID    string
}

func (m *itemServiceMock) Create(ctx context.Context, versionID string, req dto.CreateItemRequest, actorID string) (*models.VersionItem, error) {
	m.versionID = versionID
	m.actorID = actorID
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.item, nil
}

func (m *itemServiceMock) Get(ctx context.Context, id string) (*models.VersionItem, error) {
	if m.item == nil {
		return nil, appErrors.ErrNotFound
	}
	return m.item, nil
}

func (m *itemServiceMock) List(ctx context.Context, filter models.ItemFilter) ([]models.VersionItem, error) {
	m.versionID = filter.VersionID
	if m.item == nil {
		return nil, nil
	}
	return []models.VersionItem{*m.item}, nil
}

func (m *itemServiceMock) UpdateDecision(ctx context.Context, itemID string, req dto.DecisionRequest, actorID string) (*models.VersionItem, error) {
	m.actorID = actorID
	return m.item, nil
}

func (m *itemServiceMock) UpdateOwnerDecision(ctx context.Context, itemID string, req dto.DecisionRequest, actorID string) (*models.VersionItem, error) {
	m.actorID = actorID
	return m.item, nil
}

func (m *itemServiceMock) BulkDecision(ctx context.Context, req dto.BulkDecisionRequest, actorID string) (*dto.BulkDecisionResult, error) {
	m.actorID = actorID
	return m.bulkResult, nil
}

func TestItemHandlerCreate(t *testing.T) {
	mock := &itemServiceMock{item: &models.VersionItem{ID: "item-1", VersionID: "ver-1", ItemType: models.ItemTypeAttribute, Name: "account_number"}}
	handler := NewItemHandler(mock)

	c, w := testContext(t, http.MethodPost, "/versions/ver-1/items", dto.CreateItemRequest{
		ItemType: models.ItemTypeAttribute,
		Name:     "account_number",
	})
	c.Params = gin.Params{{Key: "id", Value: "ver-1"}}
	authAs(c, "tester-1", models.RoleTester)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "ver-1", mock.versionID)
	require.Equal(t, "tester-1", mock.actorID)
}

func TestItemHandlerCreateDuplicate(t *testing.T) {
	mock := &itemServiceMock{createErr: appErrors.Clone(appErrors.ErrConflict, "item name already exists in version")}
	handler := NewItemHandler(mock)

	c, w := testContext(t, http.MethodPost, "/versions/ver-1/items", dto.CreateItemRequest{
		ItemType: models.ItemTypeDataSource,
		Name:     "core_banking",
	})
	c.Params = gin.Params{{Key: "id", Value: "ver-1"}}
	authAs(c, "tester-1", models.RoleTester)

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestItemHandlerListPassesFilter(t *testing.T) {
	mock := &itemServiceMock{}
	handler := NewItemHandler(mock)

	c, w := testContext(t, http.MethodGet, "/versions/ver-1/items?item_type=ATTRIBUTE", nil)
	c.Params = gin.Params{{Key: "id", Value: "ver-1"}}

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ver-1", mock.versionID)
}

func TestItemHandlerDecisionInvalidPayload(t *testing.T) {
	handler := NewItemHandler(&itemServiceMock{})

	c, w := testContext(t, http.MethodPut, "/items/item-1/decision", map[string]string{"notes": "no decision"})
	c.Params = gin.Params{{Key: "id", Value: "item-1"}}
	authAs(c, "tester-1", models.RoleTester)

	handler.Decision(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestItemHandlerBulkDecision(t *testing.T) {
	mock := &itemServiceMock{bulkResult: &dto.BulkDecisionResult{TotalRequested: 2, Successful: 1, Failed: 1, Errors: []string{"item missing: not found"}}}
	handler := NewItemHandler(mock)

	c, w := testContext(t, http.MethodPost, "/items/bulk-decision", dto.BulkDecisionRequest{
		ItemIDs:  []string{"item-1", "missing"},
		ItemType: models.ItemTypeSample,
		Decision: models.DecisionApprove,
	})
	authAs(c, "tester-1", models.RoleTester)

	handler.BulkDecision(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"total_requested":2`)
	require.Contains(t, w.Body.String(), `"failed":1`)
}

func TestItemHandlerBulkDecisionRequiresItems(t *testing.T) {
	handler := NewItemHandler(&itemServiceMock{})

	c, w := testContext(t, http.MethodPost, "/items/bulk-decision", dto.BulkDecisionRequest{
		ItemType: models.ItemTypeSample,
		Decision: models.DecisionApprove,
	})
	authAs(c, "tester-1", models.RoleTester)

	handler.BulkDecision(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
