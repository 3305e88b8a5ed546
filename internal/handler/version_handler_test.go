package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/synapsedt/synapsedt-api/internal/dto"
	"github.com/synapsedt/synapsedt-api/internal/middleware"
	"github.com/synapsedt/synapsedt-api/internal/models"
	appErrors "github.com/synapsedt/synapsedt-api/pkg/errors"
)

type versionServiceMock struct {
	version   *models.Version
	createErr error
	submitErr error
	actorID   string
}

func (m *versionServiceMock) Create(ctx context.Context, req dto.CreateVersionRequest, actorID string) (*models.Version, error) {
	m.actorID = actorID
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.version, nil
}

func (m *versionServiceMock) Get(ctx context.Context, id string) (*models.Version, error) {
	if m.version == nil {
		return nil, appErrors.ErrNotFound
	}
	return m.version, nil
}

func (m *versionServiceMock) Current(ctx context.Context, phaseID string) (*models.Version, error) {
	return m.Get(ctx, phaseID)
}

func (m *versionServiceMock) List(ctx context.Context, query dto.VersionQuery) ([]models.Version, error) {
	if m.version == nil {
		return nil, nil
	}
	return []models.Version{*m.version}, nil
}

func (m *versionServiceMock) Submit(ctx context.Context, id, actorID string) (*models.Version, error) {
	m.actorID = actorID
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return m.version, nil
}

func (m *versionServiceMock) Approve(ctx context.Context, id, actorID string) (*models.Version, error) {
	return m.version, nil
}

func (m *versionServiceMock) Reject(ctx context.Context, id string, req dto.RejectVersionRequest, actorID string) (*models.Version, error) {
	return m.version, nil
}

func testContext(t *testing.T, method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func authAs(c *gin.Context, userID string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: userID, Role: role})
}

func TestVersionHandlerCreate(t *testing.T) {
	mock := &versionServiceMock{version: &models.Version{ID: "ver-1", PhaseID: "phase-1", VersionNumber: 1, Status: models.VersionStatusDraft}}
	handler := NewVersionHandler(mock)

	c, w := testContext(t, http.MethodPost, "/versions", dto.CreateVersionRequest{PhaseID: "phase-1"})
	authAs(c, "tester-1", models.RoleTester)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "tester-1", mock.actorID)
	require.Contains(t, w.Body.String(), `"ver-1"`)
}

func TestVersionHandlerCreateRequiresAuth(t *testing.T) {
	handler := NewVersionHandler(&versionServiceMock{})

	c, w := testContext(t, http.MethodPost, "/versions", dto.CreateVersionRequest{PhaseID: "phase-1"})
	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVersionHandlerCreateInvalidPayload(t *testing.T) {
	handler := NewVersionHandler(&versionServiceMock{})

	c, w := testContext(t, http.MethodPost, "/versions", map[string]string{"phase_id": ""})
	authAs(c, "tester-1", models.RoleTester)

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVersionHandlerCreateConflict(t *testing.T) {
	mock := &versionServiceMock{createErr: appErrors.Clone(appErrors.ErrConflict, "phase already has a draft version")}
	handler := NewVersionHandler(mock)

	c, w := testContext(t, http.MethodPost, "/versions", dto.CreateVersionRequest{PhaseID: "phase-1"})
	authAs(c, "tester-1", models.RoleTester)

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestVersionHandlerSubmitBusinessRule(t *testing.T) {
	mock := &versionServiceMock{submitErr: appErrors.Clone(appErrors.ErrBusinessRule, "version is not ready for submission")}
	handler := NewVersionHandler(mock)

	c, w := testContext(t, http.MethodPost, "/versions/ver-1/submit", nil)
	c.Params = gin.Params{{Key: "id", Value: "ver-1"}}
	authAs(c, "tester-1", models.RoleTester)

	handler.Submit(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Contains(t, w.Body.String(), "BUSINESS_RULE_VIOLATION")
}

func TestVersionHandlerRejectRequiresReason(t *testing.T) {
	handler := NewVersionHandler(&versionServiceMock{version: &models.Version{ID: "ver-1"}})

	c, w := testContext(t, http.MethodPost, "/versions/ver-1/reject", map[string]string{})
	c.Params = gin.Params{{Key: "id", Value: "ver-1"}}
	authAs(c, "owner-1", models.RoleReportOwner)

	handler.Reject(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
