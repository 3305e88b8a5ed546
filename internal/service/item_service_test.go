package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synapsedt/synapsedt-api/internal/dto"
	"github.com/synapsedt/synapsedt-api/internal/models"
	"github.com/synapsedt/synapsedt-api/internal/repository"
	appErrors "github.com/synapsedt/synapsedt-api/pkg/errors"
)

type itemRepoStub struct {
	items map[string]*models.VersionItem
	seq   int
}

func newItemRepoStub() *itemRepoStub {
	return &itemRepoStub{items: make(map[string]*models.VersionItem)}
}

func (s *itemRepoStub) Create(ctx context.Context, item *models.VersionItem) error {
	if item.ID == "" {
		s.seq++
		item.ID = fmt.Sprintf("item-%d", s.seq)
	}
	copy := *item
	s.items[item.ID] = &copy
	return nil
}

func (s *itemRepoStub) GetByID(ctx context.Context, id string) (*models.VersionItem, error) {
	if item, ok := s.items[id]; ok {
		copy := *item
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *itemRepoStub) ListByVersion(ctx context.Context, filter models.ItemFilter) ([]models.VersionItem, error) {
	var result []models.VersionItem
	for _, item := range s.items {
		if item.VersionID != filter.VersionID {
			continue
		}
		if filter.ItemType != "" && item.ItemType != filter.ItemType {
			continue
		}
		result = append(result, *item)
	}
	return result, nil
}

func (s *itemRepoStub) ExistsByName(ctx context.Context, versionID string, itemType models.ItemType, name string) (bool, error) {
	for _, item := range s.items {
		if item.VersionID == versionID && item.ItemType == itemType && strings.EqualFold(item.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (s *itemRepoStub) UpdateTesterDecision(ctx context.Context, params repository.UpdateDecisionParams) error {
	item, ok := s.items[params.ID]
	if !ok {
		return sql.ErrNoRows
	}
	item.TesterDecision = &params.Decision
	item.TesterNotes = params.Notes
	item.TesterDecidedBy = &params.DecidedBy
	item.TesterDecidedAt = &params.DecidedAt
	item.Status = params.Status
	item.AutoApproved = false
	return nil
}

func (s *itemRepoStub) UpdateOwnerDecision(ctx context.Context, params repository.UpdateDecisionParams) error {
	item, ok := s.items[params.ID]
	if !ok {
		return sql.ErrNoRows
	}
	item.OwnerDecision = &params.Decision
	item.OwnerNotes = params.Notes
	item.OwnerDecidedBy = &params.DecidedBy
	item.OwnerDecidedAt = &params.DecidedAt
	return nil
}

type refreshStub struct {
	refreshed []string
}

func (s *refreshStub) RefreshSummary(ctx context.Context, versionID string) error {
	s.refreshed = append(s.refreshed, versionID)
	return nil
}

func newItemServiceForTest(status models.VersionStatus) (*ItemService, *itemRepoStub, *refreshStub) {
	repo := newItemRepoStub()
	versions := newVersionRepoStub()
	versions.versions["ver-1"] = &models.Version{ID: "ver-1", PhaseID: "phase-1", Status: status}
	summaries := &refreshStub{}
	svc := NewItemService(repo, versions, summaries, defaultEvaluator(), &auditStub{}, nil)
	return svc, repo, summaries
}

func TestItemServiceCreateAutoApproves(t *testing.T) {
	svc, repo, summaries := newItemServiceForTest(models.VersionStatusDraft)

	item, err := svc.Create(context.Background(), "ver-1", dto.CreateItemRequest{
		ItemType: models.ItemTypeAttribute,
		Name:     "account_number",
		Classification: &dto.ClassificationPayload{
			InfoSecurity: secPtr(models.SecurityPublic),
		},
	}, "tester-1")
	require.NoError(t, err)
	require.True(t, item.AutoApproved)
	require.Equal(t, models.ItemStatusApproved, item.Status)
	require.NotNil(t, item.TesterDecision)
	require.Equal(t, models.DecisionApprove, *item.TesterDecision)
	require.NotNil(t, item.TesterNotes)
	require.Equal(t, AutoApproveNotes, *item.TesterNotes)
	require.Equal(t, []string{"ver-1"}, summaries.refreshed)
	require.Len(t, repo.items, 1)
}

func TestItemServiceCreateStaysPendingOnLowConfidence(t *testing.T) {
	svc, _, _ := newItemServiceForTest(models.VersionStatusDraft)

	item, err := svc.Create(context.Background(), "ver-1", dto.CreateItemRequest{
		ItemType: models.ItemTypeAttribute,
		Name:     "account_number",
		Classification: &dto.ClassificationPayload{
			InfoSecurity: secPtr(models.SecurityPublic),
		},
		LLMMetadata: &dto.LLMMetadataPayload{ConfidenceScore: floatPtr(0.5)},
	}, "tester-1")
	require.NoError(t, err)
	require.False(t, item.AutoApproved)
	require.Equal(t, models.ItemStatusPending, item.Status)
	require.Nil(t, item.TesterDecision)
}

func TestItemServiceCreateRequiresDraftVersion(t *testing.T) {
	svc, _, _ := newItemServiceForTest(models.VersionStatusPending)

	_, err := svc.Create(context.Background(), "ver-1", dto.CreateItemRequest{
		ItemType: models.ItemTypeSample,
		Name:     "sample-1",
	}, "tester-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestItemServiceCreateRejectsDuplicateName(t *testing.T) {
	svc, _, _ := newItemServiceForTest(models.VersionStatusDraft)

	req := dto.CreateItemRequest{ItemType: models.ItemTypeDataSource, Name: "core_banking"}
	_, err := svc.Create(context.Background(), "ver-1", req, "tester-1")
	require.NoError(t, err)

	req.Name = "Core_Banking"
	_, err = svc.Create(context.Background(), "ver-1", req, "tester-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestItemServiceUpdateDecisionMirrorsStatus(t *testing.T) {
	svc, repo, summaries := newItemServiceForTest(models.VersionStatusPending)
	repo.items["item-1"] = &models.VersionItem{ID: "item-1", VersionID: "ver-1", ItemType: models.ItemTypeAttribute, Status: models.ItemStatusPending}

	item, err := svc.UpdateDecision(context.Background(), "item-1", dto.DecisionRequest{Decision: models.DecisionReject, Notes: "mapping mismatch"}, "tester-1")
	require.NoError(t, err)
	require.Equal(t, models.ItemStatusRejected, item.Status)
	require.NotNil(t, item.TesterDecidedBy)
	require.Equal(t, "tester-1", *item.TesterDecidedBy)
	require.Contains(t, summaries.refreshed, "ver-1")
}

func TestItemServiceUpdateDecisionRejectedVersion(t *testing.T) {
	svc, repo, _ := newItemServiceForTest(models.VersionStatusRejected)
	repo.items["item-1"] = &models.VersionItem{ID: "item-1", VersionID: "ver-1", ItemType: models.ItemTypeAttribute}

	_, err := svc.UpdateDecision(context.Background(), "item-1", dto.DecisionRequest{Decision: models.DecisionApprove}, "tester-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestItemServiceOwnerDecisionKeepsStatus(t *testing.T) {
	svc, repo, _ := newItemServiceForTest(models.VersionStatusPending)
	decision := models.DecisionApprove
	repo.items["item-1"] = &models.VersionItem{
		ID: "item-1", VersionID: "ver-1", ItemType: models.ItemTypeAttribute,
		Status: models.ItemStatusApproved, TesterDecision: &decision,
	}

	item, err := svc.UpdateOwnerDecision(context.Background(), "item-1", dto.DecisionRequest{Decision: models.DecisionReject}, "owner-1")
	require.NoError(t, err)
	require.Equal(t, models.ItemStatusApproved, item.Status)
	require.NotNil(t, item.OwnerDecision)
	require.Equal(t, models.DecisionReject, *item.OwnerDecision)
}

func TestItemServiceBulkDecisionIsolatesFailures(t *testing.T) {
	svc, repo, _ := newItemServiceForTest(models.VersionStatusDraft)
	repo.items["item-1"] = &models.VersionItem{ID: "item-1", VersionID: "ver-1", ItemType: models.ItemTypeSample}
	repo.items["item-2"] = &models.VersionItem{ID: "item-2", VersionID: "ver-1", ItemType: models.ItemTypeSample}

	result, err := svc.BulkDecision(context.Background(), dto.BulkDecisionRequest{
		ItemIDs:  []string{"item-1", "missing", "item-2"},
		ItemType: models.ItemTypeSample,
		Decision: models.DecisionApprove,
	}, "tester-1")
	require.NoError(t, err)
	require.Equal(t, 3, result.TotalRequested)
	require.Equal(t, 2, result.Successful)
	require.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "missing")

	// The good decisions stayed applied despite the failure.
	require.Equal(t, models.ItemStatusApproved, repo.items["item-1"].Status)
	require.Equal(t, models.ItemStatusApproved, repo.items["item-2"].Status)
}

func TestItemServiceBulkDecisionTypeMismatch(t *testing.T) {
	svc, repo, _ := newItemServiceForTest(models.VersionStatusDraft)
	repo.items["item-1"] = &models.VersionItem{ID: "item-1", VersionID: "ver-1", ItemType: models.ItemTypeAttribute}

	result, err := svc.BulkDecision(context.Background(), dto.BulkDecisionRequest{
		ItemIDs:  []string{"item-1"},
		ItemType: models.ItemTypeSample,
		Decision: models.DecisionApprove,
	}, "tester-1")
	require.NoError(t, err)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, 0, result.Successful)
}
