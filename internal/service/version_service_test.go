package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synapsedt/synapsedt-api/internal/dto"
	"github.com/synapsedt/synapsedt-api/internal/models"
	"github.com/synapsedt/synapsedt-api/internal/repository"
	appErrors "github.com/synapsedt/synapsedt-api/pkg/errors"
)

type versionRepoStub struct {
	versions map[string]*models.Version
	seq      int
}

func newVersionRepoStub() *versionRepoStub {
	return &versionRepoStub{versions: make(map[string]*models.Version)}
}

func (s *versionRepoStub) Create(ctx context.Context, version *models.Version) error {
	if version.ID == "" {
		s.seq++
		version.ID = fmt.Sprintf("ver-%d", s.seq)
	}
	copy := *version
	s.versions[version.ID] = &copy
	return nil
}

func (s *versionRepoStub) GetByID(ctx context.Context, id string) (*models.Version, error) {
	if v, ok := s.versions[id]; ok {
		copy := *v
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *versionRepoStub) GetDraftByPhase(ctx context.Context, phaseID string) (*models.Version, error) {
	for _, v := range s.versions {
		if v.PhaseID == phaseID && v.Status == models.VersionStatusDraft {
			copy := *v
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *versionRepoStub) MaxVersionNumber(ctx context.Context, phaseID string) (int, error) {
	max := 0
	for _, v := range s.versions {
		if v.PhaseID == phaseID && v.VersionNumber > max {
			max = v.VersionNumber
		}
	}
	return max, nil
}

func (s *versionRepoStub) GetCurrentByPhase(ctx context.Context, phaseID string) (*models.Version, error) {
	var current *models.Version
	for _, v := range s.versions {
		switch v.Status {
		case models.VersionStatusDraft, models.VersionStatusPending, models.VersionStatusApproved:
		default:
			continue
		}
		if v.PhaseID != phaseID {
			continue
		}
		if current == nil || v.VersionNumber > current.VersionNumber {
			current = v
		}
	}
	if current == nil {
		return nil, sql.ErrNoRows
	}
	copy := *current
	return &copy, nil
}

func (s *versionRepoStub) List(ctx context.Context, filter models.VersionFilter) ([]models.Version, error) {
	var result []models.Version
	for _, v := range s.versions {
		if filter.PhaseID != "" && v.PhaseID != filter.PhaseID {
			continue
		}
		result = append(result, *v)
	}
	return result, nil
}

func (s *versionRepoStub) UpdateStatus(ctx context.Context, params repository.UpdateVersionStatusParams) error {
	v, ok := s.versions[params.ID]
	if !ok || v.Status != params.ExpectedStatus {
		return sql.ErrNoRows
	}
	v.Status = params.Status
	if params.SubmittedBy != nil {
		v.SubmittedBy = params.SubmittedBy
		v.SubmittedAt = params.SubmittedAt
	}
	if params.ApprovedBy != nil {
		v.ApprovedBy = params.ApprovedBy
		v.ApprovedAt = params.ApprovedAt
	}
	if params.RejectionReason != nil {
		v.RejectionReason = params.RejectionReason
	}
	return nil
}

func (s *versionRepoStub) SupersedeApproved(ctx context.Context, phaseID, exceptID string) error {
	for _, v := range s.versions {
		if v.PhaseID == phaseID && v.Status == models.VersionStatusApproved && v.ID != exceptID {
			v.Status = models.VersionStatusSuperseded
		}
	}
	return nil
}

func (s *versionRepoStub) UpdateSummary(ctx context.Context, versionID string, summary models.VersionSummary) error {
	v, ok := s.versions[versionID]
	if !ok {
		return sql.ErrNoRows
	}
	v.VersionSummary = summary
	return nil
}

type itemListerStub struct {
	items map[string][]models.VersionItem
}

func (s *itemListerStub) ListByVersion(ctx context.Context, filter models.ItemFilter) ([]models.VersionItem, error) {
	return s.items[filter.VersionID], nil
}

type phaseFinderStub struct {
	phases map[string]*models.WorkflowPhase
}

func (s *phaseFinderStub) GetPhase(ctx context.Context, id string) (*models.WorkflowPhase, error) {
	if p, ok := s.phases[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type invalidatorStub struct {
	invalidated []string
}

func (i *invalidatorStub) InvalidateVersion(ctx context.Context, versionID string) {
	i.invalidated = append(i.invalidated, versionID)
}

func newVersionServiceForTest(repo *versionRepoStub, items *itemListerStub) (*VersionService, *auditStub) {
	audit := &auditStub{}
	phases := &phaseFinderStub{phases: map[string]*models.WorkflowPhase{
		"phase-1": {ID: "phase-1", ReportID: "report-1", Name: models.PhasePlanning, Sequence: 1},
	}}
	if items == nil {
		items = &itemListerStub{items: map[string][]models.VersionItem{}}
	}
	return NewVersionService(repo, items, phases, audit, nil), audit
}

func decidedItem(versionID string, itemType models.ItemType, status models.ItemStatus) models.VersionItem {
	decision := models.DecisionApprove
	if status == models.ItemStatusRejected {
		decision = models.DecisionReject
	}
	return models.VersionItem{
		VersionID:      versionID,
		ItemType:       itemType,
		Status:         status,
		TesterDecision: &decision,
	}
}

func TestVersionServiceCreateSequencesAndGuardsDraft(t *testing.T) {
	repo := newVersionRepoStub()
	svc, audit := newVersionServiceForTest(repo, nil)

	v1, err := svc.Create(context.Background(), dto.CreateVersionRequest{PhaseID: "phase-1"}, "user-1")
	require.NoError(t, err)
	require.Equal(t, 1, v1.VersionNumber)
	require.Equal(t, models.VersionStatusDraft, v1.Status)
	require.Len(t, audit.logs, 1)

	_, err = svc.Create(context.Background(), dto.CreateVersionRequest{PhaseID: "phase-1"}, "user-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// Rejecting the draft frees the phase for a new, higher-numbered draft.
	repo.versions[v1.ID].Status = models.VersionStatusRejected
	v2, err := svc.Create(context.Background(), dto.CreateVersionRequest{PhaseID: "phase-1"}, "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, v2.VersionNumber)
}

func TestVersionServiceCreateUnknownPhase(t *testing.T) {
	svc, _ := newVersionServiceForTest(newVersionRepoStub(), nil)
	_, err := svc.Create(context.Background(), dto.CreateVersionRequest{PhaseID: "missing"}, "user-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestVersionServiceSubmitRequiresValidation(t *testing.T) {
	repo := newVersionRepoStub()
	items := &itemListerStub{items: map[string][]models.VersionItem{}}
	svc, _ := newVersionServiceForTest(repo, items)

	version, err := svc.Create(context.Background(), dto.CreateVersionRequest{PhaseID: "phase-1"}, "user-1")
	require.NoError(t, err)

	undecided := models.VersionItem{VersionID: version.ID, ItemType: models.ItemTypeAttribute, Status: models.ItemStatusPending}
	items.items[version.ID] = []models.VersionItem{undecided}

	_, err = svc.Submit(context.Background(), version.ID, "user-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	require.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
	require.Contains(t, appErr.Details, "All attribute items must have tester decisions")
	require.Contains(t, appErr.Details, "Version must have at least one approved component")

	items.items[version.ID] = []models.VersionItem{decidedItem(version.ID, models.ItemTypeAttribute, models.ItemStatusApproved)}
	submitted, err := svc.Submit(context.Background(), version.ID, "user-1")
	require.NoError(t, err)
	require.Equal(t, models.VersionStatusPending, submitted.Status)
	require.NotNil(t, submitted.SubmittedBy)
	require.Equal(t, "user-1", *submitted.SubmittedBy)

	// Already pending: a second submit is a validation failure.
	_, err = svc.Submit(context.Background(), version.ID, "user-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVersionServiceApproveSupersedesSibling(t *testing.T) {
	repo := newVersionRepoStub()
	items := &itemListerStub{items: map[string][]models.VersionItem{}}
	svc, _ := newVersionServiceForTest(repo, items)

	older := &models.Version{ID: "ver-old", PhaseID: "phase-1", VersionNumber: 1, Status: models.VersionStatusApproved}
	repo.versions[older.ID] = older
	pending := &models.Version{ID: "ver-new", PhaseID: "phase-1", VersionNumber: 2, Status: models.VersionStatusPending}
	repo.versions[pending.ID] = pending

	approved, err := svc.Approve(context.Background(), "ver-new", "owner-1")
	require.NoError(t, err)
	require.Equal(t, models.VersionStatusApproved, approved.Status)
	require.Equal(t, models.VersionStatusSuperseded, repo.versions["ver-old"].Status)
	require.NotNil(t, approved.ApprovedBy)

	// At most one approved version per phase.
	count := 0
	for _, v := range repo.versions {
		if v.PhaseID == "phase-1" && v.Status == models.VersionStatusApproved {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestVersionServiceApproveRequiresPending(t *testing.T) {
	repo := newVersionRepoStub()
	svc, _ := newVersionServiceForTest(repo, nil)
	repo.versions["ver-1"] = &models.Version{ID: "ver-1", PhaseID: "phase-1", Status: models.VersionStatusDraft}

	_, err := svc.Approve(context.Background(), "ver-1", "owner-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVersionServiceReject(t *testing.T) {
	repo := newVersionRepoStub()
	svc, _ := newVersionServiceForTest(repo, nil)
	repo.versions["ver-1"] = &models.Version{ID: "ver-1", PhaseID: "phase-1", Status: models.VersionStatusPending}

	rejected, err := svc.Reject(context.Background(), "ver-1", dto.RejectVersionRequest{Reason: "sampling incomplete"}, "owner-1")
	require.NoError(t, err)
	require.Equal(t, models.VersionStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	require.Equal(t, "sampling incomplete", *rejected.RejectionReason)

	_, err = svc.Reject(context.Background(), "ver-1", dto.RejectVersionRequest{Reason: "again"}, "owner-1")
	require.Error(t, err)
}

func TestVersionServiceRefreshSummary(t *testing.T) {
	repo := newVersionRepoStub()
	items := &itemListerStub{items: map[string][]models.VersionItem{}}
	audit := &auditStub{}
	phases := &phaseFinderStub{phases: map[string]*models.WorkflowPhase{"phase-1": {ID: "phase-1"}}}
	inv := &invalidatorStub{}
	svc := NewVersionService(repo, items, phases, audit, nil, WithDashboardInvalidator(inv))

	repo.versions["ver-1"] = &models.Version{ID: "ver-1", PhaseID: "phase-1", Status: models.VersionStatusDraft}
	items.items["ver-1"] = []models.VersionItem{
		{VersionID: "ver-1", ItemType: models.ItemTypeDataSource, Status: models.ItemStatusApproved, IsPrimary: true},
		{VersionID: "ver-1", ItemType: models.ItemTypeAttribute, Status: models.ItemStatusApproved, IsCDE: true, IsMandatory: true},
		{VersionID: "ver-1", ItemType: models.ItemTypeAttribute, Status: models.ItemStatusPending},
		{VersionID: "ver-1", ItemType: models.ItemTypeSample, Status: models.ItemStatusRejected},
	}

	require.NoError(t, svc.RefreshSummary(context.Background(), "ver-1"))

	stored := repo.versions["ver-1"]
	require.Equal(t, 1, stored.TotalDataSources)
	require.Equal(t, 1, stored.ApprovedDataSources)
	require.Equal(t, 2, stored.TotalAttributes)
	require.Equal(t, 1, stored.ApprovedAttributes)
	require.Equal(t, 1, stored.TotalSamples)
	require.Equal(t, 0, stored.ApprovedSamples)
	require.Equal(t, 1, stored.PrimaryKeyCount)
	require.Equal(t, 1, stored.MandatoryCount)
	require.Equal(t, 1, stored.CDECount)
	require.Equal(t, []string{"ver-1"}, inv.invalidated)
}
