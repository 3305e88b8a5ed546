package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/synapsedt/synapsedt-api/internal/dto"
	"github.com/synapsedt/synapsedt-api/internal/models"
	"github.com/synapsedt/synapsedt-api/internal/repository"
	appErrors "github.com/synapsedt/synapsedt-api/pkg/errors"
)

type versionStore interface {
	Create(ctx context.Context, version *models.Version) error
	GetByID(ctx context.Context, id string) (*models.Version, error)
	GetDraftByPhase(ctx context.Context, phaseID string) (*models.Version, error)
	MaxVersionNumber(ctx context.Context, phaseID string) (int, error)
	GetCurrentByPhase(ctx context.Context, phaseID string) (*models.Version, error)
	List(ctx context.Context, filter models.VersionFilter) ([]models.Version, error)
	UpdateStatus(ctx context.Context, params repository.UpdateVersionStatusParams) error
	SupersedeApproved(ctx context.Context, phaseID, exceptID string) error
	UpdateSummary(ctx context.Context, versionID string, summary models.VersionSummary) error
}

type versionItemLister interface {
	ListByVersion(ctx context.Context, filter models.ItemFilter) ([]models.VersionItem, error)
}

type phaseFinder interface {
	GetPhase(ctx context.Context, id string) (*models.WorkflowPhase, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// dashboardInvalidator drops cached dashboard payloads after summary writes.
type dashboardInvalidator interface {
	InvalidateVersion(ctx context.Context, versionID string)
}

var itemTypeLabels = map[models.ItemType]string{
	models.ItemTypeDataSource: "data source",
	models.ItemTypeAttribute:  "attribute",
	models.ItemTypePDEMapping: "PDE mapping",
	models.ItemTypeSample:     "sample",
}

// SubmissionRequirements returns the list of conditions still blocking
// submission, empty when the version is eligible. Pure function of the child
// items; serves both enforcement on submit and advisory dashboard display.
func SubmissionRequirements(items []models.VersionItem) []string {
	var errs []string
	undecided := map[models.ItemType]bool{}
	approved := 0
	for i := range items {
		if !items[i].Decided() {
			undecided[items[i].ItemType] = true
		}
		if items[i].Status == models.ItemStatusApproved {
			approved++
		}
	}
	for _, itemType := range models.ItemTypes {
		if undecided[itemType] {
			errs = append(errs, fmt.Sprintf("All %s items must have tester decisions", itemTypeLabels[itemType]))
		}
	}
	if approved == 0 {
		errs = append(errs, "Version must have at least one approved component")
	}
	return errs
}

// ComputeSummary recomputes the denormalized counters from the full item set.
func ComputeSummary(items []models.VersionItem) models.VersionSummary {
	var summary models.VersionSummary
	for i := range items {
		item := &items[i]
		approved := item.Status == models.ItemStatusApproved
		switch item.ItemType {
		case models.ItemTypeDataSource:
			summary.TotalDataSources++
			if approved {
				summary.ApprovedDataSources++
			}
		case models.ItemTypeAttribute:
			summary.TotalAttributes++
			if approved {
				summary.ApprovedAttributes++
			}
		case models.ItemTypePDEMapping:
			summary.TotalMappings++
			if approved {
				summary.ApprovedMappings++
			}
		case models.ItemTypeSample:
			summary.TotalSamples++
			if approved {
				summary.ApprovedSamples++
			}
		}
		if item.IsPrimary {
			summary.PrimaryKeyCount++
		}
		if item.IsMandatory {
			summary.MandatoryCount++
		}
		if item.IsCDE {
			summary.CDECount++
		}
	}
	return summary
}

// transitionRecorder counts lifecycle transitions for observability.
type transitionRecorder interface {
	RecordVersionTransition(toStatus string)
}

// VersionService owns the version draft/approval lifecycle.
type VersionService struct {
	repo        versionStore
	items       versionItemLister
	phases      phaseFinder
	audit       auditLogger
	invalidator dashboardInvalidator
	metrics     transitionRecorder
	logger      *zap.Logger
}

// VersionServiceOption configures the service.
type VersionServiceOption func(*VersionService)

// WithDashboardInvalidator wires cache invalidation after summary refreshes.
func WithDashboardInvalidator(inv dashboardInvalidator) VersionServiceOption {
	return func(s *VersionService) {
		if inv != nil {
			s.invalidator = inv
		}
	}
}

// WithTransitionMetrics wires lifecycle transition counters.
func WithTransitionMetrics(rec transitionRecorder) VersionServiceOption {
	return func(s *VersionService) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// NewVersionService constructs the service with defaults.
func NewVersionService(repo versionStore, items versionItemLister, phases phaseFinder, audit auditLogger, logger *zap.Logger, opts ...VersionServiceOption) *VersionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &VersionService{
		repo:   repo,
		items:  items,
		phases: phases,
		audit:  audit,
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create opens a new draft for a phase. At most one draft may exist per phase
// at a time; the version number continues the phase's monotonic sequence.
func (s *VersionService) Create(ctx context.Context, req dto.CreateVersionRequest, actorID string) (*models.Version, error) {
	if _, err := s.phases.GetPhase(ctx, req.PhaseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow phase not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow phase")
	}

	if _, err := s.repo.GetDraftByPhase(ctx, req.PhaseID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a draft version already exists for this phase")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check for existing draft")
	}

	max, err := s.repo.MaxVersionNumber(ctx, req.PhaseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute version number")
	}

	version := &models.Version{
		PhaseID:         req.PhaseID,
		VersionNumber:   max + 1,
		Status:          models.VersionStatusDraft,
		ParentVersionID: req.ParentVersionID,
		CreatedBy:       actorID,
	}
	if err := s.repo.Create(ctx, version); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create version")
	}
	s.recordTransition(models.VersionStatusDraft)
	s.emitAudit(ctx, actorID, models.AuditActionVersionCreate, version.ID)
	return version, nil
}

// Get returns a version by identifier.
func (s *VersionService) Get(ctx context.Context, id string) (*models.Version, error) {
	version, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}
	return version, nil
}

// Current returns the phase's latest version still in play: the highest
// version number among DRAFT, PENDING_APPROVAL, and APPROVED.
func (s *VersionService) Current(ctx context.Context, phaseID string) (*models.Version, error) {
	version, err := s.repo.GetCurrentByPhase(ctx, phaseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current version for this phase")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current version")
	}
	return version, nil
}

// List returns versions matching the query.
func (s *VersionService) List(ctx context.Context, query dto.VersionQuery) ([]models.Version, error) {
	filter := models.VersionFilter{
		PhaseID:  query.PhaseID,
		Page:     query.Page,
		PageSize: query.Limit,
	}
	for _, status := range query.Status {
		filter.Status = append(filter.Status, models.VersionStatus(status))
	}
	versions, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list versions")
	}
	return versions, nil
}

// Submit moves a draft to PENDING_APPROVAL once the submission requirements
// are met. Outstanding requirements are returned as itemised rule failures.
func (s *VersionService) Submit(ctx context.Context, id, actorID string) (*models.Version, error) {
	version, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if version.Status != models.VersionStatusDraft {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only draft versions can be submitted")
	}

	items, err := s.items.ListByVersion(ctx, models.ItemFilter{VersionID: id})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version items")
	}
	if requirements := SubmissionRequirements(items); len(requirements) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrBusinessRule, "version is not ready for submission", requirements)
	}

	now := time.Now().UTC()
	err = s.repo.UpdateStatus(ctx, repository.UpdateVersionStatusParams{
		ID:             id,
		ExpectedStatus: models.VersionStatusDraft,
		Status:         models.VersionStatusPending,
		SubmittedBy:    &actorID,
		SubmittedAt:    &now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "version was transitioned by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit version")
	}
	version.Status = models.VersionStatusPending
	version.SubmittedBy = &actorID
	version.SubmittedAt = &now
	s.recordTransition(models.VersionStatusPending)
	s.emitAudit(ctx, actorID, models.AuditActionVersionSubmit, id)
	return version, nil
}

// Approve finalises a pending version and supersedes any previously approved
// sibling of the same phase.
func (s *VersionService) Approve(ctx context.Context, id, actorID string) (*models.Version, error) {
	version, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if version.Status != models.VersionStatusPending {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only pending versions can be approved")
	}

	if err := s.repo.SupersedeApproved(ctx, version.PhaseID, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to supersede previous versions")
	}

	now := time.Now().UTC()
	err = s.repo.UpdateStatus(ctx, repository.UpdateVersionStatusParams{
		ID:             id,
		ExpectedStatus: models.VersionStatusPending,
		Status:         models.VersionStatusApproved,
		ApprovedBy:     &actorID,
		ApprovedAt:     &now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "version was transitioned by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve version")
	}
	version.Status = models.VersionStatusApproved
	version.ApprovedBy = &actorID
	version.ApprovedAt = &now
	s.recordTransition(models.VersionStatusApproved)
	s.emitAudit(ctx, actorID, models.AuditActionVersionApprove, id)
	return version, nil
}

// Reject returns a pending version to a terminal REJECTED state with the
// reviewer's rationale. Further edits happen through a brand-new version.
func (s *VersionService) Reject(ctx context.Context, id string, req dto.RejectVersionRequest, actorID string) (*models.Version, error) {
	version, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if version.Status != models.VersionStatusPending {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only pending versions can be rejected")
	}

	reason := req.Reason
	err = s.repo.UpdateStatus(ctx, repository.UpdateVersionStatusParams{
		ID:              id,
		ExpectedStatus:  models.VersionStatusPending,
		Status:          models.VersionStatusRejected,
		RejectionReason: &reason,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "version was transitioned by another request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject version")
	}
	version.Status = models.VersionStatusRejected
	version.RejectionReason = &reason
	s.recordTransition(models.VersionStatusRejected)
	s.emitAudit(ctx, actorID, models.AuditActionVersionReject, id)
	return version, nil
}

// RefreshSummary re-reads every child item and overwrites the version's
// denormalized counters. Invoked after every item mutation; counters are
// never incrementally maintained.
func (s *VersionService) RefreshSummary(ctx context.Context, versionID string) error {
	items, err := s.items.ListByVersion(ctx, models.ItemFilter{VersionID: versionID})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version items")
	}
	summary := ComputeSummary(items)
	if err := s.repo.UpdateSummary(ctx, versionID, summary); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist version summary")
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateVersion(ctx, versionID)
	}
	return nil
}

func (s *VersionService) recordTransition(status models.VersionStatus) {
	if s.metrics != nil {
		s.metrics.RecordVersionTransition(string(status))
	}
}

func (s *VersionService) emitAudit(ctx context.Context, actorID, action, versionID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "version",
		ResourceID: &versionID,
		IPAddress:  "system",
		UserAgent:  "version-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
