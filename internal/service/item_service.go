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

type itemStore interface {
	Create(ctx context.Context, item *models.VersionItem) error
	GetByID(ctx context.Context, id string) (*models.VersionItem, error)
	ListByVersion(ctx context.Context, filter models.ItemFilter) ([]models.VersionItem, error)
	ExistsByName(ctx context.Context, versionID string, itemType models.ItemType, name string) (bool, error)
	UpdateTesterDecision(ctx context.Context, params repository.UpdateDecisionParams) error
	UpdateOwnerDecision(ctx context.Context, params repository.UpdateDecisionParams) error
}

type versionFinder interface {
	GetByID(ctx context.Context, id string) (*models.Version, error)
}

// summaryRefresher recomputes the owning version's counters after any item
// mutation.
type summaryRefresher interface {
	RefreshSummary(ctx context.Context, versionID string) error
}

// decisionRecorder counts recorded decisions for observability.
type decisionRecorder interface {
	RecordItemDecision(decision string, auto bool)
}

// ItemService manages child items nested under a version.
type ItemService struct {
	repo      itemStore
	versions  versionFinder
	summaries summaryRefresher
	evaluator *ApprovalRuleEvaluator
	audit     auditLogger
	metrics   decisionRecorder
	logger    *zap.Logger
}

// ItemServiceOption configures the service.
type ItemServiceOption func(*ItemService)

// WithDecisionMetrics wires decision counters.
func WithDecisionMetrics(rec decisionRecorder) ItemServiceOption {
	return func(s *ItemService) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// NewItemService constructs the service.
func NewItemService(repo itemStore, versions versionFinder, summaries summaryRefresher, evaluator *ApprovalRuleEvaluator, audit auditLogger, logger *zap.Logger, opts ...ItemServiceOption) *ItemService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ItemService{
		repo:      repo,
		versions:  versions,
		summaries: summaries,
		evaluator: evaluator,
		audit:     audit,
		logger:    logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create adds an item to a draft version, applying the auto-approval rules
// against the payload before persisting.
func (s *ItemService) Create(ctx context.Context, versionID string, req dto.CreateItemRequest, actorID string) (*models.VersionItem, error) {
	version, err := s.loadVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if !version.Status.Editable() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "items can only be added to draft versions")
	}
	if !validItemType(req.ItemType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported item type: %s", req.ItemType))
	}

	exists, err := s.repo.ExistsByName(ctx, versionID, req.ItemType, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check item name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("an item named %q already exists under this version", req.Name))
	}

	item := &models.VersionItem{
		VersionID:      versionID,
		PhaseID:        version.PhaseID,
		ItemType:       req.ItemType,
		Name:           req.Name,
		Description:    req.Description,
		DataType:       req.DataType,
		LineItemNumber: req.LineItemNumber,
		SourceRef:      req.SourceRef,
		SampleCategory: req.SampleCategory,
		IsPrimary:      req.IsPrimary,
		IsMandatory:    req.IsMandatory,
		IsCDE:          req.IsCDE,
		Status:         models.ItemStatusPending,
		CreatedBy:      actorID,
	}
	if req.Classification != nil {
		item.InfoSecurity = req.Classification.InfoSecurity
		item.RiskLevel = req.Classification.RiskLevel
		item.Criticality = req.Classification.Criticality
	}
	if req.LLMMetadata != nil {
		item.LLMConfidence = req.LLMMetadata.ConfidenceScore
		item.LLMRationale = req.LLMMetadata.Rationale
	}

	if s.evaluator != nil && s.evaluator.ShouldAutoApprove(item) {
		decision := models.DecisionApprove
		notes := AutoApproveNotes
		now := time.Now().UTC()
		item.TesterDecision = &decision
		item.TesterNotes = &notes
		item.TesterDecidedAt = &now
		item.Status = models.ItemStatusApproved
		item.AutoApproved = true
		s.recordDecision(decision, true)
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create item")
	}
	if err := s.summaries.RefreshSummary(ctx, versionID); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, actorID, models.AuditActionItemCreate, item.ID)
	return item, nil
}

// Get returns an item by identifier.
func (s *ItemService) Get(ctx context.Context, id string) (*models.VersionItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load item")
	}
	return item, nil
}

// List returns a version's items, optionally filtered by type and status.
func (s *ItemService) List(ctx context.Context, filter models.ItemFilter) ([]models.VersionItem, error) {
	items, err := s.repo.ListByVersion(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list items")
	}
	return items, nil
}

// UpdateDecision records a tester verdict on an item and mirrors it into the
// item status. Allowed while the owning version is DRAFT or PENDING_APPROVAL.
func (s *ItemService) UpdateDecision(ctx context.Context, itemID string, req dto.DecisionRequest, actorID string) (*models.VersionItem, error) {
	item, err := s.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	version, err := s.loadVersion(ctx, item.VersionID)
	if err != nil {
		return nil, err
	}
	if !version.Status.AcceptsDecisions() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decisions are only accepted while the version is in draft or pending approval")
	}
	status, err := statusForDecision(req.Decision)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	params := repository.UpdateDecisionParams{
		ID:        itemID,
		Decision:  req.Decision,
		Notes:     optionalString(req.Notes),
		DecidedBy: actorID,
		DecidedAt: now,
		Status:    status,
	}
	if err := s.repo.UpdateTesterDecision(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}
	if err := s.summaries.RefreshSummary(ctx, item.VersionID); err != nil {
		return nil, err
	}

	item.TesterDecision = &req.Decision
	item.TesterNotes = params.Notes
	item.TesterDecidedBy = &actorID
	item.TesterDecidedAt = &now
	item.Status = status
	item.AutoApproved = false
	s.recordDecision(req.Decision, false)
	s.emitAudit(ctx, actorID, models.AuditActionItemDecision, itemID)
	return item, nil
}

// UpdateOwnerDecision records the report owner's second-stage verdict. The
// item status stays derived from the tester decision.
func (s *ItemService) UpdateOwnerDecision(ctx context.Context, itemID string, req dto.DecisionRequest, actorID string) (*models.VersionItem, error) {
	item, err := s.Get(ctx, itemID)
	if err != nil {
		return nil, err
	}
	version, err := s.loadVersion(ctx, item.VersionID)
	if err != nil {
		return nil, err
	}
	if !version.Status.AcceptsDecisions() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decisions are only accepted while the version is in draft or pending approval")
	}
	if _, err := statusForDecision(req.Decision); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	params := repository.UpdateDecisionParams{
		ID:        itemID,
		Decision:  req.Decision,
		Notes:     optionalString(req.Notes),
		DecidedBy: actorID,
		DecidedAt: now,
		Status:    item.Status,
	}
	if err := s.repo.UpdateOwnerDecision(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record owner decision")
	}
	if err := s.summaries.RefreshSummary(ctx, item.VersionID); err != nil {
		return nil, err
	}

	item.OwnerDecision = &req.Decision
	item.OwnerNotes = params.Notes
	item.OwnerDecidedBy = &actorID
	item.OwnerDecidedAt = &now
	s.recordDecision(req.Decision, false)
	s.emitAudit(ctx, actorID, models.AuditActionItemDecision, itemID)
	return item, nil
}

// BulkDecision applies one decision across many items, isolating per-item
// failures: one bad id never rolls back decisions already applied to the
// others in the same batch.
func (s *ItemService) BulkDecision(ctx context.Context, req dto.BulkDecisionRequest, actorID string) (*dto.BulkDecisionResult, error) {
	if _, err := statusForDecision(req.Decision); err != nil {
		return nil, err
	}
	result := &dto.BulkDecisionResult{
		TotalRequested: len(req.ItemIDs),
		Errors:         []string{},
	}
	single := dto.DecisionRequest{Decision: req.Decision, Notes: req.Notes}
	for _, itemID := range req.ItemIDs {
		item, err := s.Get(ctx, itemID)
		if err == nil && req.ItemType != "" && item.ItemType != req.ItemType {
			err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("item is not a %s", req.ItemType))
		}
		if err == nil {
			_, err = s.UpdateDecision(ctx, itemID, single, actorID)
		}
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", itemID, appErrors.FromError(err).Message))
			continue
		}
		result.Successful++
	}
	return result, nil
}

func (s *ItemService) recordDecision(decision models.Decision, auto bool) {
	if s.metrics != nil {
		s.metrics.RecordItemDecision(string(decision), auto)
	}
}

func (s *ItemService) loadVersion(ctx context.Context, versionID string) (*models.Version, error) {
	version, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}
	return version, nil
}

func (s *ItemService) emitAudit(ctx context.Context, actorID, action, itemID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "version_item",
		ResourceID: &itemID,
		IPAddress:  "system",
		UserAgent:  "item-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func statusForDecision(decision models.Decision) (models.ItemStatus, error) {
	switch decision {
	case models.DecisionApprove:
		return models.ItemStatusApproved, nil
	case models.DecisionReject:
		return models.ItemStatusRejected, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVE or REJECT")
	}
}

func validItemType(itemType models.ItemType) bool {
	for _, t := range models.ItemTypes {
		if t == itemType {
			return true
		}
	}
	return false
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
