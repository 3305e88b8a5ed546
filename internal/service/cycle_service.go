package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/synapsedt/synapsedt-api/internal/dto"
	"github.com/synapsedt/synapsedt-api/internal/models"
	appErrors "github.com/synapsedt/synapsedt-api/pkg/errors"
)

type cycleStore interface {
	CreateCycle(ctx context.Context, cycle *models.TestCycle) error
	GetCycle(ctx context.Context, id string) (*models.TestCycle, error)
	ListCycles(ctx context.Context, filter models.CycleFilter) ([]models.TestCycle, int, error)
	CloseCycle(ctx context.Context, id string, endDate time.Time) error
	CreateReport(ctx context.Context, report *models.CycleReport) error
	GetReport(ctx context.Context, id string) (*models.CycleReport, error)
	ListReportsByCycle(ctx context.Context, cycleID string) ([]models.CycleReport, error)
	UpdateReportAssignment(ctx context.Context, id string, testerID, ownerID *string) error
	CreatePhases(ctx context.Context, phases []models.WorkflowPhase) error
	GetPhase(ctx context.Context, id string) (*models.WorkflowPhase, error)
	ListPhasesByReport(ctx context.Context, reportID string) ([]models.WorkflowPhase, error)
	UpdatePhaseStatus(ctx context.Context, id string, status models.PhaseStatus) error
}

type currentVersionFinder interface {
	GetCurrentByPhase(ctx context.Context, phaseID string) (*models.Version, error)
}

// CycleService manages test cycles, their reports, and workflow phase
// progression.
type CycleService struct {
	repo     cycleStore
	versions currentVersionFinder
	audit    auditLogger
	logger   *zap.Logger
}

// NewCycleService constructs the service.
func NewCycleService(repo cycleStore, versions currentVersionFinder, audit auditLogger, logger *zap.Logger) *CycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CycleService{repo: repo, versions: versions, audit: audit, logger: logger}
}

// CreateCycle opens a new testing window.
func (s *CycleService) CreateCycle(ctx context.Context, req dto.CreateCycleRequest, actorID string) (*models.TestCycle, error) {
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD")
	}
	cycle := &models.TestCycle{
		Name:      req.Name,
		Quarter:   req.Quarter,
		Year:      req.Year,
		Status:    models.CycleStatusActive,
		StartDate: startDate,
		CreatedBy: actorID,
	}
	if err := s.repo.CreateCycle(ctx, cycle); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create test cycle")
	}
	return cycle, nil
}

// GetCycle returns a cycle by identifier.
func (s *CycleService) GetCycle(ctx context.Context, id string) (*models.TestCycle, error) {
	cycle, err := s.repo.GetCycle(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "test cycle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load test cycle")
	}
	return cycle, nil
}

// ListCycles returns cycles matching the filter.
func (s *CycleService) ListCycles(ctx context.Context, filter models.CycleFilter) ([]models.TestCycle, *models.Pagination, error) {
	cycles, total, err := s.repo.ListCycles(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list test cycles")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return cycles, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// CloseCycle ends an active cycle.
func (s *CycleService) CloseCycle(ctx context.Context, id, actorID string) (*models.TestCycle, error) {
	cycle, err := s.GetCycle(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err := s.repo.CloseCycle(ctx, id, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "cycle is already closed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close test cycle")
	}
	cycle.Status = models.CycleStatusClosed
	cycle.EndDate = &now
	return cycle, nil
}

// CreateReport attaches a regulatory report to an active cycle and seeds its
// full workflow phase sequence, with the first phase already in progress.
func (s *CycleService) CreateReport(ctx context.Context, cycleID string, req dto.CreateReportRequest, actorID string) (*models.CycleReport, error) {
	cycle, err := s.GetCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if cycle.Status != models.CycleStatusActive {
		return nil, appErrors.Clone(appErrors.ErrValidation, "reports can only be added to active cycles")
	}

	report := &models.CycleReport{
		CycleID:       cycleID,
		ReportName:    req.ReportName,
		RegulatoryRef: req.RegulatoryRef,
		LOB:           req.LOB,
		TesterID:      req.TesterID,
		OwnerID:       req.OwnerID,
	}
	if err := s.repo.CreateReport(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create cycle report")
	}

	now := time.Now().UTC()
	phases := make([]models.WorkflowPhase, 0, len(models.PhaseOrder))
	for i, name := range models.PhaseOrder {
		phase := models.WorkflowPhase{
			ReportID: report.ID,
			Name:     name,
			Sequence: i + 1,
			Status:   models.PhaseStatusNotStarted,
		}
		if i == 0 {
			phase.Status = models.PhaseStatusInProgress
			phase.StartedAt = &now
		}
		phases = append(phases, phase)
	}
	if err := s.repo.CreatePhases(ctx, phases); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed workflow phases")
	}
	return report, nil
}

// GetReport returns a report by identifier.
func (s *CycleService) GetReport(ctx context.Context, id string) (*models.CycleReport, error) {
	report, err := s.repo.GetReport(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cycle report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle report")
	}
	return report, nil
}

// ListReports returns all reports under a cycle.
func (s *CycleService) ListReports(ctx context.Context, cycleID string) ([]models.CycleReport, error) {
	if _, err := s.GetCycle(ctx, cycleID); err != nil {
		return nil, err
	}
	reports, err := s.repo.ListReportsByCycle(ctx, cycleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cycle reports")
	}
	return reports, nil
}

// AssignReport updates tester/owner assignment on a report.
func (s *CycleService) AssignReport(ctx context.Context, id string, req dto.AssignReportRequest, actorID string) (*models.CycleReport, error) {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.TesterID == nil && req.OwnerID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one of tester_id or owner_id is required")
	}
	if err := s.repo.UpdateReportAssignment(ctx, id, req.TesterID, req.OwnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "cycle report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update report assignment")
	}
	if req.TesterID != nil {
		report.TesterID = req.TesterID
	}
	if req.OwnerID != nil {
		report.OwnerID = req.OwnerID
	}
	return report, nil
}

// ListPhases returns the report's phases in workflow order.
func (s *CycleService) ListPhases(ctx context.Context, reportID string) ([]models.WorkflowPhase, error) {
	if _, err := s.GetReport(ctx, reportID); err != nil {
		return nil, err
	}
	phases, err := s.repo.ListPhasesByReport(ctx, reportID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list workflow phases")
	}
	return phases, nil
}

// AdvancePhase completes an in-progress phase and starts the next one in
// sequence. A phase can only complete once an approved version exists for it.
func (s *CycleService) AdvancePhase(ctx context.Context, phaseID, actorID string) (*models.WorkflowPhase, error) {
	phase, err := s.repo.GetPhase(ctx, phaseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow phase not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow phase")
	}
	if phase.Status != models.PhaseStatusInProgress {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only in-progress phases can be advanced")
	}

	current, err := s.versions.GetCurrentByPhase(ctx, phaseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrBusinessRule, "phase has no approved version")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current version")
	}
	if current.Status != models.VersionStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "phase deliverable must be approved before advancing")
	}

	if err := s.repo.UpdatePhaseStatus(ctx, phaseID, models.PhaseStatusComplete); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete phase")
	}
	phase.Status = models.PhaseStatusComplete

	phases, err := s.repo.ListPhasesByReport(ctx, phase.ReportID)
	if err != nil {
		return phase, nil
	}
	for i := range phases {
		if phases[i].Sequence == phase.Sequence+1 && phases[i].Status == models.PhaseStatusNotStarted {
			if err := s.repo.UpdatePhaseStatus(ctx, phases[i].ID, models.PhaseStatusInProgress); err != nil {
				s.logger.Warn("failed to start next phase", zap.String("phase_id", phases[i].ID), zap.Error(err))
			}
			break
		}
	}

	s.emitAudit(ctx, actorID, models.AuditActionPhaseAdvance, phaseID)
	return phase, nil
}

func (s *CycleService) emitAudit(ctx context.Context, actorID, action, resourceID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "workflow_phase",
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "cycle-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
