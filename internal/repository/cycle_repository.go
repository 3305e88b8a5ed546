package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/synapsedt/synapsedt-api/internal/models"
)

// CycleRepository persists test cycles, their reports, and per-report
// workflow phases.
type CycleRepository struct {
	db *sqlx.DB
}

// NewCycleRepository constructs the repository.
func NewCycleRepository(db *sqlx.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

// CreateCycle inserts a new test cycle.
func (r *CycleRepository) CreateCycle(ctx context.Context, cycle *models.TestCycle) error {
	if cycle.ID == "" {
		cycle.ID = uuid.NewString()
	}
	if cycle.Status == "" {
		cycle.Status = models.CycleStatusActive
	}
	now := time.Now().UTC()
	if cycle.CreatedAt.IsZero() {
		cycle.CreatedAt = now
	}
	cycle.UpdatedAt = now
	const query = `INSERT INTO test_cycles (id, name, quarter, year, status, start_date, end_date, created_by, created_at, updated_at)
	VALUES (:id, :name, :quarter, :year, :status, :start_date, :end_date, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cycle); err != nil {
		return fmt.Errorf("create test cycle: %w", err)
	}
	return nil
}

// GetCycle fetches a cycle by identifier.
func (r *CycleRepository) GetCycle(ctx context.Context, id string) (*models.TestCycle, error) {
	const query = `SELECT id, name, quarter, year, status, start_date, end_date, created_by, created_at, updated_at FROM test_cycles WHERE id = $1 LIMIT 1`
	var cycle models.TestCycle
	if err := r.db.GetContext(ctx, &cycle, query, id); err != nil {
		return nil, err
	}
	return &cycle, nil
}

// ListCycles returns cycles matching the filter with a total count.
func (r *CycleRepository) ListCycles(ctx context.Context, filter models.CycleFilter) ([]models.TestCycle, int, error) {
	baseQuery := `FROM test_cycles WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Quarter > 0 {
		conditions = append(conditions, fmt.Sprintf("quarter = $%d", len(args)+1))
		args = append(args, filter.Quarter)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, name, quarter, year, status, start_date, end_date, created_by, created_at, updated_at %s ORDER BY year DESC, quarter DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var cycles []models.TestCycle
	if err := r.db.SelectContext(ctx, &cycles, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list test cycles: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count test cycles: %w", err)
	}
	return cycles, total, nil
}

// CloseCycle marks a cycle closed and stamps the end date. The update only
// applies while the cycle is still active.
func (r *CycleRepository) CloseCycle(ctx context.Context, id string, endDate time.Time) error {
	const query = `UPDATE test_cycles SET status = $2, end_date = $3, updated_at = $4 WHERE id = $1 AND status = $5`
	result, err := r.db.ExecContext(ctx, query, id, models.CycleStatusClosed, endDate, time.Now().UTC(), models.CycleStatusActive)
	if err != nil {
		return fmt.Errorf("close test cycle: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check cycle update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateReport attaches a regulatory report to a cycle.
func (r *CycleRepository) CreateReport(ctx context.Context, report *models.CycleReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now
	const query = `INSERT INTO cycle_reports (id, cycle_id, report_name, regulatory_ref, lob, tester_id, owner_id, created_at, updated_at)
	VALUES (:id, :cycle_id, :report_name, :regulatory_ref, :lob, :tester_id, :owner_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create cycle report: %w", err)
	}
	return nil
}

// GetReport fetches a report by identifier.
func (r *CycleRepository) GetReport(ctx context.Context, id string) (*models.CycleReport, error) {
	const query = `SELECT id, cycle_id, report_name, regulatory_ref, lob, tester_id, owner_id, created_at, updated_at FROM cycle_reports WHERE id = $1 LIMIT 1`
	var report models.CycleReport
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListReportsByCycle returns all reports under a cycle.
func (r *CycleRepository) ListReportsByCycle(ctx context.Context, cycleID string) ([]models.CycleReport, error) {
	const query = `SELECT id, cycle_id, report_name, regulatory_ref, lob, tester_id, owner_id, created_at, updated_at FROM cycle_reports WHERE cycle_id = $1 ORDER BY report_name`
	var reports []models.CycleReport
	if err := r.db.SelectContext(ctx, &reports, query, cycleID); err != nil {
		return nil, fmt.Errorf("list cycle reports: %w", err)
	}
	return reports, nil
}

// UpdateReportAssignment sets the tester and/or owner on a report.
func (r *CycleRepository) UpdateReportAssignment(ctx context.Context, id string, testerID, ownerID *string) error {
	setParts := []string{"updated_at = :updated_at"}
	args := map[string]interface{}{
		"id":         id,
		"updated_at": time.Now().UTC(),
	}
	if testerID != nil {
		setParts = append(setParts, "tester_id = :tester_id")
		args["tester_id"] = *testerID
	}
	if ownerID != nil {
		setParts = append(setParts, "owner_id = :owner_id")
		args["owner_id"] = *ownerID
	}
	query := fmt.Sprintf("UPDATE cycle_reports SET %s WHERE id = :id", strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update report assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check report update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreatePhases inserts the full ordered phase set for a report.
func (r *CycleRepository) CreatePhases(ctx context.Context, phases []models.WorkflowPhase) error {
	const query = `INSERT INTO workflow_phases (id, report_id, name, sequence, status, started_at, completed_at, created_at, updated_at)
	VALUES (:id, :report_id, :name, :sequence, :status, :started_at, :completed_at, :created_at, :updated_at)`
	for i := range phases {
		phase := &phases[i]
		if phase.ID == "" {
			phase.ID = uuid.NewString()
		}
		now := time.Now().UTC()
		if phase.CreatedAt.IsZero() {
			phase.CreatedAt = now
		}
		phase.UpdatedAt = now
		if _, err := r.db.NamedExecContext(ctx, query, phase); err != nil {
			return fmt.Errorf("create workflow phase %s: %w", phase.Name, err)
		}
	}
	return nil
}

// GetPhase fetches a workflow phase by identifier.
func (r *CycleRepository) GetPhase(ctx context.Context, id string) (*models.WorkflowPhase, error) {
	const query = `SELECT id, report_id, name, sequence, status, started_at, completed_at, created_at, updated_at FROM workflow_phases WHERE id = $1 LIMIT 1`
	var phase models.WorkflowPhase
	if err := r.db.GetContext(ctx, &phase, query, id); err != nil {
		return nil, err
	}
	return &phase, nil
}

// ListPhasesByReport returns the report's phases in workflow order.
func (r *CycleRepository) ListPhasesByReport(ctx context.Context, reportID string) ([]models.WorkflowPhase, error) {
	const query = `SELECT id, report_id, name, sequence, status, started_at, completed_at, created_at, updated_at FROM workflow_phases WHERE report_id = $1 ORDER BY sequence`
	var phases []models.WorkflowPhase
	if err := r.db.SelectContext(ctx, &phases, query, reportID); err != nil {
		return nil, fmt.Errorf("list workflow phases: %w", err)
	}
	return phases, nil
}

// UpdatePhaseStatus transitions a phase, stamping started/completed times as
// the target status dictates.
func (r *CycleRepository) UpdatePhaseStatus(ctx context.Context, id string, status models.PhaseStatus) error {
	now := time.Now().UTC()
	setParts := []string{"status = :status", "updated_at = :updated_at"}
	args := map[string]interface{}{
		"id":         id,
		"status":     status,
		"updated_at": now,
	}
	switch status {
	case models.PhaseStatusInProgress:
		setParts = append(setParts, "started_at = :started_at")
		args["started_at"] = now
	case models.PhaseStatusComplete:
		setParts = append(setParts, "completed_at = :completed_at")
		args["completed_at"] = now
	}
	query := fmt.Sprintf("UPDATE workflow_phases SET %s WHERE id = :id", strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update phase status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check phase update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
