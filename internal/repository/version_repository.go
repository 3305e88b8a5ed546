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

const versionColumns = `id, phase_id, version_number, status, parent_version_id,
       submitted_by, submitted_at, approved_by, approved_at, rejection_reason,
       total_data_sources, approved_data_sources, total_attributes, approved_attributes,
       total_mappings, approved_mappings, total_samples, approved_samples,
       primary_key_count, mandatory_count, cde_count,
       created_by, created_at, updated_at`

// VersionRepository persists version lifecycle data.
type VersionRepository struct {
	db *sqlx.DB
}

// NewVersionRepository constructs the repository.
func NewVersionRepository(db *sqlx.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

// Create inserts a new version row.
func (r *VersionRepository) Create(ctx context.Context, version *models.Version) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.Status == "" {
		version.Status = models.VersionStatusDraft
	}
	now := time.Now().UTC()
	if version.CreatedAt.IsZero() {
		version.CreatedAt = now
	}
	version.UpdatedAt = now
	const query = `INSERT INTO versions
	(id, phase_id, version_number, status, parent_version_id,
	 submitted_by, submitted_at, approved_by, approved_at, rejection_reason,
	 total_data_sources, approved_data_sources, total_attributes, approved_attributes,
	 total_mappings, approved_mappings, total_samples, approved_samples,
	 primary_key_count, mandatory_count, cde_count,
	 created_by, created_at, updated_at)
	VALUES (:id, :phase_id, :version_number, :status, :parent_version_id,
	 :submitted_by, :submitted_at, :approved_by, :approved_at, :rejection_reason,
	 :total_data_sources, :approved_data_sources, :total_attributes, :approved_attributes,
	 :total_mappings, :approved_mappings, :total_samples, :approved_samples,
	 :primary_key_count, :mandatory_count, :cde_count,
	 :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, version); err != nil {
		return fmt.Errorf("create version: %w", err)
	}
	return nil
}

// GetByID fetches a version by identifier.
func (r *VersionRepository) GetByID(ctx context.Context, id string) (*models.Version, error) {
	query := fmt.Sprintf(`SELECT %s FROM versions WHERE id = $1`, versionColumns)
	var version models.Version
	if err := r.db.GetContext(ctx, &version, query, id); err != nil {
		return nil, err
	}
	return &version, nil
}

// GetDraftByPhase returns the draft version for a phase when one exists.
func (r *VersionRepository) GetDraftByPhase(ctx context.Context, phaseID string) (*models.Version, error) {
	query := fmt.Sprintf(`SELECT %s FROM versions WHERE phase_id = $1 AND status = $2 LIMIT 1`, versionColumns)
	var version models.Version
	if err := r.db.GetContext(ctx, &version, query, phaseID, models.VersionStatusDraft); err != nil {
		return nil, err
	}
	return &version, nil
}

// MaxVersionNumber returns the highest version number recorded for a phase, 0 when none.
func (r *VersionRepository) MaxVersionNumber(ctx context.Context, phaseID string) (int, error) {
	const query = `SELECT COALESCE(MAX(version_number), 0) FROM versions WHERE phase_id = $1`
	var max int
	if err := r.db.GetContext(ctx, &max, query, phaseID); err != nil {
		return 0, fmt.Errorf("max version number: %w", err)
	}
	return max, nil
}

// GetCurrentByPhase returns the latest version still relevant to the phase:
// highest version_number among DRAFT, PENDING_APPROVAL, and APPROVED.
func (r *VersionRepository) GetCurrentByPhase(ctx context.Context, phaseID string) (*models.Version, error) {
	query := fmt.Sprintf(`SELECT %s FROM versions
	WHERE phase_id = $1 AND status IN ($2, $3, $4)
	ORDER BY version_number DESC LIMIT 1`, versionColumns)
	var version models.Version
	err := r.db.GetContext(ctx, &version, query, phaseID,
		models.VersionStatusDraft, models.VersionStatusPending, models.VersionStatusApproved)
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// List returns versions matching the filter (newest first).
func (r *VersionRepository) List(ctx context.Context, filter models.VersionFilter) ([]models.Version, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM versions`, versionColumns))

	conditions := make([]string, 0, 2)
	if filter.PhaseID != "" {
		args = append(args, filter.PhaseID)
		conditions = append(conditions, fmt.Sprintf("phase_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY version_number DESC")

	limit := filter.PageSize
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var versions []models.Version
	if err := r.db.SelectContext(ctx, &versions, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// UpdateVersionStatusParams groups mutable columns for lifecycle transitions.
// ExpectedStatus guards against concurrent transitions: the update applies
// only while the row is still in that status.
type UpdateVersionStatusParams struct {
	ID              string
	ExpectedStatus  models.VersionStatus
	Status          models.VersionStatus
	SubmittedBy     *string
	SubmittedAt     *time.Time
	ApprovedBy      *string
	ApprovedAt      *time.Time
	RejectionReason *string
}

// UpdateStatus persists a lifecycle transition.
func (r *VersionRepository) UpdateStatus(ctx context.Context, params UpdateVersionStatusParams) error {
	setParts := []string{
		"status = :status",
		"updated_at = :updated_at",
	}
	if params.SubmittedBy != nil {
		setParts = append(setParts, "submitted_by = :submitted_by", "submitted_at = :submitted_at")
	}
	if params.ApprovedBy != nil {
		setParts = append(setParts, "approved_by = :approved_by", "approved_at = :approved_at")
	}
	if params.RejectionReason != nil {
		setParts = append(setParts, "rejection_reason = :rejection_reason")
	}
	query := fmt.Sprintf("UPDATE versions SET %s WHERE id = :id AND status = :expected_status",
		strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               params.ID,
		"expected_status":  params.ExpectedStatus,
		"status":           params.Status,
		"submitted_by":     params.SubmittedBy,
		"submitted_at":     params.SubmittedAt,
		"approved_by":      params.ApprovedBy,
		"approved_at":      params.ApprovedAt,
		"rejection_reason": params.RejectionReason,
		"updated_at":       time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("update version status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check version update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SupersedeApproved flips every APPROVED version of the phase other than the
// given one to SUPERSEDED. Written as a bulk update even though at most one
// sibling should exist.
func (r *VersionRepository) SupersedeApproved(ctx context.Context, phaseID, exceptID string) error {
	const query = `UPDATE versions SET status = $1, updated_at = $2
	WHERE phase_id = $3 AND status = $4 AND id <> $5`
	_, err := r.db.ExecContext(ctx, query,
		models.VersionStatusSuperseded, time.Now().UTC(), phaseID, models.VersionStatusApproved, exceptID)
	if err != nil {
		return fmt.Errorf("supersede approved versions: %w", err)
	}
	return nil
}

// UpdateSummary overwrites the denormalized summary counters.
func (r *VersionRepository) UpdateSummary(ctx context.Context, versionID string, summary models.VersionSummary) error {
	const query = `UPDATE versions SET
	total_data_sources = :total_data_sources,
	approved_data_sources = :approved_data_sources,
	total_attributes = :total_attributes,
	approved_attributes = :approved_attributes,
	total_mappings = :total_mappings,
	approved_mappings = :approved_mappings,
	total_samples = :total_samples,
	approved_samples = :approved_samples,
	primary_key_count = :primary_key_count,
	mandatory_count = :mandatory_count,
	cde_count = :cde_count,
	updated_at = :updated_at
	WHERE id = :id`
	args := map[string]interface{}{
		"id":                    versionID,
		"total_data_sources":    summary.TotalDataSources,
		"approved_data_sources": summary.ApprovedDataSources,
		"total_attributes":      summary.TotalAttributes,
		"approved_attributes":   summary.ApprovedAttributes,
		"total_mappings":        summary.TotalMappings,
		"approved_mappings":     summary.ApprovedMappings,
		"total_samples":         summary.TotalSamples,
		"approved_samples":      summary.ApprovedSamples,
		"primary_key_count":     summary.PrimaryKeyCount,
		"mandatory_count":       summary.MandatoryCount,
		"cde_count":             summary.CDECount,
		"updated_at":            time.Now().UTC(),
	}
	if _, err := r.db.NamedExecContext(ctx, query, args); err != nil {
		return fmt.Errorf("update version summary: %w", err)
	}
	return nil
}
