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

const itemColumns = `id, version_id, phase_id, item_type, name, description,
       data_type, line_item_number, source_ref, sample_category,
       is_primary, is_mandatory, is_cde,
       info_security, risk_level, criticality, llm_confidence, llm_rationale,
       tester_decision, tester_notes, tester_decided_by, tester_decided_at,
       owner_decision, owner_notes, owner_decided_by, owner_decided_at,
       status, auto_approved, created_by, created_at, updated_at`

// ItemRepository persists version child items.
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository constructs the repository.
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create inserts a new item row.
func (r *ItemRepository) Create(ctx context.Context, item *models.VersionItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.Status == "" {
		item.Status = models.ItemStatusPending
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	const query = `INSERT INTO version_items
	(id, version_id, phase_id, item_type, name, description,
	 data_type, line_item_number, source_ref, sample_category,
	 is_primary, is_mandatory, is_cde,
	 info_security, risk_level, criticality, llm_confidence, llm_rationale,
	 tester_decision, tester_notes, tester_decided_by, tester_decided_at,
	 owner_decision, owner_notes, owner_decided_by, owner_decided_at,
	 status, auto_approved, created_by, created_at, updated_at)
	VALUES (:id, :version_id, :phase_id, :item_type, :name, :description,
	 :data_type, :line_item_number, :source_ref, :sample_category,
	 :is_primary, :is_mandatory, :is_cde,
	 :info_security, :risk_level, :criticality, :llm_confidence, :llm_rationale,
	 :tester_decision, :tester_notes, :tester_decided_by, :tester_decided_at,
	 :owner_decision, :owner_notes, :owner_decided_by, :owner_decided_at,
	 :status, :auto_approved, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create version item: %w", err)
	}
	return nil
}

// GetByID fetches an item by identifier.
func (r *ItemRepository) GetByID(ctx context.Context, id string) (*models.VersionItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM version_items WHERE id = $1`, itemColumns)
	var item models.VersionItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByVersion returns all items under a version, optionally filtered.
func (r *ItemRepository) ListByVersion(ctx context.Context, filter models.ItemFilter) ([]models.VersionItem, error) {
	builder := strings.Builder{}
	args := []interface{}{filter.VersionID}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM version_items WHERE version_id = $1`, itemColumns))
	if filter.ItemType != "" {
		args = append(args, filter.ItemType)
		builder.WriteString(fmt.Sprintf(" AND item_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		builder.WriteString(fmt.Sprintf(" AND status = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY item_type, name")

	var items []models.VersionItem
	if err := r.db.SelectContext(ctx, &items, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list version items: %w", err)
	}
	return items, nil
}

// ExistsByName reports whether an item with the natural key already exists
// under the version.
func (r *ItemRepository) ExistsByName(ctx context.Context, versionID string, itemType models.ItemType, name string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM version_items WHERE version_id = $1 AND item_type = $2 AND LOWER(name) = LOWER($3))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, versionID, itemType, name); err != nil {
		return false, fmt.Errorf("check item name: %w", err)
	}
	return exists, nil
}

// UpdateDecisionParams groups decision columns for one review stage.
type UpdateDecisionParams struct {
	ID        string
	Decision  models.Decision
	Notes     *string
	DecidedBy string
	DecidedAt time.Time
	Status    models.ItemStatus
}

// UpdateTesterDecision persists the tester verdict and derived status.
func (r *ItemRepository) UpdateTesterDecision(ctx context.Context, params UpdateDecisionParams) error {
	const query = `UPDATE version_items SET
	tester_decision = :decision, tester_notes = :notes,
	tester_decided_by = :decided_by, tester_decided_at = :decided_at,
	status = :status, auto_approved = false, updated_at = :updated_at
	WHERE id = :id`
	return r.execDecision(ctx, query, params)
}

// UpdateOwnerDecision persists the report-owner verdict without touching the
// tester-derived status.
func (r *ItemRepository) UpdateOwnerDecision(ctx context.Context, params UpdateDecisionParams) error {
	const query = `UPDATE version_items SET
	owner_decision = :decision, owner_notes = :notes,
	owner_decided_by = :decided_by, owner_decided_at = :decided_at,
	updated_at = :updated_at
	WHERE id = :id`
	return r.execDecision(ctx, query, params)
}

func (r *ItemRepository) execDecision(ctx context.Context, query string, params UpdateDecisionParams) error {
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":         params.ID,
		"decision":   params.Decision,
		"notes":      params.Notes,
		"decided_by": params.DecidedBy,
		"decided_at": params.DecidedAt,
		"status":     params.Status,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("update item decision: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check item update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
