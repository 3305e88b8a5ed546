package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/synapsedt/synapsedt-api/internal/models"
)

func newItemRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func itemRows(id, versionID string, itemType models.ItemType, status models.ItemStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "version_id", "phase_id", "item_type", "name", "description",
		"data_type", "line_item_number", "source_ref", "sample_category",
		"is_primary", "is_mandatory", "is_cde",
		"info_security", "risk_level", "criticality", "llm_confidence", "llm_rationale",
		"tester_decision", "tester_notes", "tester_decided_by", "tester_decided_at",
		"owner_decision", "owner_notes", "owner_decided_by", "owner_decided_at",
		"status", "auto_approved", "created_by", "created_at", "updated_at",
	}).AddRow(id, versionID, "phase-1", itemType, "customer_id", nil,
		nil, nil, nil, nil,
		false, false, false,
		nil, nil, nil, nil, nil,
		nil, nil, nil, nil,
		nil, nil, nil, nil,
		status, false, "user-1", time.Now(), time.Now())
}

func TestItemRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newItemRepoMock(t)
	defer cleanup()

	repo := NewItemRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO version_items")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	item := &models.VersionItem{
		VersionID: "ver-1",
		PhaseID:   "phase-1",
		ItemType:  models.ItemTypeAttribute,
		Name:      "customer_id",
		CreatedBy: "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), item))
	require.NotEmpty(t, item.ID)
	require.Equal(t, models.ItemStatusPending, item.Status)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, version_id, phase_id")).
		WithArgs(item.ID).
		WillReturnRows(itemRows(item.ID, "ver-1", models.ItemTypeAttribute, models.ItemStatusPending))

	found, err := repo.GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, item.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryListByVersionFilters(t *testing.T) {
	db, mock, cleanup := newItemRepoMock(t)
	defer cleanup()

	repo := NewItemRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, version_id, phase_id")).
		WithArgs("ver-1", models.ItemTypeSample, models.ItemStatusPending).
		WillReturnRows(itemRows("item-1", "ver-1", models.ItemTypeSample, models.ItemStatusPending))

	items, err := repo.ListByVersion(context.Background(), models.ItemFilter{
		VersionID: "ver-1",
		ItemType:  models.ItemTypeSample,
		Status:    models.ItemStatusPending,
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "item-1", items[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newItemRepoMock(t)
	defer cleanup()

	repo := NewItemRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("ver-1", models.ItemTypeAttribute, "Customer_ID").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByName(context.Background(), "ver-1", models.ItemTypeAttribute, "Customer_ID")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepositoryUpdateTesterDecision(t *testing.T) {
	db, mock, cleanup := newItemRepoMock(t)
	defer cleanup()

	repo := NewItemRepository(db)
	notes := "verified against source"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE version_items SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.UpdateTesterDecision(context.Background(), UpdateDecisionParams{
		ID:        "item-1",
		Decision:  models.DecisionApprove,
		Notes:     &notes,
		DecidedBy: "tester-1",
		DecidedAt: time.Now().UTC(),
		Status:    models.ItemStatusApproved,
	})
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE version_items SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.UpdateTesterDecision(context.Background(), UpdateDecisionParams{
		ID:        "missing",
		Decision:  models.DecisionApprove,
		DecidedBy: "tester-1",
		DecidedAt: time.Now().UTC(),
		Status:    models.ItemStatusApproved,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
