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

func newVersionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func versionRows(id, phaseID string, number int, status models.VersionStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "phase_id", "version_number", "status", "parent_version_id",
		"submitted_by", "submitted_at", "approved_by", "approved_at", "rejection_reason",
		"total_data_sources", "approved_data_sources", "total_attributes", "approved_attributes",
		"total_mappings", "approved_mappings", "total_samples", "approved_samples",
		"primary_key_count", "mandatory_count", "cde_count",
		"created_by", "created_at", "updated_at",
	}).AddRow(id, phaseID, number, status, nil,
		nil, nil, nil, nil, nil,
		0, 0, 0, 0,
		0, 0, 0, 0,
		0, 0, 0,
		"user-1", time.Now(), time.Now())
}

func TestVersionRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newVersionRepoMock(t)
	defer cleanup()

	repo := NewVersionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO versions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	version := &models.Version{
		PhaseID:       "phase-1",
		VersionNumber: 1,
		CreatedBy:     "user-1",
	}
	require.NoError(t, repo.Create(context.Background(), version))
	require.NotEmpty(t, version.ID)
	require.Equal(t, models.VersionStatusDraft, version.Status)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, phase_id, version_number")).
		WithArgs(version.ID).
		WillReturnRows(versionRows(version.ID, "phase-1", 1, models.VersionStatusDraft))

	found, err := repo.GetByID(context.Background(), version.ID)
	require.NoError(t, err)
	require.Equal(t, version.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionRepositoryMaxVersionNumber(t *testing.T) {
	db, mock, cleanup := newVersionRepoMock(t)
	defer cleanup()

	repo := NewVersionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version_number), 0)")).
		WithArgs("phase-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3))

	max, err := repo.MaxVersionNumber(context.Background(), "phase-1")
	require.NoError(t, err)
	require.Equal(t, 3, max)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionRepositoryGetDraftByPhaseNotFound(t *testing.T) {
	db, mock, cleanup := newVersionRepoMock(t)
	defer cleanup()

	repo := NewVersionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, phase_id, version_number")).
		WithArgs("phase-1", models.VersionStatusDraft).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetDraftByPhase(context.Background(), "phase-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newVersionRepoMock(t)
	defer cleanup()

	repo := NewVersionRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, phase_id, version_number")).
		WithArgs("phase-1", models.VersionStatusApproved, models.VersionStatusSuperseded).
		WillReturnRows(versionRows("ver-1", "phase-1", 2, models.VersionStatusApproved))

	list, err := repo.List(context.Background(), models.VersionFilter{
		PhaseID: "phase-1",
		Status:  []models.VersionStatus{models.VersionStatusApproved, models.VersionStatusSuperseded},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "ver-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionRepositoryUpdateStatusGuard(t *testing.T) {
	db, mock, cleanup := newVersionRepoMock(t)
	defer cleanup()

	repo := NewVersionRepository(db)
	submitter := "user-1"
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE versions SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	err := repo.UpdateStatus(context.Background(), UpdateVersionStatusParams{
		ID:             "ver-1",
		ExpectedStatus: models.VersionStatusDraft,
		Status:         models.VersionStatusPending,
		SubmittedBy:    &submitter,
		SubmittedAt:    &now,
	})
	require.NoError(t, err)

	// Row already transitioned elsewhere: guarded update touches nothing.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE versions SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	err = repo.UpdateStatus(context.Background(), UpdateVersionStatusParams{
		ID:             "ver-1",
		ExpectedStatus: models.VersionStatusDraft,
		Status:         models.VersionStatusPending,
		SubmittedBy:    &submitter,
		SubmittedAt:    &now,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionRepositoryUpdateSummary(t *testing.T) {
	db, mock, cleanup := newVersionRepoMock(t)
	defer cleanup()

	repo := NewVersionRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE versions SET")).WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateSummary(context.Background(), "ver-1", models.VersionSummary{
		TotalAttributes:    4,
		ApprovedAttributes: 2,
		CDECount:           1,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
