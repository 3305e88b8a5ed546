package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/synapsedt/synapsedt-api/internal/dto"
	"github.com/synapsedt/synapsedt-api/internal/models"
	appErrors "github.com/synapsedt/synapsedt-api/pkg/errors"
	"github.com/synapsedt/synapsedt-api/pkg/jobs"
	"github.com/synapsedt/synapsedt-api/pkg/storage"
)

type exportJobRepoStub struct {
	jobs map[string]*models.ExportJob
	seq  int
}

func newExportJobRepoStub() *exportJobRepoStub {
	return &exportJobRepoStub{jobs: make(map[string]*models.ExportJob)}
}

func (s *exportJobRepoStub) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		s.seq++
		job.ID = fmt.Sprintf("job-%d", s.seq)
	}
	copy := *job
	s.jobs[job.ID] = &copy
	return nil
}

func (s *exportJobRepoStub) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	if job, ok := s.jobs[id]; ok {
		copy := *job
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *exportJobRepoStub) UpdateProgress(ctx context.Context, id string, status models.ExportStatus, progress int) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = status
	job.Progress = progress
	return nil
}

func (s *exportJobRepoStub) MarkFinished(ctx context.Context, id, resultURL string) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = models.ExportStatusFinished
	job.Progress = 100
	job.ResultURL = &resultURL
	return nil
}

func (s *exportJobRepoStub) MarkFailed(ctx context.Context, id, message string) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = models.ExportStatusFailed
	job.ErrorMessage = &message
	return nil
}

func (s *exportJobRepoStub) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type queueStub struct {
	enqueued []jobs.Job
	err      error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, job)
	return nil
}

type storageStub struct {
	files map[string][]byte
}

func newStorageStub() *storageStub {
	return &storageStub{files: make(map[string][]byte)}
}

func (s *storageStub) Save(filename string, data []byte) (string, error) {
	s.files[filename] = data
	return filename, nil
}

func (s *storageStub) Path(filename string) string {
	return "/exports/" + filename
}

func (s *storageStub) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	return nil, nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *exportJobRepoStub, *queueStub, *storageStub) {
	t.Helper()
	repo := newExportJobRepoStub()
	versions := newVersionRepoStub()
	versions.versions["ver-1"] = &models.Version{ID: "ver-1", PhaseID: "phase-1", VersionNumber: 2, Status: models.VersionStatusApproved}
	items := &itemListerStub{items: map[string][]models.VersionItem{
		"ver-1": {
			decidedItem("ver-1", models.ItemTypeAttribute, models.ItemStatusApproved),
			decidedItem("ver-1", models.ItemTypeSample, models.ItemStatusRejected),
		},
	}}
	queue := &queueStub{}
	store := newStorageStub()
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(repo, versions, items, queue, store, signer, &auditStub{}, nil)
	return svc, repo, queue, store
}

func TestExportServiceRequestQueuesJob(t *testing.T) {
	svc, repo, queue, _ := newExportServiceForTest(t)

	resp, err := svc.Request(context.Background(), dto.ExportRequest{
		VersionID: "ver-1",
		Format:    models.ExportFormatCSV,
	}, "tester-1")
	require.NoError(t, err)
	require.Equal(t, models.ExportStatusQueued, resp.Status)
	require.Len(t, queue.enqueued, 1)
	require.Equal(t, JobTypeVersionExport, queue.enqueued[0].Type)
	require.Contains(t, repo.jobs, resp.ID)
}

func TestExportServiceRequestUnknownVersion(t *testing.T) {
	svc, _, _, _ := newExportServiceForTest(t)

	_, err := svc.Request(context.Background(), dto.ExportRequest{
		VersionID: "missing",
		Format:    models.ExportFormatCSV,
	}, "tester-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRequestInvalidFormat(t *testing.T) {
	svc, _, _, _ := newExportServiceForTest(t)

	_, err := svc.Request(context.Background(), dto.ExportRequest{
		VersionID: "ver-1",
		Format:    models.ExportFormat("xlsx"),
	}, "tester-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceProcessRendersCSV(t *testing.T) {
	svc, repo, queue, store := newExportServiceForTest(t)

	resp, err := svc.Request(context.Background(), dto.ExportRequest{
		VersionID: "ver-1",
		Format:    models.ExportFormatCSV,
	}, "tester-1")
	require.NoError(t, err)

	err = svc.Process(context.Background(), queue.enqueued[0])
	require.NoError(t, err)

	job := repo.jobs[resp.ID]
	require.Equal(t, models.ExportStatusFinished, job.Status)
	require.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)

	require.Len(t, store.files, 1)
	for name, data := range store.files {
		require.True(t, strings.HasSuffix(name, ".csv"))
		content := string(data)
		require.Contains(t, content, "Tester Decision")
		require.Contains(t, content, string(models.ItemTypeAttribute))
	}

	// The signed URL round-trips back to the stored file.
	path, err := svc.Resolve(*job.ResultURL)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(path, "/exports/"))
}

func TestExportServiceProcessFailureMarksJob(t *testing.T) {
	svc, repo, queue, _ := newExportServiceForTest(t)

	resp, err := svc.Request(context.Background(), dto.ExportRequest{
		VersionID: "ver-1",
		Format:    models.ExportFormatCSV,
	}, "tester-1")
	require.NoError(t, err)

	// Point the stored job at a version that no longer exists so rendering fails.
	repo.jobs[resp.ID].Params.VersionID = "missing"

	err = svc.Process(context.Background(), queue.enqueued[0])
	require.Error(t, err)

	job := repo.jobs[resp.ID]
	require.Equal(t, models.ExportStatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
}

func TestExportServiceResolveRejectsTamperedToken(t *testing.T) {
	svc, _, _, _ := newExportServiceForTest(t)

	_, err := svc.Resolve("not-a-valid-token")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
