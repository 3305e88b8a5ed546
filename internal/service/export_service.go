package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/synapsedt/synapsedt-api/internal/dto"
	"github.com/synapsedt/synapsedt-api/internal/models"
	appErrors "github.com/synapsedt/synapsedt-api/pkg/errors"
	"github.com/synapsedt/synapsedt-api/pkg/export"
	"github.com/synapsedt/synapsedt-api/pkg/jobs"
	"github.com/synapsedt/synapsedt-api/pkg/storage"
)

// JobTypeVersionExport tags queued decision-report jobs.
const JobTypeVersionExport = "version-export"

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	UpdateProgress(ctx context.Context, id string, status models.ExportStatus, progress int) error
	MarkFinished(ctx context.Context, id, resultURL string) error
	MarkFailed(ctx context.Context, id, message string) error
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Path(filename string) string
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportService generates version decision reports asynchronously: a request
// queues a job, workers render CSV or PDF to local storage, and the result is
// served through an HMAC signed URL.
type ExportService struct {
	repo     exportJobStore
	versions versionFinder
	items    versionItemLister
	queue    jobEnqueuer
	store    exportStorage
	signer   *storage.SignedURLSigner
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	audit    auditLogger
	logger   *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(repo exportJobStore, versions versionFinder, items versionItemLister, queue jobEnqueuer, store exportStorage, signer *storage.SignedURLSigner, audit auditLogger, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		repo:     repo,
		versions: versions,
		items:    items,
		queue:    queue,
		store:    store,
		signer:   signer,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		audit:    audit,
		logger:   logger,
	}
}

// Request validates and queues a new export job.
func (s *ExportService) Request(ctx context.Context, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error) {
	if req.Format != models.ExportFormatCSV && req.Format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	if _, err := s.versions.GetByID(ctx, req.VersionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}

	job := &models.ExportJob{
		Params: models.ExportJobParams{
			VersionID: req.VersionID,
			ItemType:  req.ItemType,
			Format:    req.Format,
		},
		Status:    models.ExportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: JobTypeVersionExport, Payload: job.ID}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "failed to enqueue job"); markErr != nil {
			s.logger.Warn("failed to mark unqueued job", zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export job")
	}

	s.emitAudit(ctx, actorID, job.ID)
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// Status reports job progress and the signed result URL when finished.
func (s *ExportService) Status(ctx context.Context, id string) (*dto.ExportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return &dto.ExportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
	}, nil
}

// Process is the queue handler: it renders the requested report and stores
// the result. Transient failures bubble up so the queue can retry.
func (s *ExportService) Process(ctx context.Context, queued jobs.Job) error {
	jobID, ok := queued.Payload.(string)
	if !ok || jobID == "" {
		return fmt.Errorf("export job payload must be a job id")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", jobID, err)
	}

	if err := s.repo.UpdateProgress(ctx, jobID, models.ExportStatusProcessing, 10); err != nil {
		return fmt.Errorf("mark export job processing: %w", err)
	}

	if err := s.render(ctx, job); err != nil {
		if markErr := s.repo.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			s.logger.Warn("failed to mark export job failed", zap.Error(markErr))
		}
		return err
	}
	return nil
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) error {
	version, err := s.versions.GetByID(ctx, job.Params.VersionID)
	if err != nil {
		return fmt.Errorf("load version: %w", err)
	}
	filter := models.ItemFilter{VersionID: job.Params.VersionID}
	if job.Params.ItemType != nil {
		filter.ItemType = *job.Params.ItemType
	}
	items, err := s.items.ListByVersion(ctx, filter)
	if err != nil {
		return fmt.Errorf("load version items: %w", err)
	}

	dataset := buildDecisionDataset(items)
	var payload []byte
	ext := "csv"
	switch job.Params.Format {
	case models.ExportFormatPDF:
		ext = "pdf"
		title := fmt.Sprintf("Version %d Decision Report", version.VersionNumber)
		payload, err = s.pdf.Render(dataset, title)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return fmt.Errorf("render export: %w", err)
	}

	filename := fmt.Sprintf("%s-v%d-%s.%s", job.ID, version.VersionNumber, time.Now().UTC().Format("20060102T150405"), ext)
	relPath, err := s.store.Save(filename, payload)
	if err != nil {
		return fmt.Errorf("store export: %w", err)
	}

	url, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return fmt.Errorf("sign export url: %w", err)
	}
	if err := s.repo.MarkFinished(ctx, job.ID, url); err != nil {
		return fmt.Errorf("mark export job finished: %w", err)
	}
	return nil
}

// Resolve validates a signed download token and returns the stored file path.
func (s *ExportService) Resolve(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	return s.store.Path(relPath), nil
}

// Cleanup purges stale job rows and result files.
func (s *ExportService) Cleanup(ctx context.Context, retention time.Duration) {
	removed, err := s.store.CleanupOlderThan(retention)
	if err != nil {
		s.logger.Warn("export file cleanup failed", zap.Error(err))
	} else if len(removed) > 0 {
		s.logger.Info("export files purged", zap.Int("count", len(removed)))
	}
	purged, err := s.repo.DeleteFinishedBefore(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		s.logger.Warn("export job cleanup failed", zap.Error(err))
	} else if purged > 0 {
		s.logger.Info("export jobs purged", zap.Int64("count", purged))
	}
}

func buildDecisionDataset(items []models.VersionItem) export.Dataset {
	headers := []string{"Type", "Name", "Status", "Tester Decision", "Tester Notes", "Owner Decision", "Auto Approved", "Risk Score"}
	rows := make([]map[string]string, 0, len(items))
	for i := range items {
		item := &items[i]
		row := map[string]string{
			"Type":          string(item.ItemType),
			"Name":          item.Name,
			"Status":        string(item.Status),
			"Auto Approved": strconv.FormatBool(item.AutoApproved),
			"Risk Score":    strconv.Itoa(CalculateRiskScore(item.InfoSecurity, item.RiskLevel, item.Criticality)),
		}
		if item.TesterDecision != nil {
			row["Tester Decision"] = string(*item.TesterDecision)
		}
		if item.TesterNotes != nil {
			row["Tester Notes"] = *item.TesterNotes
		}
		if item.OwnerDecision != nil {
			row["Owner Decision"] = string(*item.OwnerDecision)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func (s *ExportService) emitAudit(ctx context.Context, actorID, jobID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionExportCreate,
		Resource:   "export_job",
		ResourceID: &jobID,
		IPAddress:  "system",
		UserAgent:  "export-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
