package dto

import "github.com/synapsedt/synapsedt-api/internal/models"

// ExportRequest queues generation of a version decision report.
type ExportRequest struct {
	VersionID string              `json:"version_id" binding:"required"`
	ItemType  *models.ItemType    `json:"item_type,omitempty"`
	Format    models.ExportFormat `json:"format" binding:"required"`
}

// ExportJobResponse acknowledges a queued job.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse reports job progress and the signed result URL.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
