package dto

import "github.com/synapsedt/synapsedt-api/internal/models"

// ItemTypeBreakdown summarises decision progress for one item type.
type ItemTypeBreakdown struct {
	ItemType models.ItemType `json:"item_type"`
	Total    int             `json:"total"`
	Approved int             `json:"approved"`
	Rejected int             `json:"rejected"`
	Pending  int             `json:"pending"`
}

// VersionDashboardResponse exposes derived statistics for a version.
type VersionDashboardResponse struct {
	Version                *models.Version     `json:"version"`
	ItemsByType            []ItemTypeBreakdown `json:"items_by_type"`
	TotalItems             int                 `json:"total_items"`
	DecidedItems           int                 `json:"decided_items"`
	PendingDecisions       int                 `json:"pending_decisions"`
	CompletionPercentage   float64             `json:"completion_percentage"`
	CanSubmit              bool                `json:"can_submit"`
	SubmissionRequirements []string            `json:"submission_requirements"`
}
