package dto

// CreateVersionRequest opens a new draft for a workflow phase.
type CreateVersionRequest struct {
	PhaseID         string  `json:"phase_id" binding:"required"`
	ParentVersionID *string `json:"parent_version_id,omitempty"`
}

// RejectVersionRequest records the reviewer's rejection rationale.
type RejectVersionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// VersionQuery constrains version listing.
type VersionQuery struct {
	PhaseID string   `form:"phaseId"`
	Status  []string `form:"status"`
	Page    int      `form:"page"`
	Limit   int      `form:"limit"`
}
