package models

import "time"

// VersionStatus captures the draft/approval cycle of a phase deliverable.
type VersionStatus string

const (
	VersionStatusDraft      VersionStatus = "DRAFT"
	VersionStatusPending    VersionStatus = "PENDING_APPROVAL"
	VersionStatusApproved   VersionStatus = "APPROVED"
	VersionStatusRejected   VersionStatus = "REJECTED"
	VersionStatusSuperseded VersionStatus = "SUPERSEDED"
)

// Editable reports whether new items may be added under this status.
func (s VersionStatus) Editable() bool {
	return s == VersionStatusDraft
}

// AcceptsDecisions reports whether item decisions may still be recorded.
func (s VersionStatus) AcceptsDecisions() bool {
	return s == VersionStatusDraft || s == VersionStatusPending
}

// VersionSummary holds denormalized counters recomputed from child items.
// Never hand-edited; RefreshSummary overwrites the whole block.
type VersionSummary struct {
	TotalDataSources    int `db:"total_data_sources" json:"total_data_sources"`
	ApprovedDataSources int `db:"approved_data_sources" json:"approved_data_sources"`
	TotalAttributes     int `db:"total_attributes" json:"total_attributes"`
	ApprovedAttributes  int `db:"approved_attributes" json:"approved_attributes"`
	TotalMappings       int `db:"total_mappings" json:"total_mappings"`
	ApprovedMappings    int `db:"approved_mappings" json:"approved_mappings"`
	TotalSamples        int `db:"total_samples" json:"total_samples"`
	ApprovedSamples     int `db:"approved_samples" json:"approved_samples"`
	PrimaryKeyCount     int `db:"primary_key_count" json:"primary_key_count"`
	MandatoryCount      int `db:"mandatory_count" json:"mandatory_count"`
	CDECount            int `db:"cde_count" json:"cde_count"`
}

// TotalItems sums item counts across all types.
func (s VersionSummary) TotalItems() int {
	return s.TotalDataSources + s.TotalAttributes + s.TotalMappings + s.TotalSamples
}

// ApprovedItems sums approved counts across all types.
func (s VersionSummary) ApprovedItems() int {
	return s.ApprovedDataSources + s.ApprovedAttributes + s.ApprovedMappings + s.ApprovedSamples
}

// Version is a draft/approval-cycle snapshot of a phase's deliverable set.
type Version struct {
	ID              string        `db:"id" json:"id"`
	PhaseID         string        `db:"phase_id" json:"phase_id"`
	VersionNumber   int           `db:"version_number" json:"version_number"`
	Status          VersionStatus `db:"status" json:"status"`
	ParentVersionID *string       `db:"parent_version_id" json:"parent_version_id,omitempty"`
	SubmittedBy     *string       `db:"submitted_by" json:"submitted_by,omitempty"`
	SubmittedAt     *time.Time    `db:"submitted_at" json:"submitted_at,omitempty"`
	ApprovedBy      *string       `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	VersionSummary
	CreatedBy       string    `db:"created_by" json:"created_by"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// VersionFilter constrains version listing queries.
type VersionFilter struct {
	PhaseID  string
	Status   []VersionStatus
	Page     int
	PageSize int
}
