package models

import "time"

// ItemType enumerates the kinds of entities a version can own.
type ItemType string

const (
	ItemTypeDataSource ItemType = "DATA_SOURCE"
	ItemTypeAttribute  ItemType = "ATTRIBUTE"
	ItemTypePDEMapping ItemType = "PDE_MAPPING"
	ItemTypeSample     ItemType = "SAMPLE"
)

// ItemTypes lists all item types in display order.
var ItemTypes = []ItemType{ItemTypeDataSource, ItemTypeAttribute, ItemTypePDEMapping, ItemTypeSample}

// Decision is a human or system verdict on a version item.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// ItemStatus mirrors the tester decision once one is recorded.
type ItemStatus string

const (
	ItemStatusPending  ItemStatus = "PENDING"
	ItemStatusApproved ItemStatus = "APPROVED"
	ItemStatusRejected ItemStatus = "REJECTED"
)

// SecurityClassification grades information sensitivity.
type SecurityClassification string

const (
	SecurityPublic       SecurityClassification = "public"
	SecurityInternal     SecurityClassification = "internal"
	SecurityConfidential SecurityClassification = "confidential"
	SecurityRestricted   SecurityClassification = "restricted"
)

// RiskRating grades risk level and criticality.
type RiskRating string

const (
	RiskLow    RiskRating = "low"
	RiskMedium RiskRating = "medium"
	RiskHigh   RiskRating = "high"
)

// VersionItem is an entity owned by exactly one version: a data source,
// report attribute, PDE mapping, or selected sample depending on ItemType.
type VersionItem struct {
	ID          string   `db:"id" json:"id"`
	VersionID   string   `db:"version_id" json:"version_id"`
	PhaseID     string   `db:"phase_id" json:"phase_id"`
	ItemType    ItemType `db:"item_type" json:"item_type"`
	Name        string   `db:"name" json:"name"`
	Description *string  `db:"description" json:"description,omitempty"`

	// Type-specific content.
	DataType       *string `db:"data_type" json:"data_type,omitempty"`
	LineItemNumber *string `db:"line_item_number" json:"line_item_number,omitempty"`
	SourceRef      *string `db:"source_ref" json:"source_ref,omitempty"`
	SampleCategory *string `db:"sample_category" json:"sample_category,omitempty"`

	IsPrimary   bool `db:"is_primary" json:"is_primary"`
	IsMandatory bool `db:"is_mandatory" json:"is_mandatory"`
	IsCDE       bool `db:"is_cde" json:"is_cde"`

	InfoSecurity *SecurityClassification `db:"info_security" json:"info_security,omitempty"`
	RiskLevel    *RiskRating             `db:"risk_level" json:"risk_level,omitempty"`
	Criticality  *RiskRating             `db:"criticality" json:"criticality,omitempty"`

	LLMConfidence *float64 `db:"llm_confidence" json:"llm_confidence,omitempty"`
	LLMRationale  *string  `db:"llm_rationale" json:"llm_rationale,omitempty"`

	TesterDecision  *Decision  `db:"tester_decision" json:"tester_decision,omitempty"`
	TesterNotes     *string    `db:"tester_notes" json:"tester_notes,omitempty"`
	TesterDecidedBy *string    `db:"tester_decided_by" json:"tester_decided_by,omitempty"`
	TesterDecidedAt *time.Time `db:"tester_decided_at" json:"tester_decided_at,omitempty"`

	OwnerDecision  *Decision  `db:"owner_decision" json:"owner_decision,omitempty"`
	OwnerNotes     *string    `db:"owner_notes" json:"owner_notes,omitempty"`
	OwnerDecidedBy *string    `db:"owner_decided_by" json:"owner_decided_by,omitempty"`
	OwnerDecidedAt *time.Time `db:"owner_decided_at" json:"owner_decided_at,omitempty"`

	Status       ItemStatus `db:"status" json:"status"`
	AutoApproved bool       `db:"auto_approved" json:"auto_approved"`

	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Decided reports whether a tester decision has been recorded.
func (i *VersionItem) Decided() bool {
	return i.TesterDecision != nil
}

// ItemFilter constrains item listing queries.
type ItemFilter struct {
	VersionID string
	ItemType  ItemType
	Status    ItemStatus
}
