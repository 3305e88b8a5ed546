package dto

import "github.com/synapsedt/synapsedt-api/internal/models"

// ClassificationPayload carries the optional risk classification of an item.
type ClassificationPayload struct {
	InfoSecurity *models.SecurityClassification `json:"information_security,omitempty"`
	RiskLevel    *models.RiskRating             `json:"risk_level,omitempty"`
	Criticality  *models.RiskRating             `json:"criticality,omitempty"`
}

// LLMMetadataPayload carries upstream LLM scoring attached to an item.
type LLMMetadataPayload struct {
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	Rationale       *string  `json:"rationale,omitempty"`
}

// CreateItemRequest adds a child item to a draft version.
type CreateItemRequest struct {
	ItemType       models.ItemType        `json:"item_type" binding:"required"`
	Name           string                 `json:"name" binding:"required"`
	Description    *string                `json:"description,omitempty"`
	DataType       *string                `json:"data_type,omitempty"`
	LineItemNumber *string                `json:"line_item_number,omitempty"`
	SourceRef      *string                `json:"source_ref,omitempty"`
	SampleCategory *string                `json:"sample_category,omitempty"`
	IsPrimary      bool                   `json:"is_primary"`
	IsMandatory    bool                   `json:"is_mandatory"`
	IsCDE          bool                   `json:"is_cde"`
	Classification *ClassificationPayload `json:"classification,omitempty"`
	LLMMetadata    *LLMMetadataPayload    `json:"llm_metadata,omitempty"`
}

// DecisionRequest records a single tester or report-owner decision.
type DecisionRequest struct {
	Decision models.Decision `json:"decision" binding:"required"`
	Notes    string          `json:"notes"`
}

// BulkDecisionRequest applies one decision across many items.
type BulkDecisionRequest struct {
	ItemIDs  []string        `json:"item_ids" binding:"required,min=1"`
	ItemType models.ItemType `json:"item_type" binding:"required"`
	Decision models.Decision `json:"decision" binding:"required"`
	Notes    string          `json:"notes"`
}

// BulkDecisionResult aggregates per-item outcomes of a bulk decision.
// One failed item never rolls back decisions already applied to others.
type BulkDecisionResult struct {
	TotalRequested int      `json:"total_requested"`
	Successful     int      `json:"successful"`
	Failed         int      `json:"failed"`
	Errors         []string `json:"errors"`
}
