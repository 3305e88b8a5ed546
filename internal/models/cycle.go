package models

import "time"

// CycleStatus captures test cycle lifecycle states.
type CycleStatus string

const (
	CycleStatusActive CycleStatus = "ACTIVE"
	CycleStatusClosed CycleStatus = "CLOSED"
)

// TestCycle groups regulatory reports under a single testing window.
type TestCycle struct {
	ID        string      `db:"id" json:"id"`
	Name      string      `db:"name" json:"name"`
	Quarter   int         `db:"quarter" json:"quarter"`
	Year      int         `db:"year" json:"year"`
	Status    CycleStatus `db:"status" json:"status"`
	StartDate time.Time   `db:"start_date" json:"start_date"`
	EndDate   *time.Time  `db:"end_date" json:"end_date,omitempty"`
	CreatedBy string      `db:"created_by" json:"created_by"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt time.Time   `db:"updated_at" json:"updated_at"`
}

// CycleReport is a regulatory report under test within a cycle.
type CycleReport struct {
	ID            string    `db:"id" json:"id"`
	CycleID       string    `db:"cycle_id" json:"cycle_id"`
	ReportName    string    `db:"report_name" json:"report_name"`
	RegulatoryRef string    `db:"regulatory_ref" json:"regulatory_ref"`
	LOB           string    `db:"lob" json:"lob"`
	TesterID      *string   `db:"tester_id" json:"tester_id,omitempty"`
	OwnerID       *string   `db:"owner_id" json:"owner_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// PhaseName enumerates the ordered workflow phases of a report test.
type PhaseName string

const (
	PhasePlanning       PhaseName = "PLANNING"
	PhaseScoping        PhaseName = "SCOPING"
	PhaseSampleSelect   PhaseName = "SAMPLE_SELECTION"
	PhaseDataProviderID PhaseName = "DATA_PROVIDER_ID"
	PhaseRFI            PhaseName = "REQUEST_FOR_INFO"
	PhaseTesting        PhaseName = "TESTING"
	PhaseObservations   PhaseName = "OBSERVATIONS"
	PhaseFinalization   PhaseName = "FINALIZATION"
)

// PhaseOrder defines the canonical progression of workflow phases.
var PhaseOrder = []PhaseName{
	PhasePlanning,
	PhaseScoping,
	PhaseSampleSelect,
	PhaseDataProviderID,
	PhaseRFI,
	PhaseTesting,
	PhaseObservations,
	PhaseFinalization,
}

// PhaseStatus captures the progress of a single workflow phase.
type PhaseStatus string

const (
	PhaseStatusNotStarted PhaseStatus = "NOT_STARTED"
	PhaseStatusInProgress PhaseStatus = "IN_PROGRESS"
	PhaseStatusComplete   PhaseStatus = "COMPLETE"
)

// WorkflowPhase is one step of a report's testing workflow. Its ID is the
// scope key that version drafts and approvals hang off.
type WorkflowPhase struct {
	ID          string      `db:"id" json:"id"`
	ReportID    string      `db:"report_id" json:"report_id"`
	Name        PhaseName   `db:"name" json:"name"`
	Sequence    int         `db:"sequence" json:"sequence"`
	Status      PhaseStatus `db:"status" json:"status"`
	StartedAt   *time.Time  `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// CycleFilter constrains cycle listing queries.
type CycleFilter struct {
	Status   CycleStatus
	Year     int
	Quarter  int
	Page     int
	PageSize int
}
