package dto

// CreateCycleRequest opens a new test cycle.
type CreateCycleRequest struct {
	Name      string `json:"name" binding:"required"`
	Quarter   int    `json:"quarter" binding:"required,min=1,max=4"`
	Year      int    `json:"year" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
}

// CreateReportRequest attaches a regulatory report to a cycle.
type CreateReportRequest struct {
	ReportName    string  `json:"report_name" binding:"required"`
	RegulatoryRef string  `json:"regulatory_ref" binding:"required"`
	LOB           string  `json:"lob" binding:"required"`
	TesterID      *string `json:"tester_id,omitempty"`
	OwnerID       *string `json:"owner_id,omitempty"`
}

// AssignReportRequest updates tester/owner assignment on a report.
type AssignReportRequest struct {
	TesterID *string `json:"tester_id,omitempty"`
	OwnerID  *string `json:"owner_id,omitempty"`
}
