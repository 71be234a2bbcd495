package models

// ExtractorState is the phase of the extraction currently running
type ExtractorState string

const (
	StateIdle     ExtractorState = "idle"
	StateScraping ExtractorState = "scraping"
	StateQuerying ExtractorState = "querying"
	StateMerging  ExtractorState = "merging"
)

// Outcome summarizes how an extraction ended
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
	OutcomeNoData  Outcome = "no_data"
)

// Strategies reported on a result
const (
	StrategyListView = "list_view"
	StrategyFormView = "form_view"
	StrategyAPI      = "api"
)

// TableFailure records one table that could not be queried
type TableFailure struct {
	Table   string `json:"table"`
	Error   string `json:"error"`
	Timeout bool   `json:"timeout"`
	Status  int    `json:"status,omitempty"`
}

// ExtractionResult is the operator-visible outcome of an extraction
type ExtractionResult struct {
	Outcome  Outcome        `json:"outcome"`
	Strategy string         `json:"strategy,omitempty"`
	Found    int            `json:"found"`
	Added    int            `json:"added"`
	Total    int            `json:"total"`
	Failures []TableFailure `json:"failures,omitempty"`
	Message  string         `json:"message"`
}

// ExtractorStatus is a snapshot of the extractor for status surfaces
type ExtractorStatus struct {
	State      ExtractorState    `json:"state"`
	Total      int               `json:"total"`
	TableTypes []string          `json:"table_types"`
	LastUpdate string            `json:"last_update,omitempty"`
	LastResult *ExtractionResult `json:"last_result,omitempty"`
}

// ExportOptions adjusts a single export
type ExportOptions struct {
	// Summary appends a metrics sheet
	Summary bool `json:"summary"`
	// Filters are applied to the collected tickets before writing
	Filters []FilterClause `json:"filters,omitempty"`
}

// ExportResult describes a written workbook
type ExportResult struct {
	Path    string `json:"path"`
	Tickets int    `json:"tickets"`
	Sheets  int    `json:"sheets"`
}
