// Package types provides common type definitions for the finance coach services.
package types

// ScenarioType represents the life event a projection is run for
type ScenarioType string

const (
	// ScenarioBaseline represents a projection with no step changes
	ScenarioBaseline ScenarioType = "baseline"
	// ScenarioCareerChange replaces income at a configured year
	ScenarioCareerChange ScenarioType = "career_change"
	// ScenarioBuyHome debits a down payment and adds a mortgage at a configured year
	ScenarioBuyHome ScenarioType = "buy_home"
	// ScenarioCustom uses caller-supplied growth rates
	ScenarioCustom ScenarioType = "custom"
)

// Valid reports whether the scenario type is one of the known types
func (s ScenarioType) Valid() bool {
	switch s {
	case ScenarioBaseline, ScenarioCareerChange, ScenarioBuyHome, ScenarioCustom:
		return true
	default:
		return false
	}
}

// ImportStatus represents the lifecycle state of a CSV import job
type ImportStatus string

const (
	// ImportStatusQueued represents a job created but not yet started
	ImportStatusQueued ImportStatus = "queued"
	// ImportStatusProcessing represents a job whose rows are being inserted
	ImportStatusProcessing ImportStatus = "processing"
	// ImportStatusCompleted represents a job that has processed every row
	ImportStatusCompleted ImportStatus = "completed"
)

// BankFormat identifies the column layout of a bank CSV export
type BankFormat string

const (
	BankChase      BankFormat = "chase"
	BankOfAmerica  BankFormat = "bofa"
	BankWellsFargo BankFormat = "wellsfargo"
	BankCapitalOne BankFormat = "capitalone"
	BankGeneric    BankFormat = "generic"
	// BankCustom is reported when the caller supplied an explicit column mapping
	BankCustom BankFormat = "custom"
)

// ChunkFailurePolicy decides what an import does when a batch insert fails
type ChunkFailurePolicy string

const (
	// ChunkPolicyBestEffort records the failed row range and keeps inserting later chunks
	ChunkPolicyBestEffort ChunkFailurePolicy = "best_effort"
	// ChunkPolicyAbort records the failed range and skips every remaining chunk
	ChunkPolicyAbort ChunkFailurePolicy = "abort"
)

// ParseChunkFailurePolicy parses a policy name, defaulting to best effort
func ParseChunkFailurePolicy(s string) ChunkFailurePolicy {
	if ChunkFailurePolicy(s) == ChunkPolicyAbort {
		return ChunkPolicyAbort
	}
	return ChunkPolicyBestEffort
}

// TransactionSource records how a transaction entered the system
type TransactionSource string

const (
	SourceManual    TransactionSource = "manual"
	SourceCSVImport TransactionSource = "csv_import"
	SourceLinked    TransactionSource = "linked_account"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// SeriesPoint is one charted value of a projection series
type SeriesPoint struct {
	Date  string  `json:"date"` // YYYY-01-01
	Value float64 `json:"value"`
}

// RowError describes a CSV row that could not be imported
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}
