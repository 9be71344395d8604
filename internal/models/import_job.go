package models

import (
	"time"

	"github.com/finance-coach/internal/types"
)

// ImportJob tracks the progress of one CSV upload
type ImportJob struct {
	ID             string             `json:"id" db:"id"`
	UserID         string             `json:"userId" db:"user_id"`
	Status         types.ImportStatus `json:"status" db:"status"` // queued, processing, completed
	BankFormat     *types.BankFormat  `json:"bankFormat,omitempty" db:"bank_format"`
	TotalRows      int                `json:"totalRows" db:"total_rows"`
	ProcessedRows  int                `json:"processedRows" db:"processed_rows"`
	SuccessfulRows int                `json:"successfulRows" db:"successful_rows"`
	FailedRows     int                `json:"failedRows" db:"failed_rows"`
	DuplicateRows  int                `json:"duplicateRows" db:"duplicate_rows"`
	ErrorLog       []types.RowError   `json:"errorLog" db:"error_log"`
	StartedAt      *time.Time         `json:"startedAt,omitempty" db:"started_at"`
	CompletedAt    *time.Time         `json:"completedAt,omitempty" db:"completed_at"`
	CreatedAt      time.Time          `json:"createdAt" db:"created_at"`
}

// ImportProgress is the incremental counter update written after each chunk
type ImportProgress struct {
	ProcessedRows  int
	SuccessfulRows int
	FailedRows     int
	DuplicateRows  int
}
