package models

import (
	"time"

	"github.com/finance-coach/internal/types"
)

// Transaction represents a single money movement belonging to a user.
// Date is stored as a calendar day (YYYY-MM-DD); positive amounts are income.
type Transaction struct {
	ID          string                  `json:"id" db:"id"`
	UserID      string                  `json:"userId" db:"user_id"`
	Date        string                  `json:"date" db:"date"`
	Amount      float64                 `json:"amount" db:"amount"`
	Description string                  `json:"description" db:"description"`
	Merchant    string                  `json:"merchant" db:"merchant"`
	Category    string                  `json:"category" db:"category"`
	Source      types.TransactionSource `json:"source" db:"source"`
	ImportJobID *string                 `json:"importJobId,omitempty" db:"import_job_id"`
	CreatedAt   time.Time               `json:"createdAt" db:"created_at"`
}
