package models

import (
	"time"

	"github.com/finance-coach/internal/types"
)

// Percentiles holds the floor-indexed percentiles of final net worth
type Percentiles struct {
	P10 float64 `json:"p10"`
	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
}

// TimelinePoint is the cross-sectional distribution of net worth for one projection year
type TimelinePoint struct {
	Year   int     `json:"year"`
	Median float64 `json:"median"`
	P10    float64 `json:"p10"`
	P90    float64 `json:"p90"`
}

// TwinScenario is the persisted aggregate of one Monte Carlo batch.
// Individual runs are never stored.
type TwinScenario struct {
	ID                 string                 `json:"id" db:"id"`
	UserID             string                 `json:"userId" db:"user_id"`
	ScenarioType       types.ScenarioType     `json:"scenarioType" db:"scenario_type"`
	Parameters         map[string]interface{} `json:"parameters" db:"parameters"`
	SuccessProbability float64                `json:"successProbability" db:"success_probability"`
	Percentiles        Percentiles            `json:"percentiles" db:"percentiles"`
	Timeline           []TimelinePoint        `json:"timeline" db:"timeline"`
	Simulations        int                    `json:"simulations" db:"simulations"`
	CreatedAt          time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time              `json:"updatedAt" db:"updated_at"`
}
