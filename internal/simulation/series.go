package simulation

import (
	"fmt"

	"github.com/finance-coach/internal/models"
	"github.com/finance-coach/internal/types"
)

// Confidence holds the lower and upper band series
type Confidence struct {
	P10 []types.SeriesPoint `json:"p10"`
	P90 []types.SeriesPoint `json:"p90"`
}

// SeriesDate labels a projection year as January 1st of startYear+year
func SeriesDate(startYear, year int) string {
	return fmt.Sprintf("%04d-01-01", startYear+year)
}

// RunSeries charts the net worth of a single run
func RunSeries(run Run, startYear int) []types.SeriesPoint {
	points := make([]types.SeriesPoint, len(run.Timeline))
	for i, s := range run.Timeline {
		points[i] = types.SeriesPoint{Date: SeriesDate(startYear, s.Year), Value: s.NetWorth}
	}
	return points
}

// ConfidenceSeries charts the p10 and p90 bands of an aggregate timeline
func ConfidenceSeries(timeline []models.TimelinePoint, startYear int) Confidence {
	c := Confidence{
		P10: make([]types.SeriesPoint, len(timeline)),
		P90: make([]types.SeriesPoint, len(timeline)),
	}
	for i, p := range timeline {
		date := SeriesDate(startYear, p.Year)
		c.P10[i] = types.SeriesPoint{Date: date, Value: p.P10}
		c.P90[i] = types.SeriesPoint{Date: date, Value: p.P90}
	}
	return c
}
