package simulation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/finance-coach/internal/models"
)

// Result is the aggregate of one batch of runs
type Result struct {
	SuccessProbability float64
	Percentiles        models.Percentiles
	Timeline           []models.TimelinePoint
	Summary            Summary
}

// Summary holds descriptive statistics of final net worth
type Summary struct {
	Mean float64 `json:"mean"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Percentile returns sorted[floor(len*p)], clamped to the last element.
// An empty slice yields 0.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Median is the floor-indexed 50th percentile
func Median(sorted []float64) float64 {
	return Percentile(sorted, 0.5)
}

// SuccessProbability returns the percentage of finals at or above target.
// A nil target means no run succeeds.
func SuccessProbability(finals []float64, target *float64) float64 {
	if target == nil || len(finals) == 0 {
		return 0
	}
	hits := 0
	for _, v := range finals {
		if v >= *target {
			hits++
		}
	}
	return 100 * float64(hits) / float64(len(finals))
}

// Aggregate summarizes a batch of runs
func Aggregate(runs []Run, target *float64) Result {
	finals := make([]float64, len(runs))
	for i, r := range runs {
		finals[i] = r.FinalNetWorth()
	}
	sort.Float64s(finals)

	res := Result{
		SuccessProbability: SuccessProbability(finals, target),
		Percentiles: models.Percentiles{
			P10: Percentile(finals, 0.1),
			P50: Median(finals),
			P90: Percentile(finals, 0.9),
		},
		Timeline: crossSection(runs),
	}
	if len(finals) > 0 {
		res.Summary = Summary{
			Mean: stat.Mean(finals, nil),
			Min:  floats.Min(finals),
			Max:  floats.Max(finals),
		}
	}
	return res
}

// crossSection takes, for every year, the distribution of net worth across
// runs. Runs shorter than the first one contribute only the years they have.
func crossSection(runs []Run) []models.TimelinePoint {
	if len(runs) == 0 {
		return []models.TimelinePoint{}
	}

	years := len(runs[0].Timeline)
	points := make([]models.TimelinePoint, 0, years)
	column := make([]float64, 0, len(runs))
	for y := 0; y < years; y++ {
		column = column[:0]
		for _, r := range runs {
			if y < len(r.Timeline) {
				column = append(column, r.Timeline[y].NetWorth)
			}
		}
		sort.Float64s(column)
		points = append(points, models.TimelinePoint{
			Year:   runs[0].Timeline[y].Year,
			Median: Median(column),
			P10:    Percentile(column, 0.1),
			P90:    Percentile(column, 0.9),
		})
	}
	return points
}
