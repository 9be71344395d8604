package simulation

import (
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runsWithFinals(finals ...float64) []Run {
	runs := make([]Run, len(finals))
	for i, v := range finals {
		runs[i] = Run{Timeline: []Snapshot{{Year: 0, NetWorth: 0}, {Year: 1, NetWorth: v}}}
	}
	return runs
}

func TestPercentile_FloorIndexed(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.Equal(t, 2.0, Percentile(sorted, 0.1))
	assert.Equal(t, 6.0, Median(sorted))
	assert.Equal(t, 10.0, Percentile(sorted, 0.9))
	assert.Equal(t, 10.0, Percentile(sorted, 1.0))
}

func TestPercentile_EmptyAndSingle(t *testing.T) {
	assert.Equal(t, 0.0, Percentile(nil, 0.5))
	assert.Equal(t, 0.0, Median([]float64{}))
	assert.Equal(t, 42.0, Percentile([]float64{42}, 0.1))
	assert.Equal(t, 42.0, Percentile([]float64{42}, 0.9))
}

func TestSuccessProbability(t *testing.T) {
	finals := []float64{10, 20, 30, 40}

	assert.Equal(t, 50.0, SuccessProbability(finals, f64(30)))
	assert.Equal(t, 100.0, SuccessProbability(finals, f64(-1)))
	assert.Equal(t, 0.0, SuccessProbability(finals, nil))
	assert.Equal(t, 0.0, SuccessProbability(nil, f64(1)))
}

func TestAggregate(t *testing.T) {
	res := Aggregate(runsWithFinals(50, 10, 40, 20, 30), f64(25))

	assert.Equal(t, 60.0, res.SuccessProbability)
	assert.Equal(t, 10.0, res.Percentiles.P10)
	assert.Equal(t, 30.0, res.Percentiles.P50)
	assert.Equal(t, 50.0, res.Percentiles.P90)
	assert.Equal(t, 30.0, res.Summary.Mean)
	assert.Equal(t, 10.0, res.Summary.Min)
	assert.Equal(t, 50.0, res.Summary.Max)

	require.Len(t, res.Timeline, 2)
	assert.Equal(t, 1, res.Timeline[1].Year)
	assert.Equal(t, 30.0, res.Timeline[1].Median)
}

func TestAggregate_Empty(t *testing.T) {
	res := Aggregate(nil, f64(1))

	assert.Equal(t, 0.0, res.SuccessProbability)
	assert.Empty(t, res.Timeline)
	assert.Equal(t, Summary{}, res.Summary)
}

func TestSeries(t *testing.T) {
	run := RunTrajectory(testState, flatParams(2), NewSeededBoxMuller(1))
	series := RunSeries(run, 2026)

	require.Len(t, series, 3)
	assert.Equal(t, "2026-01-01", series[0].Date)
	assert.Equal(t, "2028-01-01", series[2].Date)
	assert.InDelta(t, 56000, series[2].Value, 1e-6)

	res := Aggregate([]Run{run}, nil)
	band := ConfidenceSeries(res.Timeline, 2026)
	assert.Len(t, band.P10, 3)
	assert.Len(t, band.P90, 3)
	assert.Equal(t, "2027-01-01", band.P90[1].Date)
}

func TestAggregationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("success probability is within [0, 100] and counts finals at or above target", prop.ForAll(
		func(finals []float64, target float64) bool {
			p := SuccessProbability(finals, &target)
			if p < 0 || p > 100 {
				return false
			}
			if len(finals) == 0 {
				return p == 0
			}
			hits := 0
			for _, v := range finals {
				if v >= target {
					hits++
				}
			}
			return p == 100*float64(hits)/float64(len(finals))
		},
		gen.SliceOf(gen.Float64Range(-1e7, 1e7)),
		gen.Float64Range(-1e7, 1e7),
	))

	properties.Property("p10 <= p50 <= p90 on sorted input", prop.ForAll(
		func(values []float64) bool {
			sort.Float64s(values)
			p10 := Percentile(values, 0.1)
			p50 := Median(values)
			p90 := Percentile(values, 0.9)
			return p10 <= p50 && p50 <= p90
		},
		gen.SliceOf(gen.Float64Range(-1e7, 1e7)),
	))

	properties.Property("every run has horizon+1 strictly increasing years", prop.ForAll(
		func(horizon int, seed uint64) bool {
			run := RunTrajectory(testState, Parameters{YearsToProject: horizon}, NewSeededBoxMuller(seed))
			if len(run.Timeline) != horizon+1 {
				return false
			}
			for i, s := range run.Timeline {
				if s.Year != i {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, MaxHorizonYears),
		gen.UInt64(),
	))

	properties.Property("aggregate timeline bands are ordered every year", prop.ForAll(
		func(runCount int, seed uint64) bool {
			sampler := NewSeededBoxMuller(seed)
			runs := make([]Run, runCount)
			for i := range runs {
				runs[i] = RunTrajectory(testState, Parameters{YearsToProject: 5}, sampler)
			}
			res := Aggregate(runs, f64(50000))
			if len(res.Timeline) != 6 {
				return false
			}
			for _, p := range res.Timeline {
				if p.P10 > p.Median || p.Median > p.P90 {
					return false
				}
			}
			return res.Percentiles.P10 <= res.Percentiles.P50 && res.Percentiles.P50 <= res.Percentiles.P90
		},
		gen.IntRange(1, 60),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
