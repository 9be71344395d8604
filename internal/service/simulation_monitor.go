package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/finance-coach/internal/simulation"
)

const (
	// SlowCachedResponse is the latency a cache hit should stay under
	SlowCachedResponse = 100 * time.Millisecond
	defaultMaxSamples  = 1000
)

// SimulationMonitor tracks latency and cache effectiveness of Simulate.
// It keeps the last maxSamples durations per outcome.
type SimulationMonitor struct {
	mu            sync.RWMutex
	hitTimes      []time.Duration
	computeTimes  []time.Duration
	hits          int64
	misses        int64
	failures      int64
	slowHits      int64
	simulatedRuns int64
	maxSamples    int
}

// NewSimulationMonitor creates a new simulation monitor
func NewSimulationMonitor() *SimulationMonitor {
	return &SimulationMonitor{
		hitTimes:     make([]time.Duration, 0, defaultMaxSamples),
		computeTimes: make([]time.Duration, 0, defaultMaxSamples),
		maxSamples:   defaultMaxSamples,
	}
}

// Record adds one request outcome. runs is only counted for computed responses.
func (m *SimulationMonitor) Record(duration time.Duration, cached bool, runs int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached {
		m.hits++
		m.hitTimes = appendBounded(m.hitTimes, duration, m.maxSamples)
		if duration > SlowCachedResponse {
			m.slowHits++
		}
		return
	}
	m.misses++
	m.simulatedRuns += int64(runs)
	m.computeTimes = appendBounded(m.computeTimes, duration, m.maxSamples)
}

// RecordFailure counts a request that returned an error
func (m *SimulationMonitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func appendBounded(samples []time.Duration, d time.Duration, max int) []time.Duration {
	samples = append(samples, d)
	if len(samples) > max {
		samples = samples[len(samples)-max:]
	}
	return samples
}

// SimulationStats is a snapshot of the monitor
type SimulationStats struct {
	Requests      int64   `json:"requests"`
	CacheHits     int64   `json:"cacheHits"`
	CacheMisses   int64   `json:"cacheMisses"`
	Failures      int64   `json:"failures"`
	SlowCacheHits int64   `json:"slowCacheHits"`
	SimulatedRuns int64   `json:"simulatedRuns"`
	CacheHitRate  float64 `json:"cacheHitRate"` // percentage
	AvgHitMs      float64 `json:"avgHitMs"`
	P95HitMs      float64 `json:"p95HitMs"`
	AvgComputeMs  float64 `json:"avgComputeMs"`
	P95ComputeMs  float64 `json:"p95ComputeMs"`
}

// GetStats returns current statistics
func (m *SimulationMonitor) GetStats() *SimulationStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &SimulationStats{
		Requests:      m.hits + m.misses + m.failures,
		CacheHits:     m.hits,
		CacheMisses:   m.misses,
		Failures:      m.failures,
		SlowCacheHits: m.slowHits,
		SimulatedRuns: m.simulatedRuns,
	}
	if served := m.hits + m.misses; served > 0 {
		stats.CacheHitRate = float64(m.hits) / float64(served) * 100
	}
	stats.AvgHitMs, stats.P95HitMs = summarize(m.hitTimes)
	stats.AvgComputeMs, stats.P95ComputeMs = summarize(m.computeTimes)
	return stats
}

// summarize returns mean and floor-indexed p95 in milliseconds
func summarize(samples []time.Duration) (avg, p95 float64) {
	if len(samples) == 0 {
		return 0, 0
	}
	ms := make([]float64, len(samples))
	total := 0.0
	for i, d := range samples {
		ms[i] = float64(d) / float64(time.Millisecond)
		total += ms[i]
	}
	sort.Float64s(ms)
	return total / float64(len(ms)), simulation.Percentile(ms, 0.95)
}

// PerformanceCheck contains performance check results
type PerformanceCheck struct {
	Passed bool     `json:"passed"`
	Issues []string `json:"issues"`
}

// CheckPerformance flags cache hits slower than SlowCachedResponse
func (m *SimulationMonitor) CheckPerformance() *PerformanceCheck {
	stats := m.GetStats()
	check := &PerformanceCheck{Passed: true, Issues: []string{}}

	limit := float64(SlowCachedResponse / time.Millisecond)
	if stats.AvgHitMs > limit {
		check.Passed = false
		check.Issues = append(check.Issues,
			fmt.Sprintf("Average cached response time (%.2fms) exceeds %.0fms threshold", stats.AvgHitMs, limit))
	}
	if stats.P95HitMs > limit {
		check.Passed = false
		check.Issues = append(check.Issues,
			fmt.Sprintf("P95 cached response time (%.2fms) exceeds %.0fms threshold", stats.P95HitMs, limit))
	}
	return check
}
