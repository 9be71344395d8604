package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/finance-coach/internal/errors"
	"github.com/finance-coach/internal/logging"
	"github.com/finance-coach/internal/models"
	"github.com/finance-coach/internal/simulation"
	"github.com/finance-coach/internal/storage"
	"github.com/finance-coach/internal/types"
)

// Profile fallback defaults, monthly unless noted
const (
	DefaultNetWorth        = 10000.0
	DefaultMonthlyIncome   = 5000.0
	DefaultMonthlyExpenses = 3750.0
	DefaultAge             = 30
	SavingsShareOfNetWorth = 0.2
	CashFlowWindowDays     = 90
	cashFlowWindowMonths   = 3
)

// ProfileStore reads and writes financial profiles
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.FinancialProfile, error)
	Upsert(ctx context.Context, p *models.FinancialProfile) error
}

// AccountReader lists connected accounts
type AccountReader interface {
	ListByUser(ctx context.Context, userID string) ([]*models.ConnectedAccount, error)
}

// CashFlowReader sums recent transactions
type CashFlowReader interface {
	CashFlowSince(ctx context.Context, userID string, since time.Time) (storage.CashFlow, error)
}

// ScenarioStore persists aggregated results
type ScenarioStore interface {
	Upsert(ctx context.Context, s *models.TwinScenario) error
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.TwinScenario, error)
}

// ResponseCache stores whole simulation responses
type ResponseCache interface {
	TwinKey(userID, scenarioID string, runs int) string
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// SimulationConfig bounds the number of runs per request
type SimulationConfig struct {
	DefaultRuns int
	MaxRuns     int
}

// SimulationService runs Monte Carlo projections for a user
type SimulationService struct {
	profiles  ProfileStore
	accounts  AccountReader
	cashFlow  CashFlowReader
	scenarios ScenarioStore
	cache     ResponseCache
	cfg       SimulationConfig
	sources   simulation.SourceFactory
	now       func() time.Time
	monitor   *SimulationMonitor
}

// NewSimulationService creates a new simulation service. A nil sources
// factory seeds every request randomly.
func NewSimulationService(
	profiles ProfileStore,
	accounts AccountReader,
	cashFlow CashFlowReader,
	scenarios ScenarioStore,
	cache ResponseCache,
	cfg SimulationConfig,
	sources simulation.SourceFactory,
) *SimulationService {
	if sources == nil {
		sources = simulation.DefaultSourceFactory
	}
	return &SimulationService{
		profiles:  profiles,
		accounts:  accounts,
		cashFlow:  cashFlow,
		scenarios: scenarios,
		cache:     cache,
		cfg:       cfg,
		sources:   sources,
		now:       time.Now,
	}
}

// SimulateInput is one projection request
type SimulateInput struct {
	UserID         string
	ScenarioID     string
	Parameters     simulation.Parameters
	MonteCarloRuns int
}

// SimulationMetadata describes the batch behind a response
type SimulationMetadata struct {
	ScenarioID         string             `json:"scenarioId"`
	ScenarioType       types.ScenarioType `json:"scenarioType"`
	SuccessProbability float64            `json:"successProbability"`
	Percentiles        models.Percentiles `json:"percentiles"`
	Simulations        int                `json:"simulations"`
	HorizonYears       int                `json:"horizonYears"`
	FinalNetWorth      simulation.Summary `json:"finalNetWorth"`
	GeneratedAt        time.Time          `json:"generatedAt"`
}

// SimulationResponse is the charting payload. Scenario is the single run at
// index floor(runs/2); Confidence is the cross-sectional band.
type SimulationResponse struct {
	Baseline   []types.SeriesPoint   `json:"baseline"`
	Scenario   []types.SeriesPoint   `json:"scenario"`
	Confidence simulation.Confidence `json:"confidence"`
	Metadata   SimulationMetadata    `json:"metadata"`
}

// SimulateResult wraps the response with its cache provenance
type SimulateResult struct {
	Response  *SimulationResponse
	FromCache bool
}

// SetMonitor records latency and cache outcome of every Simulate call
func (s *SimulationService) SetMonitor(m *SimulationMonitor) {
	s.monitor = m
}

// Simulate returns a cached response when one exists for (user, scenario,
// runs), otherwise computes, persists and caches a new one.
func (s *SimulationService) Simulate(ctx context.Context, in SimulateInput) (*SimulateResult, error) {
	start := time.Now()
	res, err := s.simulate(ctx, in)
	if s.monitor != nil {
		if err != nil {
			s.monitor.RecordFailure()
		} else {
			s.monitor.Record(time.Since(start), res.FromCache, res.Response.Metadata.Simulations)
		}
	}
	return res, err
}

func (s *SimulationService) simulate(ctx context.Context, in SimulateInput) (*SimulateResult, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"userId":     in.UserID,
		"scenarioId": in.ScenarioID,
	})

	if in.ScenarioID != "" {
		if err := uuid.Validate(in.ScenarioID); err != nil {
			return nil, apperrors.NewInvalidParameterError("scenarioId", "must be a UUID")
		}
	}
	runs, err := s.runCount(in.MonteCarloRuns)
	if err != nil {
		return nil, err
	}
	if err := in.Parameters.Validate(); err != nil {
		return nil, apperrors.NewInvalidParameterError("parameters", err.Error())
	}

	key := s.cache.TwinKey(in.UserID, in.ScenarioID, runs)
	var cached SimulationResponse
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		logger.WithError(err).Warn("Simulation cache read failed, computing")
	} else if hit {
		logger.WithField("cacheKey", key).Debug("Simulation cache hit")
		return &SimulateResult{Response: &cached, FromCache: true}, nil
	}

	state, err := s.loadFinancialState(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	sampler := simulation.NewBoxMuller(s.sources())
	batch, err := simulation.RunBatch(ctx, state, in.Parameters, sampler, runs)
	if err != nil {
		return nil, fmt.Errorf("simulation batch: %w", err)
	}
	agg := simulation.Aggregate(batch, in.Parameters.TargetNetWorth)
	assumptions := in.Parameters.Resolve()

	scenario := &models.TwinScenario{
		ID:                 in.ScenarioID,
		UserID:             in.UserID,
		ScenarioType:       assumptions.ScenarioType,
		Parameters:         in.Parameters.ToMap(),
		SuccessProbability: agg.SuccessProbability,
		Percentiles:        agg.Percentiles,
		Timeline:           agg.Timeline,
		Simulations:        runs,
	}
	if err := s.scenarios.Upsert(ctx, scenario); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &types.ServiceError{Code: "SCENARIO_NOT_FOUND", Message: fmt.Sprintf("scenario not found: %s", in.ScenarioID)}
		}
		return nil, apperrors.NewDatabaseError("save scenario", err)
	}

	baseline := simulation.RunTrajectory(state, in.Parameters.AsBaseline(), sampler)
	now := s.now().UTC()
	startYear := now.Year()

	resp := &SimulationResponse{
		Baseline:   simulation.RunSeries(baseline, startYear),
		Scenario:   simulation.RunSeries(simulation.RepresentativeRun(batch), startYear),
		Confidence: simulation.ConfidenceSeries(agg.Timeline, startYear),
		Metadata: SimulationMetadata{
			ScenarioID:         scenario.ID,
			ScenarioType:       assumptions.ScenarioType,
			SuccessProbability: agg.SuccessProbability,
			Percentiles:        agg.Percentiles,
			Simulations:        runs,
			HorizonYears:       assumptions.Horizon,
			FinalNetWorth:      agg.Summary,
			GeneratedAt:        now,
		},
	}

	if err := s.cache.Set(ctx, key, resp); err != nil {
		logger.WithError(err).Warn("Simulation cache write failed")
	}

	logger.WithFields(map[string]interface{}{
		"runs":               runs,
		"successProbability": agg.SuccessProbability,
	}).Info("Simulation completed")

	return &SimulateResult{Response: resp, FromCache: false}, nil
}

func (s *SimulationService) runCount(requested int) (int, error) {
	switch {
	case requested == 0:
		return s.cfg.DefaultRuns, nil
	case requested < 0:
		return 0, apperrors.NewInvalidParameterError("monteCarloRuns", "must be positive")
	case requested > s.cfg.MaxRuns:
		return 0, apperrors.NewInvalidParameterError("monteCarloRuns", fmt.Sprintf("must not exceed %d", s.cfg.MaxRuns))
	default:
		return requested, nil
	}
}

// loadFinancialState reads the stored profile, synthesizing and persisting
// one from balances and recent cash flow when the user has none.
func (s *SimulationService) loadFinancialState(ctx context.Context, userID string) (simulation.FinancialState, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err == nil {
		return stateFromProfile(profile), nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return simulation.FinancialState{}, apperrors.NewDatabaseError("load financial profile", err)
	}

	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return simulation.FinancialState{}, apperrors.NewDatabaseError("list connected accounts", err)
	}
	since := s.now().UTC().AddDate(0, 0, -CashFlowWindowDays)
	cf, err := s.cashFlow.CashFlowSince(ctx, userID, since)
	if err != nil {
		return simulation.FinancialState{}, apperrors.NewDatabaseError("sum recent transactions", err)
	}

	profile = SynthesizeProfile(userID, accounts, cf)
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return simulation.FinancialState{}, apperrors.NewDatabaseError("create financial profile", err)
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"userId":   userID,
		"accounts": len(accounts),
		"netWorth": profile.NetWorth,
	}).Info("Synthesized financial profile")

	return stateFromProfile(profile), nil
}

// SynthesizeProfile estimates a profile from account balances and the last
// 90 days of cash flow. Zero sums fall back to the defaults.
func SynthesizeProfile(userID string, accounts []*models.ConnectedAccount, cf storage.CashFlow) *models.FinancialProfile {
	netWorth := 0.0
	for _, a := range accounts {
		netWorth += a.CurrentBalance
	}
	if netWorth == 0 {
		netWorth = DefaultNetWorth
	}

	monthlyIncome := cf.Inflow / cashFlowWindowMonths
	if monthlyIncome == 0 {
		monthlyIncome = DefaultMonthlyIncome
	}
	monthlyExpenses := cf.Outflow / cashFlowWindowMonths
	if monthlyExpenses == 0 {
		monthlyExpenses = DefaultMonthlyExpenses
	}

	return &models.FinancialProfile{
		UserID:         userID,
		NetWorth:       netWorth,
		Savings:        SavingsShareOfNetWorth * netWorth,
		AnnualIncome:   monthlyIncome * 12,
		AnnualExpenses: monthlyExpenses * 12,
		Age:            DefaultAge,
	}
}

func stateFromProfile(p *models.FinancialProfile) simulation.FinancialState {
	return simulation.FinancialState{
		NetWorth:       p.NetWorth,
		Savings:        p.Savings,
		AnnualIncome:   p.AnnualIncome,
		AnnualExpenses: p.AnnualExpenses,
		Age:            p.Age,
	}
}
