// Package simulation projects a user's net worth forward with a Monte Carlo
// random walk and aggregates the resulting distribution.
package simulation

import (
	"context"
	"fmt"

	"github.com/finance-coach/internal/types"
)

// FinancialState is the starting point of every trajectory. Income and
// expenses are annual.
type FinancialState struct {
	NetWorth       float64 `json:"netWorth"`
	Savings        float64 `json:"savings"`
	AnnualIncome   float64 `json:"annualIncome"`
	AnnualExpenses float64 `json:"annualExpenses"`
	Age            int     `json:"age"`
}

// Snapshot is the state at the end of one projection year
type Snapshot struct {
	Year     int     `json:"year"`
	NetWorth float64 `json:"netWorth"`
	Savings  float64 `json:"savings"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
}

// Run is one stochastic trajectory, years 0 through the horizon
type Run struct {
	Timeline []Snapshot
}

// FinalNetWorth returns the net worth of the last snapshot
func (r Run) FinalNetWorth() float64 {
	if len(r.Timeline) == 0 {
		return 0
	}
	return r.Timeline[len(r.Timeline)-1].NetWorth
}

// RunTrajectory simulates one run. It draws one market return and one
// inflation rate per year and applies scenario step changes at their year.
func RunTrajectory(start FinancialState, params Parameters, sampler Sampler) Run {
	a := params.Resolve()

	netWorth := start.NetWorth
	savings := start.Savings
	income := start.AnnualIncome
	expenses := start.AnnualExpenses

	timeline := make([]Snapshot, 0, a.Horizon+1)
	for year := 0; year <= a.Horizon; year++ {
		marketReturn := sampler.Normal(a.MarketReturn, a.MarketVolatility)
		inflation := sampler.Normal(a.InflationRate, a.InflationVolatility)

		switch a.ScenarioType {
		case types.ScenarioCareerChange:
			if params.ChangeYear != nil && params.NewIncome != nil && *params.ChangeYear == year {
				income = *params.NewIncome
			}
		case types.ScenarioBuyHome:
			if params.PurchaseYear != nil && *params.PurchaseYear == year {
				netWorth -= valueOr(params.DownPayment, 0)
				expenses += valueOr(params.MortgagePayment, 0) * 12
			}
		}

		cashFlow := income - expenses
		netWorth += cashFlow + netWorth*marketReturn
		savings += cashFlow
		expenses *= 1 + inflation
		income *= 1 + a.SalaryGrowth

		timeline = append(timeline, Snapshot{
			Year:     year,
			NetWorth: netWorth,
			Savings:  savings,
			Income:   income,
			Expenses: expenses,
		})
	}

	return Run{Timeline: timeline}
}

// RunBatch runs n independent trajectories sequentially. The context is
// checked between runs.
func RunBatch(ctx context.Context, start FinancialState, params Parameters, sampler Sampler, n int) ([]Run, error) {
	if n <= 0 {
		return nil, fmt.Errorf("run count must be positive, got %d", n)
	}

	runs := make([]Run, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation cancelled after %d of %d runs: %w", i, n, err)
		}
		runs = append(runs, RunTrajectory(start, params, sampler))
	}
	return runs, nil
}

// RepresentativeRun returns the run at index floor(len/2). It is one sample
// path, not a percentile of the batch.
func RepresentativeRun(runs []Run) Run {
	if len(runs) == 0 {
		return Run{}
	}
	return runs[len(runs)/2]
}
