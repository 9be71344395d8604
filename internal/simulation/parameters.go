package simulation

import (
	"fmt"
	"math"

	"github.com/finance-coach/internal/types"
)

// Default growth assumptions, annual
const (
	DefaultHorizonYears        = 10
	MaxHorizonYears            = 100
	DefaultSalaryGrowth        = 0.03
	DefaultMarketReturn        = 0.07
	DefaultMarketVolatility    = 0.15
	DefaultInflationRate       = 0.03
	DefaultInflationVolatility = 0.02

	// MaxRate bounds growth rates and volatilities (1000% a year)
	MaxRate = 10.0
	// MaxAmount bounds every currency amount
	MaxAmount = 1e12
)

// Parameters describes one scenario request. Pointer fields are optional.
type Parameters struct {
	ScenarioType   types.ScenarioType `json:"scenarioType,omitempty"`
	YearsToProject int                `json:"yearsToProject,omitempty"`
	TargetNetWorth *float64           `json:"targetNetWorth,omitempty"`
	SalaryGrowth   *float64           `json:"salaryGrowth,omitempty"`

	// career_change
	ChangeYear *int     `json:"changeYear,omitempty"`
	NewIncome  *float64 `json:"newIncome,omitempty"`

	// buy_home; MortgagePayment is monthly
	PurchaseYear    *int     `json:"purchaseYear,omitempty"`
	DownPayment     *float64 `json:"downPayment,omitempty"`
	MortgagePayment *float64 `json:"mortgagePayment,omitempty"`

	// custom growth rates
	MarketReturn        *float64 `json:"marketReturn,omitempty"`
	MarketVolatility    *float64 `json:"marketVolatility,omitempty"`
	InflationRate       *float64 `json:"inflationRate,omitempty"`
	InflationVolatility *float64 `json:"inflationVolatility,omitempty"`
}

// Assumptions are Parameters with every default resolved
type Assumptions struct {
	ScenarioType        types.ScenarioType
	Horizon             int
	SalaryGrowth        float64
	MarketReturn        float64
	MarketVolatility    float64
	InflationRate       float64
	InflationVolatility float64
}

// Validate rejects parameter sets that cannot be simulated
func (p Parameters) Validate() error {
	if p.ScenarioType != "" && !p.ScenarioType.Valid() {
		return fmt.Errorf("unknown scenarioType %q", p.ScenarioType)
	}
	if p.YearsToProject < 0 || p.YearsToProject > MaxHorizonYears {
		return fmt.Errorf("yearsToProject must be between 1 and %d (0 uses %d), got %d",
			MaxHorizonYears, DefaultHorizonYears, p.YearsToProject)
	}
	if err := p.checkRanges(); err != nil {
		return err
	}

	switch p.ScenarioType {
	case types.ScenarioCareerChange:
		if p.ChangeYear == nil || p.NewIncome == nil {
			return fmt.Errorf("career_change requires changeYear and newIncome")
		}
		if *p.ChangeYear < 0 {
			return fmt.Errorf("changeYear must not be negative")
		}
	case types.ScenarioBuyHome:
		if p.PurchaseYear == nil {
			return fmt.Errorf("buy_home requires purchaseYear")
		}
		if *p.PurchaseYear < 0 {
			return fmt.Errorf("purchaseYear must not be negative")
		}
		if p.DownPayment != nil && *p.DownPayment < 0 {
			return fmt.Errorf("downPayment must not be negative")
		}
		if p.MortgagePayment != nil && *p.MortgagePayment < 0 {
			return fmt.Errorf("mortgagePayment must not be negative")
		}
	}

	if p.MarketVolatility != nil && *p.MarketVolatility < 0 {
		return fmt.Errorf("marketVolatility must not be negative")
	}
	if p.InflationVolatility != nil && *p.InflationVolatility < 0 {
		return fmt.Errorf("inflationVolatility must not be negative")
	}
	return nil
}

func (p Parameters) checkRanges() error {
	rates := []struct {
		name string
		v    *float64
	}{
		{"salaryGrowth", p.SalaryGrowth},
		{"marketReturn", p.MarketReturn},
		{"marketVolatility", p.MarketVolatility},
		{"inflationRate", p.InflationRate},
		{"inflationVolatility", p.InflationVolatility},
	}
	for _, r := range rates {
		if r.v != nil && !within(*r.v, MaxRate) {
			return fmt.Errorf("%s must be a finite rate between -%g and %g", r.name, MaxRate, MaxRate)
		}
	}

	amounts := []struct {
		name string
		v    *float64
	}{
		{"targetNetWorth", p.TargetNetWorth},
		{"newIncome", p.NewIncome},
		{"downPayment", p.DownPayment},
		{"mortgagePayment", p.MortgagePayment},
	}
	for _, a := range amounts {
		if a.v != nil && !within(*a.v, MaxAmount) {
			return fmt.Errorf("%s must be a finite amount no larger than %g", a.name, MaxAmount)
		}
	}

	if p.ChangeYear != nil && *p.ChangeYear > MaxHorizonYears {
		return fmt.Errorf("changeYear must not exceed %d", MaxHorizonYears)
	}
	if p.PurchaseYear != nil && *p.PurchaseYear > MaxHorizonYears {
		return fmt.Errorf("purchaseYear must not exceed %d", MaxHorizonYears)
	}
	return nil
}

// within reports whether v is finite and |v| <= limit
func within(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= limit
}

// Resolve fills in defaults
func (p Parameters) Resolve() Assumptions {
	a := Assumptions{
		ScenarioType:        p.ScenarioType,
		Horizon:             p.YearsToProject,
		SalaryGrowth:        valueOr(p.SalaryGrowth, DefaultSalaryGrowth),
		MarketReturn:        valueOr(p.MarketReturn, DefaultMarketReturn),
		MarketVolatility:    valueOr(p.MarketVolatility, DefaultMarketVolatility),
		InflationRate:       valueOr(p.InflationRate, DefaultInflationRate),
		InflationVolatility: valueOr(p.InflationVolatility, DefaultInflationVolatility),
	}
	if a.ScenarioType == "" {
		a.ScenarioType = types.ScenarioBaseline
	}
	if a.Horizon == 0 {
		a.Horizon = DefaultHorizonYears
	}
	return a
}

// AsBaseline returns a copy with the scenario step changes removed
func (p Parameters) AsBaseline() Parameters {
	b := p
	b.ScenarioType = types.ScenarioBaseline
	b.ChangeYear, b.NewIncome = nil, nil
	b.PurchaseYear, b.DownPayment, b.MortgagePayment = nil, nil, nil
	return b
}

// ToMap renders the parameters as a JSON-style map for persistence
func (p Parameters) ToMap() map[string]interface{} {
	a := p.Resolve()
	m := map[string]interface{}{
		"scenarioType":   a.ScenarioType,
		"yearsToProject": a.Horizon,
		"salaryGrowth":   a.SalaryGrowth,
	}
	putFloat(m, "targetNetWorth", p.TargetNetWorth)
	putInt(m, "changeYear", p.ChangeYear)
	putFloat(m, "newIncome", p.NewIncome)
	putInt(m, "purchaseYear", p.PurchaseYear)
	putFloat(m, "downPayment", p.DownPayment)
	putFloat(m, "mortgagePayment", p.MortgagePayment)
	putFloat(m, "marketReturn", p.MarketReturn)
	putFloat(m, "marketVolatility", p.MarketVolatility)
	putFloat(m, "inflationRate", p.InflationRate)
	putFloat(m, "inflationVolatility", p.InflationVolatility)
	return m
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func putFloat(m map[string]interface{}, key string, v *float64) {
	if v != nil {
		m[key] = *v
	}
}

func putInt(m map[string]interface{}, key string, v *int) {
	if v != nil {
		m[key] = *v
	}
}
