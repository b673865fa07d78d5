package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ReturnMode selects the variant of a ReturnConfiguration.
type ReturnMode string

const (
	ReturnFixed      ReturnMode = "fixed"
	ReturnRandom     ReturnMode = "random"
	ReturnVariable   ReturnMode = "variable"
	ReturnMultiAsset ReturnMode = "multiasset"
)

// ReturnConfiguration is a tagged union over the four return modes. Only the
// variant named by Mode is read.
type ReturnConfiguration struct {
	Mode       ReturnMode        `yaml:"mode" json:"mode"`
	Fixed      *FixedReturn      `yaml:"fixed,omitempty" json:"fixed,omitempty"`
	Random     *RandomReturn     `yaml:"random,omitempty" json:"random,omitempty"`
	Variable   *VariableReturn   `yaml:"variable,omitempty" json:"variable,omitempty"`
	MultiAsset *MultiAssetReturn `yaml:"multiasset,omitempty" json:"multiasset,omitempty"`
}

// FixedReturn applies the same rate every period.
type FixedReturn struct {
	Rate decimal.Decimal `yaml:"rate" json:"rate"`
}

// RandomReturn draws normally distributed yearly rates. A nil Seed asks for a
// non-deterministic seed.
type RandomReturn struct {
	Mean   decimal.Decimal `yaml:"mean" json:"mean"`
	StdDev decimal.Decimal `yaml:"std_dev" json:"stdDev"`
	Seed   *int64          `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// VariableReturn is a user supplied year → rate schedule.
type VariableReturn struct {
	Rates map[int]decimal.Decimal `yaml:"rates" json:"rates"`
}

// AssetClass describes one sleeve of a multi-asset portfolio.
type AssetClass struct {
	Name           string          `yaml:"name" json:"name"`
	TargetWeight   decimal.Decimal `yaml:"target_weight" json:"targetWeight"`
	ExpectedReturn decimal.Decimal `yaml:"expected_return" json:"expectedReturn"`
	Volatility     decimal.Decimal `yaml:"volatility" json:"volatility"`
}

// MultiAssetReturn draws correlated per-class returns. Weights drift with
// relative performance and are reset to target every RebalanceEveryYears
// years (0 disables rebalancing).
type MultiAssetReturn struct {
	Assets              []AssetClass                  `yaml:"assets" json:"assets"`
	Correlations        map[string]map[string]float64 `yaml:"correlations,omitempty" json:"correlations,omitempty"`
	Seed                *int64                        `yaml:"seed,omitempty" json:"seed,omitempty"`
	RebalanceEveryYears int                           `yaml:"rebalance_every_years" json:"rebalanceEveryYears"`
}

// WeightTolerance is the allowed deviation of allocation sums from 100%.
var WeightTolerance = decimal.NewFromFloat(0.0001)

// FixedReturnConfiguration builds a fixed-rate configuration.
func FixedReturnConfiguration(rate decimal.Decimal) ReturnConfiguration {
	return ReturnConfiguration{Mode: ReturnFixed, Fixed: &FixedReturn{Rate: rate}}
}

// Validate checks the variant selected by Mode.
func (rc ReturnConfiguration) Validate(field string) error {
	switch rc.Mode {
	case ReturnFixed:
		if rc.Fixed == nil {
			return NewValidationError(field+".fixed", "fixed mode requires a rate")
		}
		if rc.Fixed.Rate.LessThanOrEqual(decimal.NewFromInt(-1)) {
			return NewValidationError(field+".fixed.rate", "rate must be greater than -100%%")
		}
	case ReturnRandom:
		if rc.Random == nil {
			return NewValidationError(field+".random", "random mode requires mean and std_dev")
		}
		if rc.Random.StdDev.IsNegative() {
			return NewValidationError(field+".random.std_dev", "standard deviation cannot be negative")
		}
	case ReturnVariable:
		if rc.Variable == nil || len(rc.Variable.Rates) == 0 {
			return NewValidationError(field+".variable.rates", "variable mode requires at least one year")
		}
	case ReturnMultiAsset:
		return rc.MultiAsset.validate(field + ".multiasset")
	default:
		return NewConfigurationError("returns", "unknown return mode %q", rc.Mode)
	}
	return nil
}

func (m *MultiAssetReturn) validate(field string) error {
	if m == nil || len(m.Assets) == 0 {
		return NewValidationError(field+".assets", "multi-asset mode requires at least one asset class")
	}
	total := decimal.Zero
	seen := map[string]bool{}
	for _, a := range m.Assets {
		if a.Name == "" {
			return NewValidationError(field+".assets.name", "asset class name is required")
		}
		if seen[a.Name] {
			return NewValidationError(field+".assets."+a.Name, "duplicate asset class")
		}
		seen[a.Name] = true
		if a.TargetWeight.IsNegative() {
			return NewValidationError(field+".assets."+a.Name+".target_weight", "weight cannot be negative")
		}
		if a.Volatility.IsNegative() {
			return NewValidationError(field+".assets."+a.Name+".volatility", "volatility cannot be negative")
		}
		total = total.Add(a.TargetWeight)
	}
	if total.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(WeightTolerance) {
		return NewValidationError(field+".assets", "target weights must sum to 100%% (got %s%%)",
			total.Mul(decimal.NewFromInt(100)).StringFixed(2))
	}
	for a, row := range m.Correlations {
		if !seen[a] {
			return NewValidationError(field+".correlations."+a, "unknown asset class")
		}
		for b, rho := range row {
			if !seen[b] {
				return NewValidationError(field+".correlations."+a+"."+b, "unknown asset class")
			}
			if rho < -1 || rho > 1 {
				return NewValidationError(field+".correlations."+a+"."+b, "correlation must be within [-1, 1]")
			}
		}
	}
	if m.RebalanceEveryYears < 0 {
		return NewValidationError(field+".rebalance_every_years", "cannot be negative")
	}
	return nil
}

// Correlation returns the configured correlation between two classes; the
// diagonal is 1 and unspecified pairs are uncorrelated.
func (m *MultiAssetReturn) Correlation(a, b string) float64 {
	if a == b {
		return 1
	}
	if row, ok := m.Correlations[a]; ok {
		if rho, ok := row[b]; ok {
			return rho
		}
	}
	if row, ok := m.Correlations[b]; ok {
		if rho, ok := row[a]; ok {
			return rho
		}
	}
	return 0
}

// TargetWeights returns the target allocation keyed by class name.
func (m *MultiAssetReturn) TargetWeights() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m.Assets))
	for _, a := range m.Assets {
		out[a.Name] = a.TargetWeight
	}
	return out
}

// SortedYears returns the years of a variable schedule in ascending order.
func (v *VariableReturn) SortedYears() []int {
	years := make([]int, 0, len(v.Rates))
	for y := range v.Rates {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
