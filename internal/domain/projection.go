package domain

import (
	"github.com/shopspring/decimal"
)

// Frequency is the granularity at which contributions, growth and
// withdrawals are applied.
type Frequency string

const (
	FrequencyYearly  Frequency = "yearly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is a known frequency. The empty value means yearly.
func (f Frequency) Valid() bool {
	return f == "" || f == FrequencyYearly || f == FrequencyMonthly
}

// SimulationRequest is the complete input of one projection run.
//
// Returns takes precedence over the legacy single Rate: Rate is only turned
// into a fixed configuration when Returns is nil.
type SimulationRequest struct {
	Elements          []ContributionElement `yaml:"elements" json:"elements"`
	StartYear         int                   `yaml:"start_year" json:"startYear"`
	EndYear           int                   `yaml:"end_year" json:"endYear"`
	Frequency         Frequency             `yaml:"frequency" json:"frequency"`
	Returns           *ReturnConfiguration  `yaml:"returns,omitempty" json:"returns,omitempty"`
	Rate              *decimal.Decimal      `yaml:"rate,omitempty" json:"rate,omitempty"`
	Tax               TaxParameters         `yaml:"tax" json:"tax"`
	TaxOutsideCapital bool                  `yaml:"tax_outside_capital" json:"taxOutsideCapital"`
	InitialLossPot    LossOffsetPot         `yaml:"initial_loss_pot" json:"initialLossPot"`
	Withdrawal        *WithdrawalPlan       `yaml:"withdrawal,omitempty" json:"withdrawal,omitempty"`
}

// ResolvedReturns applies the precedence rule between the return union and
// the legacy rate. The boolean reports a conflicting legacy rate that was
// ignored.
func (r SimulationRequest) ResolvedReturns() (ReturnConfiguration, bool, error) {
	if r.Returns != nil {
		conflict := r.Rate != nil && !(r.Returns.Mode == ReturnFixed && r.Returns.Fixed != nil && r.Returns.Fixed.Rate.Equal(*r.Rate))
		return *r.Returns, conflict, nil
	}
	if r.Rate != nil {
		return FixedReturnConfiguration(*r.Rate), false, nil
	}
	return ReturnConfiguration{}, false, NewConfigurationError("returns", "neither returns nor rate configured")
}

// SimulationYearState is one period of one contribution element (or the
// aggregate of all elements). EndCapital of year n seeds StartCapital of
// year n+1.
type SimulationYearState struct {
	Year                      int             `json:"year"`
	Phase                     ElementPhase    `json:"phase,omitempty"`
	StartCapital              decimal.Decimal `json:"startCapital"`
	Contribution              decimal.Decimal `json:"contribution"`
	Gain                      decimal.Decimal `json:"gain"`
	Rate                      decimal.Decimal `json:"rate"`
	EndCapital                decimal.Decimal `json:"endCapital"`
	CostBasis                 decimal.Decimal `json:"costBasis"`
	TaxPaid                   decimal.Decimal `json:"taxPaid"`
	Vorabpauschale            decimal.Decimal `json:"vorabpauschale"`
	AccumulatedVorabpauschale decimal.Decimal `json:"accumulatedVorabpauschale"`
	AllowanceUsed             decimal.Decimal `json:"allowanceUsed"`
}

// ElementProjection is the year series of a single contribution element.
type ElementProjection struct {
	ElementID string                          `json:"elementId"`
	AssetType AssetType                       `json:"assetType"`
	Years     *YearIndex[SimulationYearState] `json:"years"`
}

// SimulationResult is the immutable output of a run.
type SimulationResult struct {
	Accumulation  *YearIndex[SimulationYearState] `json:"accumulation"`
	Elements      []ElementProjection             `json:"elements"`
	ReturnHistory *YearIndex[decimal.Decimal]     `json:"returnHistory"`
	Seed          *int64                          `json:"seed,omitempty"`
	SegmentSeeds  map[string]int64                `json:"segmentSeeds,omitempty"`
	LossPot       LossOffsetPot                   `json:"lossPot"`
	Withdrawal    *WithdrawalResult               `json:"withdrawal,omitempty"`
}

// FinalCapital returns the aggregate end capital of the accumulation phase.
func (sr *SimulationResult) FinalCapital() decimal.Decimal {
	if sr == nil || sr.Accumulation == nil {
		return decimal.Zero
	}
	_, last, ok := sr.Accumulation.Last()
	if !ok {
		return decimal.Zero
	}
	return last.EndCapital
}

// TotalTaxPaid sums taxes across the accumulation and withdrawal phases.
func (sr *SimulationResult) TotalTaxPaid() decimal.Decimal {
	total := decimal.Zero
	if sr == nil {
		return total
	}
	sr.Accumulation.Each(func(_ int, s SimulationYearState) {
		total = total.Add(s.TaxPaid)
	})
	if sr.Withdrawal != nil {
		total = total.Add(sr.Withdrawal.TotalTax)
	}
	return total
}

// CapitalSeries returns the capital trajectory across both phases: the
// accumulation end capital followed by the withdrawal end capital per year.
func (sr *SimulationResult) CapitalSeries() []decimal.Decimal {
	var series []decimal.Decimal
	if sr == nil {
		return series
	}
	sr.Accumulation.Each(func(_ int, s SimulationYearState) {
		series = append(series, s.EndCapital)
	})
	if sr.Withdrawal != nil {
		sr.Withdrawal.Years.Each(func(_ int, s WithdrawalYearState) {
			series = append(series, s.EndCapital)
		})
	}
	return series
}
