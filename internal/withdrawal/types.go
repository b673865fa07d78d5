// Package withdrawal drives the decumulation phase: a family of withdrawal
// strategies chained over contiguous year segments.
package withdrawal

import (
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/rgehrsitz/zinsplan/internal/tax"
	"github.com/shopspring/decimal"
)

// TaxOracle returns the settlement that selling amount at the start of the
// current period would produce, including the Vorabpauschale the remaining
// holdings owe for the year. Strategies use it to compare candidates without
// a tax engine of their own.
type TaxOracle func(amount decimal.Decimal) tax.Settlement

// State is carried from one period of a segment to the next.
// InitialCapital: capital when the segment began
// PriorReturn: portfolio return of the previous period (nil in the very first period)
// PriorWithdrawal: gross withdrawal of the previous period
// Cash: cash bucket balance, only used by the bucket strategy
type State struct {
	InitialCapital  decimal.Decimal
	PriorReturn     *decimal.Decimal
	PriorWithdrawal decimal.Decimal
	Cash            *decimal.Decimal
}

// Period describes the year being planned.
// Index: zero-based year within the segment
// Capital: portfolio value at the start of the year, before withdrawal
// Rate: portfolio return the generator produced for the year
// InflationFactor: (1 + inflation)^Index
// Age: age reached in Year, zero when no birth year is known
type Period struct {
	Year            int
	Index           int
	Capital         decimal.Decimal
	Rate            decimal.Decimal
	InflationFactor decimal.Decimal
	Age             int
	Oracle          TaxOracle
}

// Decision is a strategy's answer for one period.
// Amount: gross withdrawal, already capped at Capital
// GrowthRate: return applied to the capital left after the withdrawal
// Cash: cash bucket after the period (bucket strategy only)
type Decision struct {
	Amount     decimal.Decimal
	GrowthRate decimal.Decimal
	Cash       *decimal.Decimal
}

// Strategy defines the interface of all withdrawal strategies.
type Strategy interface {
	Name() string
	Kind() domain.StrategyKind
	Plan(prior State, p Period) (Decision, error)
}

// withdraw caps amount to the available capital and keeps the period rate.
func (p Period) withdraw(amount decimal.Decimal) Decision {
	amount = domain.RoundMoney(domain.ClampZero(amount))
	return Decision{Amount: domain.MinDecimal(amount, p.Capital), GrowthRate: p.Rate}
}

// Holding is the part of the portfolio held in one fund type.
type Holding struct {
	AssetType                 domain.AssetType `json:"assetType"`
	Capital                   decimal.Decimal  `json:"capital"`
	CostBasis                 decimal.Decimal  `json:"costBasis"`
	AccumulatedVorabpauschale decimal.Decimal  `json:"accumulatedVorabpauschale"`
}

// Portfolio is the set of holdings entering the withdrawal phase.
type Portfolio []Holding

// Total returns the combined capital.
func (p Portfolio) Total() decimal.Decimal {
	total := decimal.Zero
	for _, h := range p {
		total = total.Add(h.Capital)
	}
	return total
}

// Clone returns a deep copy so a run never mutates its caller's input.
func (p Portfolio) Clone() Portfolio {
	out := make(Portfolio, len(p))
	copy(out, p)
	return out
}
