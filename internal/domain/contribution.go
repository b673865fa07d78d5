package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ElementKind distinguishes recurring savings plans from one-time deposits.
type ElementKind string

const (
	KindSavingsPlan ElementKind = "savings_plan"
	KindOneTime     ElementKind = "one_time"
)

// AssetType drives the partial exemption (Teilfreistellung) and which loss
// pot a loss or gain belongs to.
type AssetType string

const (
	AssetEquityFund     AssetType = "equity_fund"
	AssetMixedFund      AssetType = "mixed_fund"
	AssetRealEstateFund AssetType = "real_estate_fund"
	AssetOther          AssetType = "other"
)

// IsEquity reports whether gains of this asset type are equity gains for
// loss-offset purposes.
func (a AssetType) IsEquity() bool {
	return a == AssetEquityFund
}

// Valid reports whether a is a known asset type.
func (a AssetType) Valid() bool {
	switch a {
	case AssetEquityFund, AssetMixedFund, AssetRealEstateFund, AssetOther:
		return true
	}
	return false
}

// ElementPhase is the lifecycle state of a contribution element in a given year.
type ElementPhase string

const (
	PhaseIdle         ElementPhase = "idle"
	PhaseContributing ElementPhase = "contributing"
	PhaseMatured      ElementPhase = "matured"
)

// ContributionElement is one savings-plan row or one-time deposit.
// Amount is the yearly contribution for savings plans and the lump sum for
// one-time deposits. InitialGain is the unrealized gain already embedded in a
// one-time deposit; it lowers the cost basis.
type ContributionElement struct {
	ID          string          `yaml:"id" json:"id"`
	Kind        ElementKind     `yaml:"kind" json:"kind"`
	Start       time.Time       `yaml:"start" json:"start"`
	End         *time.Time      `yaml:"end,omitempty" json:"end,omitempty"`
	Amount      decimal.Decimal `yaml:"amount" json:"amount"`
	InitialGain decimal.Decimal `yaml:"initial_gain,omitempty" json:"initialGain,omitempty"`
	AssetType   AssetType       `yaml:"asset_type" json:"assetType"`
}

// Validate checks the element for internal consistency.
func (e ContributionElement) Validate() error {
	field := "elements[" + e.ID + "]"
	if e.ID == "" {
		return NewValidationError("elements.id", "element id is required")
	}
	if e.Kind != KindSavingsPlan && e.Kind != KindOneTime {
		return NewValidationError(field+".kind", "unknown element kind %q", e.Kind)
	}
	if e.Start.IsZero() {
		return NewValidationError(field+".start", "start date is required")
	}
	if e.End != nil && e.End.Before(e.Start) {
		return NewValidationError(field+".end", "end date %s is before start date %s",
			e.End.Format("2006-01-02"), e.Start.Format("2006-01-02"))
	}
	if e.Amount.IsNegative() {
		return NewValidationError(field+".amount", "contribution cannot be negative (got %s)", e.Amount.String())
	}
	if e.InitialGain.IsNegative() {
		return NewValidationError(field+".initial_gain", "initial gain cannot be negative")
	}
	if e.InitialGain.GreaterThan(e.Amount) {
		return NewValidationError(field+".initial_gain", "initial gain cannot exceed the deposit amount")
	}
	if e.Kind == KindSavingsPlan && e.InitialGain.IsPositive() {
		return NewValidationError(field+".initial_gain", "only one-time deposits carry an initial gain")
	}
	if !e.AssetType.Valid() {
		return NewValidationError(field+".asset_type", "unknown asset type %q", e.AssetType)
	}
	return nil
}

// PhaseInYear returns the element's lifecycle phase for a calendar year.
func (e ContributionElement) PhaseInYear(year int) ElementPhase {
	switch {
	case year < e.Start.Year():
		return PhaseIdle
	case e.Kind == KindOneTime:
		if year == e.Start.Year() {
			return PhaseContributing
		}
		return PhaseMatured
	case e.End != nil && year > e.End.Year():
		return PhaseMatured
	default:
		return PhaseContributing
	}
}

// ActiveInMonth reports whether a savings plan pays in during the given month.
func (e ContributionElement) ActiveInMonth(year int, month time.Month) bool {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	startMonth := time.Date(e.Start.Year(), e.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	if first.Before(startMonth) {
		return false
	}
	if e.End != nil {
		endMonth := time.Date(e.End.Year(), e.End.Month(), 1, 0, 0, 0, 0, time.UTC)
		if first.After(endMonth) {
			return false
		}
	}
	return true
}

// MonthsHeldInYear returns how many months of the year the money was
// invested, used to pro-rate the Vorabpauschale in the purchase year.
func (e ContributionElement) MonthsHeldInYear(year int) int {
	if year < e.Start.Year() {
		return 0
	}
	if year == e.Start.Year() {
		return 13 - int(e.Start.Month())
	}
	return 12
}

// CostBasis returns the acquisition cost of a one-time deposit.
func (e ContributionElement) CostBasis() decimal.Decimal {
	return e.Amount.Sub(e.InitialGain)
}
