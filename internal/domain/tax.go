package domain

import (
	"github.com/shopspring/decimal"
)

// German capital income tax defaults.
var (
	DefaultCapitalGainsRate = decimal.NewFromFloat(0.26375) // 25% + 5.5% solidarity surcharge
	DefaultAnnualAllowance  = decimal.NewFromInt(1000)
	DefaultChurchTaxRate    = decimal.NewFromFloat(0.09)
	// BaseYieldFactor is the 70% applied to the base rate for the Basisertrag.
	BaseYieldFactor = decimal.NewFromFloat(0.7)
)

// DefaultPartialExemption is the statutory Teilfreistellung per fund type.
var DefaultPartialExemption = map[AssetType]decimal.Decimal{
	AssetEquityFund:     decimal.NewFromFloat(0.30),
	AssetMixedFund:      decimal.NewFromFloat(0.15),
	AssetRealEstateFund: decimal.NewFromFloat(0.60),
	AssetOther:          decimal.Zero,
}

// RateSource records where a base-rate entry came from.
type RateSource string

const (
	RateSourceAPI      RateSource = "api"
	RateSourceManual   RateSource = "manual"
	RateSourceFallback RateSource = "fallback"
)

// BaseRateEntry is one year of the Basiszins table.
type BaseRateEntry struct {
	Rate   decimal.Decimal `yaml:"rate" json:"rate"`
	Source RateSource      `yaml:"source" json:"source"`
}

// TaxParameters holds every input of the tax model.
type TaxParameters struct {
	CapitalGainsRate      decimal.Decimal               `yaml:"capital_gains_rate" json:"capitalGainsRate"`
	PartialExemption      map[AssetType]decimal.Decimal `yaml:"partial_exemption,omitempty" json:"partialExemption,omitempty"`
	AnnualAllowance       decimal.Decimal               `yaml:"annual_allowance" json:"annualAllowance"`
	ChurchTax             bool                          `yaml:"church_tax" json:"churchTax"`
	ChurchTaxRate         decimal.Decimal               `yaml:"church_tax_rate" json:"churchTaxRate"`
	DisableVorabpauschale bool                          `yaml:"disable_vorabpauschale" json:"disableVorabpauschale"`
	BaseRates             map[int]BaseRateEntry         `yaml:"base_rates,omitempty" json:"baseRates,omitempty"`
	ProjectedBaseRate     *decimal.Decimal              `yaml:"projected_base_rate,omitempty" json:"projectedBaseRate,omitempty"`
}

// ExemptionFor returns the partial exemption applying to an asset type,
// preferring a configured override.
func (tp TaxParameters) ExemptionFor(asset AssetType) decimal.Decimal {
	if v, ok := tp.PartialExemption[asset]; ok {
		return v
	}
	return DefaultPartialExemption[asset]
}

// Validate checks rates and allowance ranges.
func (tp TaxParameters) Validate() error {
	if tp.CapitalGainsRate.IsNegative() || tp.CapitalGainsRate.GreaterThanOrEqual(one) {
		return NewValidationError("tax.capital_gains_rate", "must be within [0, 1)")
	}
	if tp.AnnualAllowance.IsNegative() {
		return NewValidationError("tax.annual_allowance", "cannot be negative")
	}
	if tp.ChurchTax && (tp.ChurchTaxRate.IsNegative() || tp.ChurchTaxRate.GreaterThan(decimal.NewFromFloat(0.2))) {
		return NewValidationError("tax.church_tax_rate", "must be within [0, 0.2]")
	}
	for asset, v := range tp.PartialExemption {
		if !asset.Valid() {
			return NewValidationError("tax.partial_exemption", "unknown asset type %q", asset)
		}
		if v.IsNegative() || v.GreaterThan(one) {
			return NewValidationError("tax.partial_exemption."+string(asset), "must be within [0, 1]")
		}
	}
	return nil
}

// LossOffsetPot carries unused capital losses forward. Equity losses only
// offset equity gains; other losses offset any capital income.
type LossOffsetPot struct {
	StockLosses decimal.Decimal `yaml:"stock_losses" json:"stockLosses"`
	OtherLosses decimal.Decimal `yaml:"other_losses" json:"otherLosses"`
}

// Total returns the sum of both pots.
func (p LossOffsetPot) Total() decimal.Decimal {
	return p.StockLosses.Add(p.OtherLosses)
}

// TaxBreakdown documents how a period's tax was derived.
type TaxBreakdown struct {
	StockLossesAvailable decimal.Decimal `json:"stockLossesAvailable"`
	OtherLossesAvailable decimal.Decimal `json:"otherLossesAvailable"`
	StockLossesUsed      decimal.Decimal `json:"stockLossesUsed"`
	OtherLossesUsed      decimal.Decimal `json:"otherLossesUsed"`
	TaxSavings           decimal.Decimal `json:"taxSavings"`
	RemainingLosses      LossOffsetPot   `json:"remainingLosses"`
	TaxableIncome        decimal.Decimal `json:"taxableIncome"`
}
