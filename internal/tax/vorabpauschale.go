package tax

import (
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

// VorabpauschaleInput describes one fund holding over one calendar year.
type VorabpauschaleInput struct {
	Year       int
	StartValue decimal.Decimal
	Gain       decimal.Decimal
	MonthsHeld int
	AssetType  domain.AssetType
}

// VorabpauschaleResult is the deemed income of a year, before and after the
// partial exemption.
type VorabpauschaleResult struct {
	BaseRate       domain.BaseRateEntry `json:"baseRate"`
	Basisertrag    decimal.Decimal      `json:"basisertrag"`
	Vorabpauschale decimal.Decimal      `json:"vorabpauschale"`
	Taxable        decimal.Decimal      `json:"taxable"`
}

// Vorabpauschale computes the deemed income of a holding: the lesser of
// start value × base rate × 70% and the actual gain, pro-rated by the months
// held in the purchase year. Negative base rates and losses yield zero.
func (m *Model) Vorabpauschale(in VorabpauschaleInput) (VorabpauschaleResult, error) {
	if m.params.DisableVorabpauschale {
		return VorabpauschaleResult{}, nil
	}
	entry, err := m.rates.Lookup(in.Year)
	if err != nil {
		return VorabpauschaleResult{}, err
	}
	res := VorabpauschaleResult{BaseRate: entry}
	if in.MonthsHeld <= 0 || !in.StartValue.IsPositive() {
		return res, nil
	}
	months := in.MonthsHeld
	if months > 12 {
		months = 12
	}
	basis := in.StartValue.
		Mul(domain.ClampZero(entry.Rate)).
		Mul(domain.BaseYieldFactor).
		Mul(decimal.NewFromInt(int64(months))).
		Div(domain.MonthsPerYear)
	res.Basisertrag = domain.RoundMoney(basis)
	res.Vorabpauschale = domain.MinDecimal(res.Basisertrag, domain.RoundMoney(domain.ClampZero(in.Gain)))
	res.Taxable = domain.RoundMoney(m.TaxableAmount(in.AssetType, res.Vorabpauschale))
	return res, nil
}

// Sale describes selling part of a holding.
type Sale struct {
	Capital                   decimal.Decimal
	CostBasis                 decimal.Decimal
	AccumulatedVorabpauschale decimal.Decimal
	Amount                    decimal.Decimal
}

// SaleResult splits a sale into the realized gain and the share of cost
// basis and taxed Vorabpauschale that leave the holding with it.
type SaleResult struct {
	Share              decimal.Decimal `json:"share"`
	RealizedGain       decimal.Decimal `json:"realizedGain"`
	BasisSold          decimal.Decimal `json:"basisSold"`
	VorabpauschaleSold decimal.Decimal `json:"vorabpauschaleSold"`
}

// RealizedGain returns the gain realized by a sale. The Vorabpauschale
// already taxed on the sold share is deducted so it is not taxed twice. The
// result is negative when the sold share is underwater.
func RealizedGain(s Sale) SaleResult {
	if !s.Capital.IsPositive() || !s.Amount.IsPositive() {
		return SaleResult{}
	}
	amount := domain.MinDecimal(s.Amount, s.Capital)
	share := amount.Div(s.Capital)
	basisSold := domain.RoundMoney(s.CostBasis.Mul(share))
	vorabSold := domain.RoundMoney(s.AccumulatedVorabpauschale.Mul(share))
	return SaleResult{
		Share:              share,
		RealizedGain:       domain.RoundMoney(amount.Sub(basisSold).Sub(vorabSold)),
		BasisSold:          basisSold,
		VorabpauschaleSold: vorabSold,
	}
}
