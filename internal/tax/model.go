// Package tax implements German capital income taxation for fund savings:
// Vorabpauschale, Teilfreistellung, Sparerpauschbetrag, church tax and the
// two loss-offset pots.
package tax

import (
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

// IncomeKind distinguishes deemed income from realized sales.
type IncomeKind string

const (
	IncomeVorabpauschale IncomeKind = "vorabpauschale"
	IncomeRealized       IncomeKind = "realized"
)

// Income is one pre-exemption income item of a settlement period. Realized
// amounts may be negative (a loss).
type Income struct {
	AssetType domain.AssetType
	Kind      IncomeKind
	Amount    decimal.Decimal
}

// SettlementInput collects everything taxed in one period.
type SettlementInput struct {
	Items              []Income
	AllowanceRemaining decimal.Decimal
	Pot                domain.LossOffsetPot
}

// OffsetInput holds post-exemption amounts split by loss-offset eligibility.
type OffsetInput struct {
	EquityIncome       decimal.Decimal
	OtherIncome        decimal.Decimal
	AllowanceRemaining decimal.Decimal
	Pot                domain.LossOffsetPot
}

// Settlement is the result of taxing one period.
type Settlement struct {
	TaxableEquity      decimal.Decimal      `json:"taxableEquity"`
	TaxableOther       decimal.Decimal      `json:"taxableOther"`
	AllowanceUsed      decimal.Decimal      `json:"allowanceUsed"`
	AllowanceRemaining decimal.Decimal      `json:"allowanceRemaining"`
	CapitalGainsTax    decimal.Decimal      `json:"capitalGainsTax"`
	ChurchTax          decimal.Decimal      `json:"churchTax"`
	Tax                decimal.Decimal      `json:"tax"`
	Pot                domain.LossOffsetPot `json:"pot"`
	Breakdown          domain.TaxBreakdown  `json:"breakdown"`
}

// Model applies one set of tax parameters. It holds no per-run state; the
// allowance and loss pot are passed in and returned with every settlement.
type Model struct {
	params domain.TaxParameters
	rates  *BaseRateTable
}

// NewModel validates the parameters and builds the base-rate table.
func NewModel(params domain.TaxParameters) (*Model, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Model{
		params: params,
		rates:  NewBaseRateTable(params.BaseRates, params.ProjectedBaseRate),
	}, nil
}

// Params returns the parameters the model was built with.
func (m *Model) Params() domain.TaxParameters {
	return m.params
}

// BaseRates returns the resolved base-rate table.
func (m *Model) BaseRates() *BaseRateTable {
	return m.rates
}

// AnnualAllowance is the Sparerpauschbetrag available at the start of a year.
func (m *Model) AnnualAllowance() decimal.Decimal {
	return m.params.AnnualAllowance
}

// TaxableAmount applies the partial exemption of the asset type.
func (m *Model) TaxableAmount(asset domain.AssetType, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(1).Sub(m.params.ExemptionFor(asset)))
}

// Settle taxes a period's income items: partial exemption per item, then
// allowance, loss offset and tax in that order.
func (m *Model) Settle(in SettlementInput) Settlement {
	equity, other := decimal.Zero, decimal.Zero
	for _, item := range in.Items {
		taxable := m.TaxableAmount(item.AssetType, item.Amount)
		if item.Kind == IncomeRealized && item.AssetType.IsEquity() {
			equity = equity.Add(taxable)
		} else {
			other = other.Add(taxable)
		}
	}
	return m.Offset(OffsetInput{
		EquityIncome:       equity,
		OtherIncome:        other,
		AllowanceRemaining: in.AllowanceRemaining,
		Pot:                in.Pot,
	})
}

// Offset applies allowance, loss pots and tax to post-exemption income.
// Negative income of the period is added to the matching pot first. Stock
// losses only reduce equity income; other losses reduce other income first
// and then equity income.
func (m *Model) Offset(in OffsetInput) Settlement {
	pot := domain.LossOffsetPot{
		StockLosses: domain.ClampZero(in.Pot.StockLosses),
		OtherLosses: domain.ClampZero(in.Pot.OtherLosses),
	}
	equity, other := in.EquityIncome, in.OtherIncome
	if equity.IsNegative() {
		pot.StockLosses = pot.StockLosses.Add(equity.Neg())
		equity = decimal.Zero
	}
	if other.IsNegative() {
		pot.OtherLosses = pot.OtherLosses.Add(other.Neg())
		other = decimal.Zero
	}
	s := Settlement{TaxableEquity: equity, TaxableOther: other}
	s.Breakdown.StockLossesAvailable = pot.StockLosses
	s.Breakdown.OtherLossesAvailable = pot.OtherLosses

	allowance := domain.MinDecimal(domain.ClampZero(in.AllowanceRemaining), m.params.AnnualAllowance)
	fromOther := domain.MinDecimal(allowance, other)
	other = other.Sub(fromOther)
	fromEquity := domain.MinDecimal(allowance.Sub(fromOther), equity)
	equity = equity.Sub(fromEquity)
	s.AllowanceUsed = fromOther.Add(fromEquity)
	s.AllowanceRemaining = allowance.Sub(s.AllowanceUsed)

	withoutLosses := m.tax(equity.Add(other))

	stockUsed := domain.MinDecimal(pot.StockLosses, equity)
	equity = equity.Sub(stockUsed)

	otherUsedOther := domain.MinDecimal(pot.OtherLosses, other)
	other = other.Sub(otherUsedOther)
	otherUsedEquity := domain.MinDecimal(pot.OtherLosses.Sub(otherUsedOther), equity)
	equity = equity.Sub(otherUsedEquity)
	otherUsed := otherUsedOther.Add(otherUsedEquity)

	s.Pot = domain.LossOffsetPot{
		StockLosses: pot.StockLosses.Sub(stockUsed),
		OtherLosses: pot.OtherLosses.Sub(otherUsed),
	}

	taxable := equity.Add(other)
	s.CapitalGainsTax, s.ChurchTax = m.split(taxable)
	s.Tax = s.CapitalGainsTax.Add(s.ChurchTax)

	s.Breakdown.StockLossesUsed = stockUsed
	s.Breakdown.OtherLossesUsed = otherUsed
	s.Breakdown.RemainingLosses = s.Pot
	s.Breakdown.TaxableIncome = domain.RoundMoney(taxable)
	s.Breakdown.TaxSavings = withoutLosses.Sub(s.Tax)
	return s
}

// tax returns the total tax (capital gains plus church tax) on an amount.
func (m *Model) tax(taxable decimal.Decimal) decimal.Decimal {
	cgt, church := m.split(taxable)
	return cgt.Add(church)
}

func (m *Model) split(taxable decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	taxable = domain.ClampZero(taxable)
	cgt := domain.RoundMoney(taxable.Mul(m.params.CapitalGainsRate))
	if !m.params.ChurchTax {
		return cgt, decimal.Zero
	}
	return cgt, domain.RoundMoney(cgt.Mul(m.params.ChurchTaxRate))
}

// Apportion splits total across shares proportionally to weights. The last
// positive weight absorbs the rounding remainder so the parts sum to total.
func Apportion(total decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, len(weights))
	sum := decimal.Zero
	last := -1
	for i, w := range weights {
		if w.IsPositive() {
			sum = sum.Add(w)
			last = i
		}
	}
	if last < 0 || total.IsZero() {
		return out
	}
	assigned := decimal.Zero
	for i, w := range weights {
		if !w.IsPositive() {
			continue
		}
		if i == last {
			out[i] = total.Sub(assigned)
			break
		}
		out[i] = domain.RoundMoney(total.Mul(w).Div(sum))
		assigned = assigned.Add(out[i])
	}
	return out
}
