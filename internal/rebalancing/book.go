package rebalancing

import (
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/rgehrsitz/zinsplan/internal/tax"
	"github.com/shopspring/decimal"
)

// book holds value and cost basis per asset class. classes keeps the
// declaration order so every split and report is deterministic.
type book struct {
	classes []string
	target  []decimal.Decimal
	value   map[string]decimal.Decimal
	basis   map[string]decimal.Decimal
}

// newBook invests capital at the target weights. The opening positions are
// taken as already held, so their basis equals their value and no trade is
// recorded.
func newBook(assets []domain.AssetClass, capital decimal.Decimal) *book {
	b := &book{
		value: make(map[string]decimal.Decimal, len(assets)),
		basis: make(map[string]decimal.Decimal, len(assets)),
	}
	for _, a := range assets {
		b.classes = append(b.classes, a.Name)
		b.target = append(b.target, a.TargetWeight)
	}
	for i, amount := range tax.Apportion(capital, b.target) {
		b.value[b.classes[i]] = amount
		b.basis[b.classes[i]] = amount
	}
	return b
}

func (b *book) total() decimal.Decimal {
	sum := decimal.Zero
	for _, c := range b.classes {
		sum = sum.Add(b.value[c])
	}
	return sum
}

func (b *book) values() []decimal.Decimal {
	out := make([]decimal.Decimal, len(b.classes))
	for i, c := range b.classes {
		out[i] = b.value[c]
	}
	return out
}

func (b *book) snapshot() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(b.classes))
	for _, c := range b.classes {
		out[c] = b.value[c]
	}
	return out
}

func (b *book) weights() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(b.classes))
	total := b.total()
	for _, c := range b.classes {
		if total.IsPositive() {
			out[c] = b.value[c].Div(total).Round(6)
		} else {
			out[c] = decimal.Zero
		}
	}
	return out
}

// maxDrift is the largest absolute distance of a current weight from its
// target.
func (b *book) maxDrift() decimal.Decimal {
	total := b.total()
	if !total.IsPositive() {
		return decimal.Zero
	}
	drift := decimal.Zero
	for i, c := range b.classes {
		drift = domain.MaxDecimal(drift, b.value[c].Div(total).Sub(b.target[i]).Abs())
	}
	return drift.Round(6)
}

// grow applies each class's rate for the year.
func (b *book) grow(rates map[string]decimal.Decimal) {
	for _, c := range b.classes {
		b.value[c] = domain.RoundMoney(b.value[c].Mul(decimal.NewFromInt(1).Add(rates[c])))
	}
}

// buy invests amount less cost. Purchase costs are part of the basis.
func (b *book) buy(class string, amount, cost decimal.Decimal) {
	b.value[class] = b.value[class].Add(amount.Sub(cost))
	b.basis[class] = b.basis[class].Add(amount)
}

// gainOn is the gain that selling amount of class would realize, with the
// basis taken proportionally to the share sold.
func (b *book) gainOn(class string, amount decimal.Decimal) (gain, basisOut decimal.Decimal) {
	v := b.value[class]
	if !v.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	basisOut = domain.RoundMoney(b.basis[class].Mul(amount).Div(v))
	return amount.Sub(basisOut), basisOut
}

// sell removes amount, at most the class value, from class and returns the
// amount sold and the realized gain.
func (b *book) sell(class string, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	amount = domain.MinDecimal(amount, domain.ClampZero(b.value[class]))
	gain, basisOut := b.gainOn(class, amount)
	b.value[class] = b.value[class].Sub(amount)
	b.basis[class] = b.basis[class].Sub(basisOut)
	return amount, gain
}

// byTarget splits amount across classes by target weight.
func (b *book) byTarget(amount decimal.Decimal) []decimal.Decimal {
	return tax.Apportion(amount, b.target)
}

// byValue splits amount across classes by current value.
func (b *book) byValue(amount decimal.Decimal) []decimal.Decimal {
	return tax.Apportion(amount, b.values())
}

// towardTarget directs a contribution to the classes below target after the
// contribution, in proportion to their gaps. The gaps of the underweight
// classes always sum to at least the contribution.
func (b *book) towardTarget(amount decimal.Decimal) []decimal.Decimal {
	after := b.total().Add(amount)
	gaps := make([]decimal.Decimal, len(b.classes))
	for i, c := range b.classes {
		gaps[i] = domain.ClampZero(b.target[i].Mul(after).Sub(b.value[c]))
	}
	return tax.Apportion(amount, gaps)
}

// fromOverweight funds a withdrawal from the classes above target after the
// withdrawal, in proportion to their excess.
func (b *book) fromOverweight(amount decimal.Decimal) []decimal.Decimal {
	after := b.total().Sub(amount)
	excess := make([]decimal.Decimal, len(b.classes))
	for i, c := range b.classes {
		excess[i] = domain.ClampZero(b.value[c].Sub(b.target[i].Mul(after)))
	}
	return tax.Apportion(amount, excess)
}

// rebalanceGaps returns the signed trade per class that restores the target
// allocation. Trades smaller than minimum are dropped.
func (b *book) rebalanceGaps(minimum decimal.Decimal) []decimal.Decimal {
	total := b.total()
	out := make([]decimal.Decimal, len(b.classes))
	for i, c := range b.classes {
		gap := domain.RoundMoney(b.target[i].Mul(total).Sub(b.value[c]))
		if gap.Abs().LessThan(minimum) {
			continue
		}
		out[i] = gap
	}
	return out
}

// costOf charges the percentage and fixed fee of a trade, never more than
// the trade itself.
func costOf(m domain.TransactionCostModel, amount decimal.Decimal) decimal.Decimal {
	if amount.IsZero() {
		return decimal.Zero
	}
	cost := domain.RoundMoney(amount.Abs().Mul(m.Percentage).Add(m.FixedPerTrade))
	return domain.MinDecimal(cost, amount.Abs())
}
