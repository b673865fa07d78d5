package withdrawal

import (
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	defaultSearchSteps = 20
	bisectIterations   = 40
)

// TaxOptimizedStrategy searches [MinAmount, MaxAmount] for the withdrawal
// that best serves the objective, asking the tax oracle for every candidate.
//
// minimize_taxes picks the lowest effective tax rate, preferring the larger
// amount on ties, which lands on the point where the allowance is exactly
// used up. maximize_after_tax picks the largest net amount. balanced takes
// the midpoint between those two answers.
type TaxOptimizedStrategy struct {
	params domain.TaxOptimizedParams
}

func NewTaxOptimizedStrategy(params domain.TaxOptimizedParams) *TaxOptimizedStrategy {
	if params.Objective == "" {
		params.Objective = domain.ObjectiveMinimizeTaxes
	}
	if params.Steps <= 0 {
		params.Steps = defaultSearchSteps
	}
	return &TaxOptimizedStrategy{params: params}
}

func (s *TaxOptimizedStrategy) Name() string { return "Tax optimized" }

func (s *TaxOptimizedStrategy) Kind() domain.StrategyKind { return domain.StrategyTaxOptimized }

type candidate struct {
	amount decimal.Decimal
	tax    decimal.Decimal
}

func (c candidate) net() decimal.Decimal { return c.amount.Sub(c.tax) }

func (c candidate) effectiveRate() decimal.Decimal {
	if !c.amount.IsPositive() {
		return decimal.Zero
	}
	return c.tax.Div(c.amount)
}

func (s *TaxOptimizedStrategy) Plan(_ State, p Period) (Decision, error) {
	if p.Oracle == nil {
		return Decision{}, domain.NewConfigurationError("withdrawal", "tax optimized strategy needs a tax oracle")
	}
	hi := domain.MinDecimal(s.params.MaxAmount, p.Capital)
	lo := domain.MinDecimal(s.params.MinAmount, hi)

	cands := s.candidates(lo, hi, p.Oracle)
	minTax := bestBy(cands, func(a, b candidate) bool {
		ra, rb := a.effectiveRate(), b.effectiveRate()
		if !ra.Equal(rb) {
			return ra.LessThan(rb)
		}
		return a.amount.GreaterThan(b.amount)
	})
	maxNet := bestBy(cands, func(a, b candidate) bool {
		if !a.net().Equal(b.net()) {
			return a.net().GreaterThan(b.net())
		}
		return a.tax.LessThan(b.tax)
	})

	switch s.params.Objective {
	case domain.ObjectiveMaximizeAfterTax:
		return p.withdraw(maxNet.amount), nil
	case domain.ObjectiveBalanced:
		return p.withdraw(minTax.amount.Add(maxNet.amount).Div(decimal.NewFromInt(2))), nil
	default:
		return p.withdraw(minTax.amount), nil
	}
}

// candidates evaluates an even grid over [lo, hi] plus, when the lower bound
// is still tax free, the largest tax-free amount found by bisection.
func (s *TaxOptimizedStrategy) candidates(lo, hi decimal.Decimal, oracle TaxOracle) []candidate {
	eval := func(a decimal.Decimal) candidate {
		a = domain.RoundMoney(a)
		return candidate{amount: a, tax: oracle(a).Tax}
	}

	out := make([]candidate, 0, s.params.Steps+2)
	span := hi.Sub(lo)
	steps := decimal.NewFromInt(int64(s.params.Steps))
	for k := 0; k <= s.params.Steps; k++ {
		out = append(out, eval(lo.Add(span.Mul(decimal.NewFromInt(int64(k))).Div(steps))))
	}

	if out[0].tax.IsZero() && !out[len(out)-1].tax.IsZero() {
		a, b := lo, hi
		for i := 0; i < bisectIterations && b.Sub(a).GreaterThan(decimal.NewFromFloat(0.01)); i++ {
			mid := a.Add(b).Div(decimal.NewFromInt(2))
			if oracle(domain.RoundMoney(mid)).Tax.IsZero() {
				a = mid
			} else {
				b = mid
			}
		}
		out = append(out, eval(a.RoundFloor(2)))
	}
	return out
}

func bestBy(cands []candidate, better func(a, b candidate) bool) candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best
}
