package risk

import (
	"sort"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

// Sequence orders replayed by SequenceRisk.
const (
	OrderBest    = "best"
	OrderAsGiven = "as_given"
	OrderWorst   = "worst"
)

// SequenceInput is one multiset of yearly returns and the withdrawal
// schedule replayed against every ordering of it. Withdrawals must have one
// entry per return; each is taken at the start of its year.
type SequenceInput struct {
	StartingCapital decimal.Decimal
	Returns         []decimal.Decimal
	Withdrawals     []decimal.Decimal
}

// InflatedSchedule returns years withdrawals of amount growing by inflation
// each year.
func InflatedSchedule(amount, inflation decimal.Decimal, years int) []decimal.Decimal {
	out := make([]decimal.Decimal, years)
	for i := range out {
		out[i] = domain.RoundMoney(amount.Mul(domain.GrowthFactor(inflation, i)))
	}
	return out
}

// InputFromWithdrawal rebuilds the return multiset and withdrawal schedule of
// a completed withdrawal phase, so its as-given case reproduces the run
// without tax.
func InputFromWithdrawal(wr *domain.WithdrawalResult) (SequenceInput, error) {
	if wr == nil || wr.Years.Len() == 0 {
		return SequenceInput{}, domain.NewValidationError("withdrawal", "a completed withdrawal phase is required")
	}
	in := SequenceInput{}
	first := true
	wr.Years.Each(func(_ int, y domain.WithdrawalYearState) {
		if first {
			in.StartingCapital = y.StartCapital
			first = false
		}
		in.Returns = append(in.Returns, y.Rate)
		in.Withdrawals = append(in.Withdrawals, y.Withdrawal)
	})
	return in, nil
}

// SequenceRisk replays the returns sorted descending, as given and sorted
// ascending against the same withdrawals. With start-of-year withdrawals the
// descending order maximises and the ascending order minimises the final
// value, so best ≥ as given ≥ worst.
func SequenceRisk(in SequenceInput) (*domain.SequenceRiskAnalysis, error) {
	if len(in.Returns) == 0 {
		return nil, domain.NewValidationError("returns", "at least one yearly return is required")
	}
	if len(in.Withdrawals) != len(in.Returns) {
		return nil, domain.NewValidationError("withdrawals", "expected %d withdrawals, got %d", len(in.Returns), len(in.Withdrawals))
	}
	if in.StartingCapital.IsNegative() {
		return nil, domain.NewValidationError("starting_capital", "cannot be negative")
	}
	for i, w := range in.Withdrawals {
		if w.IsNegative() {
			return nil, domain.NewValidationError("withdrawals", "withdrawal %d is negative", i)
		}
	}
	minusOne := decimal.NewFromInt(-1)
	for i, r := range in.Returns {
		if r.LessThanOrEqual(minusOne) {
			return nil, domain.NewValidationError("returns", "return %d is %s, a loss of 100%% or more", i, r)
		}
	}

	best := append([]decimal.Decimal(nil), in.Returns...)
	sort.SliceStable(best, func(i, j int) bool { return best[i].GreaterThan(best[j]) })
	worst := append([]decimal.Decimal(nil), in.Returns...)
	sort.SliceStable(worst, func(i, j int) bool { return worst[i].LessThan(worst[j]) })

	sum := decimal.Zero
	for _, r := range in.Returns {
		sum = sum.Add(r)
	}

	a := &domain.SequenceRiskAnalysis{
		StartingCapital: in.StartingCapital,
		MeanReturn:      sum.Div(decimal.NewFromInt(int64(len(in.Returns)))).Round(6),
		BestCase:        replay(OrderBest, in.StartingCapital, best, in.Withdrawals),
		AverageCase:     replay(OrderAsGiven, in.StartingCapital, append([]decimal.Decimal(nil), in.Returns...), in.Withdrawals),
		WorstCase:       replay(OrderWorst, in.StartingCapital, worst, in.Withdrawals),
	}
	a.FinalValueSpread = a.BestCase.FinalPortfolioValue.Sub(a.WorstCase.FinalPortfolioValue)
	a.DepletionSpread = fundedYears(a.BestCase, len(in.Returns)) - fundedYears(a.WorstCase, len(in.Returns))
	a.RiskLevel = sequenceRiskLevel(a)
	return a, nil
}

func replay(order string, capital decimal.Decimal, rets, withdrawals []decimal.Decimal) domain.SequenceScenario {
	s := domain.SequenceScenario{Order: order, Returns: rets, Values: make([]decimal.Decimal, 0, len(rets))}
	for i, r := range rets {
		w := domain.MinDecimal(withdrawals[i], capital)
		capital = capital.Sub(w)
		s.TotalWithdrawn = s.TotalWithdrawn.Add(w)
		if capital.IsZero() && s.YearsUntilDepletion == nil && withdrawals[i].IsPositive() {
			n := i + 1
			s.YearsUntilDepletion = &n
		}
		capital = domain.RoundMoney(capital.Mul(decimal.NewFromInt(1).Add(r)))
		s.Values = append(s.Values, capital)
	}
	s.FinalPortfolioValue = capital
	return s
}

func fundedYears(s domain.SequenceScenario, horizon int) int {
	if s.YearsUntilDepletion == nil {
		return horizon
	}
	return *s.YearsUntilDepletion
}

// sequenceRiskLevel grades the best-to-worst spread relative to the as-given
// outcome. A worst case that runs dry while the best case does not is
// critical; one that runs dry earlier is at least high.
func sequenceRiskLevel(a *domain.SequenceRiskAnalysis) string {
	if a.WorstCase.YearsUntilDepletion != nil && a.BestCase.YearsUntilDepletion == nil {
		return "CRITICAL"
	}
	base := a.AverageCase.FinalPortfolioValue
	if !base.IsPositive() {
		base = a.StartingCapital
	}
	pct := 0.0
	if base.IsPositive() {
		pct = a.FinalValueSpread.Div(base).InexactFloat64() * 100
	}
	switch {
	case pct >= 30:
		return "CRITICAL"
	case pct >= 15 || a.DepletionSpread > 0:
		return "HIGH"
	case pct >= 5:
		return "MEDIUM"
	default:
		return "LOW"
	}
}
