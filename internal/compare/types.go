package compare

import (
	"fmt"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

// StrategyResult is one withdrawal plan evaluated on the shared accumulation
// phase, with its deltas against the base plan.
type StrategyResult struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Strategies  []domain.StrategyKind `json:"strategies"`

	// Key metrics
	FirstYearWithdrawal decimal.Decimal `json:"firstYearWithdrawal"`
	AverageNet          decimal.Decimal `json:"averageNet"`
	TotalWithdrawn      decimal.Decimal `json:"totalWithdrawn"`
	TotalNet            decimal.Decimal `json:"totalNet"`
	TotalTax            decimal.Decimal `json:"totalTax"`
	FinalCapital        decimal.Decimal `json:"finalCapital"`
	YearsFunded         int             `json:"yearsFunded"`
	DepletionYear       *int            `json:"depletionYear,omitempty"`

	// Comparison to base
	NetDiffFromBase  decimal.Decimal `json:"netDiffFromBase"`
	NetPctFromBase   decimal.Decimal `json:"netPctFromBase"`
	YearsFundedDiff  int             `json:"yearsFundedDiff"`
	TaxDiffFromBase  decimal.Decimal `json:"taxDiffFromBase"`
	FinalCapitalDiff decimal.Decimal `json:"finalCapitalDiff"`

	Result *domain.WithdrawalResult `json:"-"`
}

// Sustainable reports whether the plan funds its whole horizon.
func (r StrategyResult) Sustainable() bool {
	return r.DepletionYear == nil
}

// StrategyComparisonResult holds a base withdrawal plan and its alternatives,
// all run on identical return draws.
type StrategyComparisonResult struct {
	BaseName           string           `json:"baseName"`
	Seed               *int64           `json:"seed,omitempty"`
	AccumulatedCapital decimal.Decimal  `json:"accumulatedCapital"`
	BaseResult         *StrategyResult  `json:"baseResult"`
	AlternativeResults []StrategyResult `json:"alternativeResults"`
	Recommendations    []string         `json:"recommendations"`
	ConfigPath         string           `json:"configPath,omitempty"`
}

// All returns the base followed by the alternatives.
func (cs *StrategyComparisonResult) All() []StrategyResult {
	out := make([]StrategyResult, 0, len(cs.AlternativeResults)+1)
	if cs.BaseResult != nil {
		out = append(out, *cs.BaseResult)
	}
	return append(out, cs.AlternativeResults...)
}

// MetricsCalculator extracts comparison metrics from withdrawal results
type MetricsCalculator struct{}

// NewMetricsCalculator creates a new metrics calculator
func NewMetricsCalculator() *MetricsCalculator {
	return &MetricsCalculator{}
}

// CalculateMetrics computes the key metrics of one withdrawal result.
func (mc *MetricsCalculator) CalculateMetrics(name string, plan domain.WithdrawalPlan, res *domain.WithdrawalResult) StrategyResult {
	result := StrategyResult{
		Name:           name,
		TotalWithdrawn: res.TotalWithdrawn,
		TotalNet:       res.TotalNet,
		TotalTax:       res.TotalTax,
		FinalCapital:   res.FinalCapital,
		DepletionYear:  res.DepletionYear,
		YearsFunded:    res.Years.Len(),
		Result:         res,
	}
	for _, seg := range plan.Segments {
		result.Strategies = append(result.Strategies, seg.Strategy)
	}
	if n := res.YearsUntilDepletion(); n != nil {
		result.YearsFunded = *n
	}
	if _, first, ok := res.Years.First(); ok {
		result.FirstYearWithdrawal = first.Withdrawal
	}
	if years := res.Years.Len(); years > 0 {
		result.AverageNet = domain.RoundMoney(res.TotalNet.Div(decimal.NewFromInt(int64(years))))
	}
	return result
}

// CalculateComparison fills in the deltas of a result against the base.
func (mc *MetricsCalculator) CalculateComparison(alt, base StrategyResult) StrategyResult {
	alt.NetDiffFromBase = alt.TotalNet.Sub(base.TotalNet)
	if !base.TotalNet.IsZero() {
		alt.NetPctFromBase = alt.NetDiffFromBase.
			Div(base.TotalNet).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	alt.YearsFundedDiff = alt.YearsFunded - base.YearsFunded
	alt.TaxDiffFromBase = alt.TotalTax.Sub(base.TotalTax)
	alt.FinalCapitalDiff = alt.FinalCapital.Sub(base.FinalCapital)
	return alt
}

// GenerateRecommendations names the alternatives that beat the base on net
// income, longevity and taxes.
func GenerateRecommendations(cs *StrategyComparisonResult) []string {
	recommendations := []string{}
	if cs.BaseResult == nil || len(cs.AlternativeResults) == 0 {
		return recommendations
	}

	best := func(better func(a, b *StrategyResult) bool) *StrategyResult {
		pick := cs.BaseResult
		for i := range cs.AlternativeResults {
			if better(&cs.AlternativeResults[i], pick) {
				pick = &cs.AlternativeResults[i]
			}
		}
		return pick
	}

	if r := best(func(a, b *StrategyResult) bool { return a.TotalNet.GreaterThan(b.TotalNet) }); r != cs.BaseResult {
		recommendations = append(recommendations, fmt.Sprintf("Best Income: %s pays out %s more after tax than %s",
			r.Name, domain.FormatEUR(r.TotalNet.Sub(cs.BaseResult.TotalNet)), cs.BaseResult.Name))
	}

	if r := best(func(a, b *StrategyResult) bool { return a.YearsFunded > b.YearsFunded }); r != cs.BaseResult {
		recommendations = append(recommendations, fmt.Sprintf("Best Longevity: %s funds %d more years",
			r.Name, r.YearsFunded-cs.BaseResult.YearsFunded))
	}

	if r := best(func(a, b *StrategyResult) bool { return a.TotalTax.LessThan(b.TotalTax) }); r != cs.BaseResult {
		recommendations = append(recommendations, fmt.Sprintf("Lowest Taxes: %s saves %s in capital gains tax",
			r.Name, domain.FormatEUR(cs.BaseResult.TotalTax.Sub(r.TotalTax))))
	}

	if !cs.BaseResult.Sustainable() {
		for _, alt := range cs.AlternativeResults {
			if alt.Sustainable() {
				recommendations = append(recommendations, fmt.Sprintf("Sustainability: %s depletes in %d, %s lasts the whole horizon",
					cs.BaseResult.Name, *cs.BaseResult.DepletionYear, alt.Name))
				break
			}
		}
	}

	return recommendations
}
