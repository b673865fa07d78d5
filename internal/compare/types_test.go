package compare

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(i int) *int { return &i }

// retirementRequest accumulates nothing for one year and then draws down a
// 100000 deposit over fifteen years at 5% return.
func retirementRequest() domain.SimulationRequest {
	return domain.SimulationRequest{
		Elements: []domain.ContributionElement{{
			ID:        "deposit",
			Kind:      domain.KindOneTime,
			Start:     time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
			Amount:    d("100000"),
			AssetType: domain.AssetOther,
		}},
		StartYear: 2025,
		EndYear:   2025,
		Frequency: domain.FrequencyYearly,
		Returns:   &domain.ReturnConfiguration{Mode: domain.ReturnFixed, Fixed: &domain.FixedReturn{Rate: decimal.Zero}},
		Tax: domain.TaxParameters{
			CapitalGainsRate:      domain.DefaultCapitalGainsRate,
			AnnualAllowance:       domain.DefaultAnnualAllowance,
			DisableVorabpauschale: true,
		},
		Withdrawal: &domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{{
			ID:              "retirement",
			StartYear:       2026,
			EndYear:         2040,
			Frequency:       domain.FrequencyYearly,
			Strategy:        domain.StrategyFixedPercentage,
			Returns:         domain.FixedReturnConfiguration(d("0.05")),
			FixedPercentage: &domain.FixedPercentageParams{Rate: d("0.04")},
		}}},
	}
}

func fixedPercentage(name, rate string) Alternative {
	return Alternative{
		Name: name,
		Template: domain.WithdrawalSegment{
			Strategy:        domain.StrategyFixedPercentage,
			FixedPercentage: &domain.FixedPercentageParams{Rate: d(rate)},
		},
	}
}

func TestMetricsCalculator_CalculateMetrics(t *testing.T) {
	years := domain.NewYearIndex[domain.WithdrawalYearState]()
	years.Set(2026, domain.WithdrawalYearState{Year: 2026, Withdrawal: d("4000")})
	years.Set(2027, domain.WithdrawalYearState{Year: 2027, Withdrawal: d("4100")})
	res := &domain.WithdrawalResult{
		Years:          years,
		TotalWithdrawn: d("8100"),
		TotalNet:       d("8000"),
		TotalTax:       d("100"),
		FinalCapital:   d("95000"),
	}
	plan := domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{{Strategy: domain.StrategyFixedPercentage}}}

	result := NewMetricsCalculator().CalculateMetrics("base", plan, res)

	if result.Name != "base" {
		t.Errorf("Expected name 'base', got %s", result.Name)
	}
	if !result.FirstYearWithdrawal.Equal(d("4000")) {
		t.Errorf("Expected first year withdrawal 4000, got %s", result.FirstYearWithdrawal)
	}
	if !result.AverageNet.Equal(d("4000")) {
		t.Errorf("Expected average net 4000, got %s", result.AverageNet)
	}
	if result.YearsFunded != 2 {
		t.Errorf("Expected 2 funded years, got %d", result.YearsFunded)
	}
	if !result.Sustainable() {
		t.Error("Expected plan without depletion to be sustainable")
	}
	if len(result.Strategies) != 1 || result.Strategies[0] != domain.StrategyFixedPercentage {
		t.Errorf("Unexpected strategies %v", result.Strategies)
	}

	res.DepletionYear = intPtr(2026)
	result = NewMetricsCalculator().CalculateMetrics("base", plan, res)
	if result.YearsFunded != 1 {
		t.Errorf("Expected 1 funded year after depletion in the first year, got %d", result.YearsFunded)
	}
}

func TestMetricsCalculator_CalculateComparison(t *testing.T) {
	base := StrategyResult{TotalNet: d("200000"), TotalTax: d("5000"), FinalCapital: d("10000"), YearsFunded: 30}
	alt := StrategyResult{TotalNet: d("210000"), TotalTax: d("4000"), FinalCapital: d("0"), YearsFunded: 27}

	alt = NewMetricsCalculator().CalculateComparison(alt, base)

	if !alt.NetDiffFromBase.Equal(d("10000")) {
		t.Errorf("Expected net diff 10000, got %s", alt.NetDiffFromBase)
	}
	if !alt.NetPctFromBase.Equal(d("5")) {
		t.Errorf("Expected 5%% change, got %s", alt.NetPctFromBase)
	}
	if alt.YearsFundedDiff != -3 {
		t.Errorf("Expected -3 years, got %d", alt.YearsFundedDiff)
	}
	if !alt.TaxDiffFromBase.Equal(d("-1000")) {
		t.Errorf("Expected tax diff -1000, got %s", alt.TaxDiffFromBase)
	}
	if !alt.FinalCapitalDiff.Equal(d("-10000")) {
		t.Errorf("Expected final capital diff -10000, got %s", alt.FinalCapitalDiff)
	}
}

func TestGenerateRecommendations(t *testing.T) {
	compSet := &StrategyComparisonResult{
		BaseResult: &StrategyResult{Name: "base", TotalNet: d("100000"), TotalTax: d("3000"), YearsFunded: 20, DepletionYear: intPtr(2045)},
		AlternativeResults: []StrategyResult{
			{Name: "rich", TotalNet: d("120000"), TotalTax: d("3500"), YearsFunded: 18, DepletionYear: intPtr(2043)},
			{Name: "steady", TotalNet: d("90000"), TotalTax: d("2000"), YearsFunded: 30},
		},
	}

	recs := GenerateRecommendations(compSet)
	if len(recs) != 4 {
		t.Fatalf("Expected 4 recommendations, got %d: %v", len(recs), recs)
	}
	if !strings.HasPrefix(recs[0], "Best Income: rich") {
		t.Errorf("Unexpected income recommendation %q", recs[0])
	}
	if recs[1] != "Best Longevity: steady funds 10 more years" {
		t.Errorf("Unexpected longevity recommendation %q", recs[1])
	}
	if !strings.HasPrefix(recs[2], "Lowest Taxes: steady") || !strings.Contains(recs[2], "€") {
		t.Errorf("Unexpected tax recommendation %q", recs[2])
	}
	if !strings.Contains(recs[3], "base depletes in 2045, steady lasts") {
		t.Errorf("Unexpected sustainability recommendation %q", recs[3])
	}

	if recs := GenerateRecommendations(&StrategyComparisonResult{BaseResult: compSet.BaseResult}); len(recs) != 0 {
		t.Errorf("Expected no recommendations without alternatives, got %v", recs)
	}
}

func TestApplyAlternative(t *testing.T) {
	plan := *retirementRequest().Withdrawal
	alt := DefaultAlternatives(plan)[1]

	out := ApplyAlternative(plan, alt)

	seg := out.Segments[0]
	if seg.ID != "retirement" || seg.StartYear != 2026 || seg.EndYear != 2040 {
		t.Errorf("Segment frame not kept: %+v", seg)
	}
	if seg.Strategy != domain.StrategyVariablePercentage || seg.VariablePercentage == nil {
		t.Errorf("Expected variable percentage strategy, got %s", seg.Strategy)
	}
	if seg.FixedPercentage != nil {
		t.Error("Expected the base parameter block to be replaced")
	}
	if plan.Segments[0].Strategy != domain.StrategyFixedPercentage {
		t.Error("Base plan must not be modified")
	}
}

func TestDefaultAlternatives(t *testing.T) {
	plan := domain.WithdrawalPlan{}
	if n := len(DefaultAlternatives(plan)); n != 4 {
		t.Errorf("Expected 4 alternatives without birth year, got %d", n)
	}
	plan.BirthYear = 1960
	alts := DefaultAlternatives(plan)
	if len(alts) != 5 || alts[4].Template.Strategy != domain.StrategyRMD {
		t.Errorf("Expected life expectancy alternative with a birth year, got %+v", alts)
	}
}

func TestCompareEngine_Compare(t *testing.T) {
	seed := int64(42)
	engine := NewCompareEngine(nil)

	compSet, err := engine.Compare(context.Background(), retirementRequest(), CompareOptions{
		Alternatives: []Alternative{fixedPercentage("five", "0.05"), fixedPercentage("twelve", "0.12")},
		Seed:         &seed,
	})
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if compSet.BaseName != "base" {
		t.Errorf("Expected default base name, got %s", compSet.BaseName)
	}
	if !compSet.AccumulatedCapital.Equal(d("100000")) {
		t.Errorf("Expected accumulated capital 100000, got %s", compSet.AccumulatedCapital)
	}
	if compSet.Seed == nil || *compSet.Seed != 42 {
		t.Errorf("Expected seed 42, got %v", compSet.Seed)
	}

	base := compSet.BaseResult
	if !base.FirstYearWithdrawal.Equal(d("4000")) {
		t.Errorf("Expected base first year 4000, got %s", base.FirstYearWithdrawal)
	}
	if !base.TotalWithdrawn.Equal(d("60000")) {
		t.Errorf("Expected 15 x 4000 withdrawn, got %s", base.TotalWithdrawn)
	}
	if !base.Sustainable() || base.YearsFunded != 15 {
		t.Errorf("Expected the 4%% plan to last 15 years, got %d", base.YearsFunded)
	}

	if len(compSet.AlternativeResults) != 2 {
		t.Fatalf("Expected 2 alternatives, got %d", len(compSet.AlternativeResults))
	}
	five, twelve := compSet.AlternativeResults[0], compSet.AlternativeResults[1]
	if !five.FirstYearWithdrawal.Equal(d("5000")) {
		t.Errorf("Expected 5000 in the first year, got %s", five.FirstYearWithdrawal)
	}
	if !five.NetDiffFromBase.IsPositive() {
		t.Errorf("Expected higher net income at 5%%, got %s", five.NetDiffFromBase)
	}
	if twelve.Sustainable() {
		t.Error("Expected 12% of the starting capital to deplete within 15 years")
	}
	if twelve.YearsFundedDiff >= 0 {
		t.Errorf("Expected fewer funded years, got %d", twelve.YearsFundedDiff)
	}
	if len(compSet.Recommendations) == 0 {
		t.Error("Expected recommendations")
	}
}

func TestCompareEngine_Errors(t *testing.T) {
	engine := NewCompareEngine(nil)

	req := retirementRequest()
	req.Withdrawal = nil
	_, err := engine.Compare(context.Background(), req, CompareOptions{})
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected configuration error without a withdrawal plan, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Compare(ctx, retirementRequest(), CompareOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	_, err = engine.Compare(context.Background(), retirementRequest(), CompareOptions{
		Alternatives: []Alternative{{Name: "broken", Template: domain.WithdrawalSegment{Strategy: domain.StrategyBucket}}},
	})
	if !errors.As(err, &cfgErr) {
		t.Errorf("Expected configuration error for missing bucket parameters, got %v", err)
	}
}
