package rebalancing

import (
	"context"
	"errors"
	"testing"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// sixtyForty grows equity 10% and bonds 0% every year, so the equity sleeve
// drifts upwards deterministically.
func sixtyForty() domain.RebalancingRequest {
	return domain.RebalancingRequest{
		StartYear:      2025,
		EndYear:        2027,
		InitialCapital: d("100000"),
		Returns: domain.ReturnConfiguration{Mode: domain.ReturnMultiAsset, MultiAsset: &domain.MultiAssetReturn{
			Assets: []domain.AssetClass{
				{Name: "equity", TargetWeight: d("0.6"), ExpectedReturn: d("0.1")},
				{Name: "bonds", TargetWeight: d("0.4"), ExpectedReturn: decimal.Zero},
			},
		}},
		AssetTypes: map[string]domain.AssetType{"equity": domain.AssetEquityFund},
		Tax: domain.TaxParameters{
			CapitalGainsRate: domain.DefaultCapitalGainsRate,
			AnnualAllowance:  domain.DefaultAnnualAllowance,
		},
	}
}

func mustRun(t *testing.T, req domain.RebalancingRequest, policy domain.RebalancingPolicy) *domain.RebalancingRun {
	t.Helper()
	sim, err := NewSimulator(req)
	require.NoError(t, err)
	run, err := sim.Run(policy)
	require.NoError(t, err)
	return run
}

func TestRun_CalendarRestoresTargetEveryYear(t *testing.T) {
	run := mustRun(t, sixtyForty(), domain.RebalancingPolicy{Kind: domain.PolicyCalendar, IntervalYears: 1})

	assert.Equal(t, 3, run.RebalanceCount)
	assert.True(t, run.TotalTax.IsZero(), "gains stay within the allowance, got %s", run.TotalTax)
	assert.True(t, run.FinalValue.Equal(d("119101.6")), "Expected 119101.6, got %s", run.FinalValue)

	first, ok := run.Years.Get(2025)
	require.True(t, ok)
	assert.True(t, first.MaxDrift.Equal(d("0.022642")), "got %s", first.MaxDrift)
	assert.True(t, first.Values["equity"].Equal(d("63600")))
	assert.True(t, first.Weights["equity"].Equal(d("0.6")))
	assert.InDelta(t, 0.06, first.Return, 1e-9)
	assert.InDelta(t, 0.06, first.BenchmarkReturn, 1e-9)

	require.GreaterOrEqual(t, len(run.Transactions), 2)
	sale := run.Transactions[0]
	assert.Equal(t, "equity", sale.Asset)
	assert.Equal(t, domain.TradeRebalance, sale.Reason)
	assert.True(t, sale.Amount.Equal(d("-2400")))
	assert.True(t, sale.RealizedGain.Equal(d("218.18")), "got %s", sale.RealizedGain)
	assert.True(t, run.Transactions[1].Amount.Equal(d("2400")))

	assert.InDelta(t, 0.06, run.AnnualizedReturn, 1e-9)
	assert.InDelta(t, 0, run.TrackingError, 1e-9, "a yearly rebalanced portfolio tracks its target")
}

func TestRun_ThresholdWaitsForDrift(t *testing.T) {
	run := mustRun(t, sixtyForty(), domain.RebalancingPolicy{Kind: domain.PolicyThreshold, Threshold: d("0.05")})

	assert.Equal(t, 1, run.RebalanceCount)
	y, _ := run.Years.Get(2026)
	assert.False(t, y.Rebalanced, "drift of 4.5 points stays inside the band")
	y, _ = run.Years.Get(2027)
	assert.True(t, y.Rebalanced)

	require.Len(t, run.Transactions, 2)
	sale := run.Transactions[0]
	assert.True(t, sale.Amount.Equal(d("-7944")))
	assert.True(t, sale.RealizedGain.Equal(d("1975.56")), "got %s", sale.RealizedGain)
	assert.True(t, sale.Tax.Equal(d("100.99")), "got %s", sale.Tax)
	assert.True(t, run.Transactions[1].Amount.Equal(d("7843.01")), "net proceeds are reinvested")

	assert.True(t, run.TotalTax.Equal(d("100.99")))
	assert.True(t, run.FinalValue.Equal(d("119759.01")), "got %s", run.FinalValue)
	assert.Positive(t, run.TrackingError)
}

func TestRun_HybridOnlyChecksAtCheckpoints(t *testing.T) {
	run := mustRun(t, sixtyForty(), domain.RebalancingPolicy{Kind: domain.PolicyHybrid, IntervalYears: 2, Threshold: d("0.05")})

	assert.Zero(t, run.RebalanceCount, "the only checkpoint falls in a year inside the band")
	assert.True(t, run.FinalValue.Equal(d("119860")))
}

func TestRun_OpportunisticAvoidsTaxableRebalances(t *testing.T) {
	run := mustRun(t, sixtyForty(), domain.RebalancingPolicy{Kind: domain.PolicyOpportunistic, Threshold: d("0.05")})
	assert.Zero(t, run.RebalanceCount, "rebalancing in 2027 would realize taxable gains")
	assert.True(t, run.TotalTax.IsZero())

	run = mustRun(t, sixtyForty(), domain.RebalancingPolicy{Kind: domain.PolicyOpportunistic, Threshold: d("0.03")})
	assert.Equal(t, 1, run.RebalanceCount)
	y, _ := run.Years.Get(2026)
	assert.True(t, y.Rebalanced, "the 2026 gain fits within the allowance")
	assert.True(t, run.TotalTax.IsZero())
	assert.True(t, run.FinalValue.Equal(d("119356")), "got %s", run.FinalValue)
}

func TestRun_TaxOptimizedSteersContributions(t *testing.T) {
	req := sixtyForty()
	req.AnnualContribution = d("10000")
	run := mustRun(t, req, domain.RebalancingPolicy{Kind: domain.PolicyTaxOptimized, Threshold: d("0.05")})

	assert.Zero(t, run.RebalanceCount, "contributions keep the drift inside the band")
	assert.True(t, run.TotalTax.IsZero())

	var buys []domain.RebalancingTransaction
	for _, tx := range run.Transactions {
		if tx.Year == 2026 {
			buys = append(buys, tx)
		}
	}
	require.Len(t, buys, 2)
	assert.Equal(t, domain.TradeContribution, buys[0].Reason)
	assert.True(t, buys[0].Amount.Equal(d("3360")), "underweight bonds get most, equity got %s", buys[0].Amount)
	assert.True(t, buys[1].Amount.Equal(d("6640")))

	calendar := mustRun(t, req, domain.RebalancingPolicy{Kind: domain.PolicyCalendar, IntervalYears: 1})
	for _, tx := range calendar.Transactions {
		if tx.Year == 2026 && tx.Reason == domain.TradeContribution && tx.Asset == "equity" {
			assert.True(t, tx.Amount.Equal(d("6000")), "other policies invest at target weights")
		}
	}
}

func TestRun_TransactionCosts(t *testing.T) {
	req := sixtyForty()
	req.Costs = domain.TransactionCostModel{Percentage: d("0.001"), FixedPerTrade: d("1")}
	run := mustRun(t, req, domain.RebalancingPolicy{Kind: domain.PolicyCalendar, IntervalYears: 1})

	y, _ := run.Years.Get(2025)
	assert.True(t, y.Costs.Equal(d("6.8")), "got %s", y.Costs)
	assert.True(t, y.EndValue.Equal(d("105993.2")), "got %s", y.EndValue)
	assert.True(t, run.Transactions[0].Cost.Equal(d("3.4")))

	req.Costs = domain.TransactionCostModel{MinimumTrade: d("3000")}
	run = mustRun(t, req, domain.RebalancingPolicy{Kind: domain.PolicyCalendar, IntervalYears: 1})
	y, _ = run.Years.Get(2025)
	assert.False(t, y.Rebalanced, "a 2400 trade is below the minimum")
}

func TestRun_WithdrawalsRealizeGains(t *testing.T) {
	req := sixtyForty()
	req.InitialCapital = d("10000")
	req.AnnualWithdrawal = d("4000")
	run := mustRun(t, req, domain.RebalancingPolicy{Kind: domain.PolicyCalendar, IntervalYears: 1})

	y, _ := run.Years.Get(2025)
	assert.True(t, y.Withdrawal.Equal(d("4000")))
	last, _ := run.Years.Get(2027)
	assert.True(t, last.Withdrawal.LessThanOrEqual(d("4000")))
	assert.False(t, run.FinalValue.IsNegative())

	withdrawals := 0
	for _, tx := range run.Transactions {
		if tx.Reason == domain.TradeWithdrawal {
			withdrawals++
			assert.True(t, tx.Amount.IsNegative())
		}
	}
	assert.Positive(t, withdrawals)
}

func TestBook_FromOverweight(t *testing.T) {
	b := newBook([]domain.AssetClass{
		{Name: "equity", TargetWeight: d("0.6")},
		{Name: "bonds", TargetWeight: d("0.4")},
	}, d("100000"))
	b.value["equity"] = d("66000")

	split := b.fromOverweight(d("2000"))
	assert.True(t, split[0].Equal(d("2000")))
	assert.True(t, split[1].IsZero())

	split = b.fromOverweight(d("10000"))
	assert.True(t, split[0].Equal(d("8400")), "got %s", split[0])
	assert.True(t, split[1].Equal(d("1600")), "got %s", split[1])

	amount, gain := b.sell("equity", d("99999"))
	assert.True(t, amount.Equal(d("66000")), "a sale is capped at the holding")
	assert.True(t, gain.Equal(d("6000")))
}

func TestCompare_RanksPolicies(t *testing.T) {
	sim, err := NewSimulator(sixtyForty())
	require.NoError(t, err)

	first, err := sim.Compare(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Runs, 5)
	for i, r := range first.Runs {
		assert.Equal(t, i+1, r.Rank)
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, first.Runs[i-1].Score)
		}
	}
	assert.Equal(t, first.Runs[0].Policy.Kind, first.Recommended)
	assert.NotEmpty(t, first.Rationale)
	require.NotNil(t, first.Seed)

	second, err := sim.Compare(context.Background())
	require.NoError(t, err)
	for i := range first.Runs {
		assert.Equal(t, first.Runs[i].Policy, second.Runs[i].Policy)
		assert.True(t, first.Runs[i].FinalValue.Equal(second.Runs[i].FinalValue))
	}
}

func TestCompare_RandomDrawsAreShared(t *testing.T) {
	seed := int64(11)
	req := sixtyForty()
	req.EndYear = 2034
	req.Returns.MultiAsset.Seed = &seed
	req.Returns.MultiAsset.Assets[0].Volatility = d("0.18")
	req.Returns.MultiAsset.Assets[1].Volatility = d("0.05")
	req.Policies = []domain.RebalancingPolicy{
		{Kind: domain.PolicyCalendar, IntervalYears: 1},
		{Kind: domain.PolicyThreshold, Threshold: d("0.05")},
	}

	sim, err := NewSimulator(req)
	require.NoError(t, err)
	cmp, err := sim.Compare(context.Background())
	require.NoError(t, err)
	require.Len(t, cmp.Runs, 2)

	a, b := cmp.Runs[0], cmp.Runs[1]
	for _, year := range a.Years.Years() {
		ya, _ := a.Years.Get(year)
		yb, _ := b.Years.Get(year)
		assert.Equal(t, ya.AssetRates, yb.AssetRates, "year %d", year)
	}
	assert.Equal(t, seed, *cmp.Seed)
}

func TestCompare_Cancelled(t *testing.T) {
	sim, err := NewSimulator(sixtyForty())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = sim.Compare(ctx)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestScore(t *testing.T) {
	runs := []domain.RebalancingRun{
		{AnnualizedReturn: 0.05, TotalCost: d("100"), SharpeRatio: domain.RatioValue{Value: 0.5}, TrackingError: 0.01},
		{AnnualizedReturn: 0.04, TotalCost: d("0"), SharpeRatio: domain.RatioValue{Value: 0.6}, TrackingError: 0},
		{AnnualizedReturn: 0.03, TotalCost: d("50"), SharpeRatio: domain.RatioValue{Value: 0.4}, TrackingError: 0.02},
	}
	Score(runs)
	assert.InDelta(t, 0.55, runs[0].Score, 1e-4)
	assert.InDelta(t, 0.80, runs[1].Score, 1e-4)
	assert.InDelta(t, 0.15, runs[2].Score, 1e-4)

	tied := []domain.RebalancingRun{{}, {}}
	Score(tied)
	assert.Equal(t, 1.0, tied[0].Score)
}

func TestValidation(t *testing.T) {
	var cfgErr *domain.ConfigurationError
	var verr *domain.ValidationError

	fixed := sixtyForty()
	fixed.Returns = domain.FixedReturnConfiguration(d("0.05"))
	_, err := NewSimulator(fixed)
	assert.True(t, errors.As(err, &cfgErr), "single-rate returns cannot drift")

	sim, err := NewSimulator(sixtyForty())
	require.NoError(t, err)
	_, err = sim.Run(domain.RebalancingPolicy{Kind: "monthly_whim"})
	assert.True(t, errors.As(err, &cfgErr), "unknown policy")

	_, err = sim.Run(domain.RebalancingPolicy{Kind: domain.PolicyCalendar})
	assert.True(t, errors.As(err, &verr), "calendar without interval")

	badWeights := sixtyForty()
	badWeights.Returns.MultiAsset.Assets[0].TargetWeight = d("0.7")
	_, err = NewSimulator(badWeights)
	assert.True(t, errors.As(err, &verr), "weights must sum to one")

	unknownClass := sixtyForty()
	unknownClass.AssetTypes = map[string]domain.AssetType{"gold": domain.AssetOther}
	_, err = NewSimulator(unknownClass)
	assert.True(t, errors.As(err, &verr))

	negativeCost := sixtyForty()
	negativeCost.Costs.FixedPerTrade = d("-1")
	_, err = NewSimulator(negativeCost)
	assert.True(t, errors.As(err, &verr))
}
