package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rgehrsitz/zinsplan/internal/calculation"
	"github.com/rgehrsitz/zinsplan/internal/compare"
	"github.com/rgehrsitz/zinsplan/internal/config"
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/rgehrsitz/zinsplan/internal/output"
	"github.com/rgehrsitz/zinsplan/internal/rebalancing"
	"github.com/rgehrsitz/zinsplan/internal/risk"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	examplePlan    = "../testdata/example_plan.yaml"
	zeroReturnPlan = "../testdata/zero_return_plan.yaml"
)

func loadPlan(t *testing.T, path string) *config.Configuration {
	t.Helper()
	cfg, err := config.NewInputParser().LoadFromFile(path)
	require.NoError(t, err)
	return cfg
}

func TestIntegrationSmokeTest(t *testing.T) {
	cfg := loadPlan(t, examplePlan)
	engine := calculation.NewEngine()

	res, err := engine.Simulate(cfg.Simulation)
	require.NoError(t, err)
	require.NotNil(t, res.Withdrawal, "plan has a withdrawal phase")

	assert.Equal(t, 16, res.Accumulation.Len(), "2025 through 2040")
	assert.Equal(t, 25, res.Withdrawal.Years.Len(), "2041 through 2065")
	assert.Len(t, res.Elements, 2)
	require.NotNil(t, res.Seed)
	assert.Equal(t, int64(12345), *res.Seed)
	assert.True(t, res.FinalCapital().IsPositive())

	series := res.CapitalSeries()
	assert.Len(t, series, 41)

	metrics, err := risk.Analyze(series, risk.Options{RiskFreeRate: 0.02, Horizon: 1})
	require.NoError(t, err)
	assert.LessOrEqual(t, metrics.Periods, 40)
	assert.Greater(t, metrics.Periods, 15)
	assert.GreaterOrEqual(t, metrics.MaxDrawdown, 0.0)
	assert.LessOrEqual(t, metrics.MaxDrawdown, 1.0)

	report := &output.Report{Name: cfg.Name, GeneratedAt: time.Now(), Simulation: res, Risk: metrics}
	for _, name := range output.AvailableFormatterNames() {
		t.Run("format_"+name, func(t *testing.T) {
			out, err := output.GetFormatterByName(name).Format(report)
			require.NoError(t, err)
			assert.NotEmpty(t, out)
		})
	}
}

func TestDataConsistency(t *testing.T) {
	cfg := loadPlan(t, examplePlan)
	engine := calculation.NewEngine()

	first, err := engine.Simulate(cfg.Simulation)
	require.NoError(t, err)
	second, err := engine.Simulate(cfg.Simulation)
	require.NoError(t, err)

	a, b := first.CapitalSeries(), second.CapitalSeries()
	require.Len(t, b, len(a))
	for i := range a {
		assert.True(t, a[i].Equal(b[i]), "period %d differs: %s vs %s", i, a[i], b[i])
	}
	assert.True(t, first.TotalTaxPaid().Equal(second.TotalTaxPaid()))

	// the aggregate is the sum of the element projections
	first.Accumulation.Each(func(year int, agg domain.SimulationYearState) {
		sum := decimal.Zero
		for _, el := range first.Elements {
			if s, ok := el.Years.Get(year); ok {
				sum = sum.Add(s.EndCapital)
			}
		}
		assert.True(t, agg.EndCapital.Sub(sum).Abs().LessThan(decimal.NewFromInt(1)),
			"year %d: aggregate %s, elements %s", year, agg.EndCapital, sum)
	})

	// withdrawal years chain their capital
	var prev *domain.WithdrawalYearState
	first.Withdrawal.Years.Each(func(_ int, s domain.WithdrawalYearState) {
		assert.False(t, s.EndCapital.IsNegative(), "year %d", s.Year)
		if prev != nil {
			assert.True(t, s.StartCapital.Equal(prev.EndCapital), "year %d starts at %s, prior ended at %s", s.Year, s.StartCapital, prev.EndCapital)
		}
		st := s
		prev = &st
	})
}

func TestZeroReturnPlan(t *testing.T) {
	cfg := loadPlan(t, zeroReturnPlan)

	res, err := calculation.NewEngine().Simulate(cfg.Simulation)
	require.NoError(t, err)
	assert.Nil(t, res.Withdrawal)

	contributions := decimal.Zero
	res.Accumulation.Each(func(_ int, s domain.SimulationYearState) {
		contributions = contributions.Add(s.Contribution)
	})
	assert.True(t, contributions.IsPositive())
	assert.True(t, res.FinalCapital().Equal(contributions), "capital %s, contributions %s", res.FinalCapital(), contributions)
	assert.True(t, res.TotalTaxPaid().IsZero(), "no gain, no tax")
}

func TestMonteCarloAndSensitivity(t *testing.T) {
	cfg := loadPlan(t, examplePlan)
	require.NotNil(t, cfg.MonteCarlo)
	engine := calculation.NewEngine()

	mcCfg := calculation.MonteCarloConfig{Trials: cfg.MonteCarlo.Trials, Seed: cfg.MonteCarlo.Seed, Workers: 4}
	first, err := engine.RunMonteCarlo(context.Background(), cfg.Simulation, mcCfg)
	require.NoError(t, err)
	second, err := engine.RunMonteCarlo(context.Background(), cfg.Simulation, mcCfg)
	require.NoError(t, err)

	assert.Equal(t, 25, first.Trials)
	assert.Len(t, first.Outcomes, 25)
	for key, v := range first.Percentiles {
		assert.True(t, v.Equal(second.Percentiles[key]), "percentile %s", key)
	}
	assert.True(t, first.SuccessRate.Equal(second.SuccessRate))
	assert.True(t, first.Percentiles["10th"].LessThanOrEqual(first.Percentiles["90th"]))

	params := []domain.SensitivityParameter{}
	for _, p := range domain.DefaultSensitivityParameters() {
		if p.Name == domain.AccumulationReturnParam.Name || p.Name == "contributions" {
			params = append(params, p)
		}
	}
	require.Len(t, params, 2)

	analysis, err := calculation.NewSensitivityAnalyzer(engine).Analyze(cfg.Simulation, cfg.Sensitivity.Metric, params)
	require.NoError(t, err)
	assert.Equal(t, domain.MetricWithdrawalCapital, analysis.Metric)
	require.Len(t, analysis.Results, 2)
	assert.Equal(t, 1, analysis.Results[0].Rank)
	assert.True(t, analysis.Results[0].MaxImpact.GreaterThanOrEqual(analysis.Results[1].MaxImpact))
	assert.NotEmpty(t, analysis.MostSensitiveParameter)
}

func TestRebalancingAndStrategyComparison(t *testing.T) {
	cfg := loadPlan(t, examplePlan)
	require.NotNil(t, cfg.Rebalancing)

	sim, err := rebalancing.NewSimulator(*cfg.Rebalancing)
	require.NoError(t, err)
	cmp, err := sim.Compare(context.Background())
	require.NoError(t, err)
	require.Len(t, cmp.Runs, 2)
	ranks := map[int]bool{}
	for _, run := range cmp.Runs {
		ranks[run.Rank] = true
		assert.True(t, run.FinalValue.IsPositive(), run.Policy.Name())
	}
	assert.Equal(t, map[int]bool{1: true, 2: true}, ranks)
	assert.NotEmpty(t, cmp.Recommended)

	require.NotNil(t, cfg.Compare)
	seed := int64(11)
	set, err := compare.NewCompareEngine(nil).Compare(context.Background(), cfg.Simulation, compare.CompareOptions{
		BaseName:     cfg.Compare.BaseName,
		Alternatives: cfg.Compare.Alternatives,
		Seed:         &seed,
	})
	require.NoError(t, err)
	assert.Equal(t, "vier_prozent", set.BaseName)
	require.Len(t, set.AlternativeResults, 1)
	assert.Equal(t, "variabel", set.AlternativeResults[0].Name)
	assert.True(t, set.AccumulatedCapital.IsPositive())

	report := &output.Report{Name: cfg.Name, GeneratedAt: time.Now(), Rebalancing: cmp}
	data, err := output.GetFormatterByName("json").Format(report)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "rebalancing")
}

func TestErrorHandling(t *testing.T) {
	parser := config.NewInputParser()

	t.Run("missing_file", func(t *testing.T) {
		_, err := parser.LoadFromFile("../testdata/does_not_exist.yaml")
		assert.Error(t, err)
	})

	t.Run("malformed_yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("simulation: [unclosed"), 0644))
		_, err := parser.LoadFromFile(path)
		assert.Error(t, err)
	})

	t.Run("inverted_years", func(t *testing.T) {
		_, err := parser.Parse([]byte("simulation:\n  start_year: 2030\n  end_year: 2025\n  rate: 0.05\n"))
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}
