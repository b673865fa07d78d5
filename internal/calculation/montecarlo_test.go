package calculation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomRequest() domain.SimulationRequest {
	req := baseRequest()
	req.EndYear = 2034
	req.Returns = &domain.ReturnConfiguration{Mode: domain.ReturnRandom, Random: &domain.RandomReturn{
		Mean: d("0.05"), StdDev: d("0.12"),
	}}
	return req
}

func int64Ptr(v int64) *int64 { return &v }

func TestMonteCarlo_IndependentOfScheduling(t *testing.T) {
	engine := NewEngine()
	req := randomRequest()

	serial, err := engine.RunMonteCarlo(context.Background(), req, MonteCarloConfig{Trials: 40, Seed: int64Ptr(42), Workers: 1})
	require.NoError(t, err)
	parallel, err := engine.RunMonteCarlo(context.Background(), req, MonteCarloConfig{Trials: 40, Seed: int64Ptr(42), Workers: 8})
	require.NoError(t, err)

	require.Len(t, parallel.Outcomes, 40)
	for i := range serial.Outcomes {
		assert.Equal(t, int64(42+i), serial.Outcomes[i].Seed)
		assert.True(t, serial.Outcomes[i].FinalCapital.Equal(parallel.Outcomes[i].FinalCapital), "trial %d differs", i)
	}
	for key, v := range serial.Percentiles {
		assert.True(t, v.Equal(parallel.Percentiles[key]), "percentile %s differs", key)
	}
	assert.NotEqual(t, serial.RunID, parallel.RunID)
}

func TestMonteCarlo_Summary(t *testing.T) {
	req := randomRequest()
	req.EndYear = 2025
	req.Withdrawal = fourPercentPlan(2026, 2055)
	req.Withdrawal.Segments[0].Returns = domain.ReturnConfiguration{Mode: domain.ReturnRandom, Random: &domain.RandomReturn{
		Mean: d("0.04"), StdDev: d("0.15"),
	}}

	var calls, last int
	result, err := NewEngine().RunMonteCarlo(context.Background(), req, MonteCarloConfig{
		Trials: 25,
		Seed:   int64Ptr(7),
		Progress: func(done, total int) {
			calls++
			last = done
			assert.Equal(t, 25, total)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 25, calls)
	assert.Equal(t, 25, last)
	assert.Len(t, result.Percentiles, 7)
	p := result.Percentiles
	assert.True(t, p["5th"].LessThanOrEqual(p["25th"]))
	assert.True(t, p["25th"].LessThanOrEqual(p["50th"]))
	assert.True(t, p["50th"].LessThanOrEqual(p["75th"]))
	assert.True(t, p["75th"].LessThanOrEqual(p["95th"]))
	assert.True(t, result.MedianFinal.Equal(p["50th"]))
	assert.True(t, result.SuccessRate.GreaterThanOrEqual(decimal.Zero) && result.SuccessRate.LessThanOrEqual(d("1")))

	successes := 0
	for _, o := range result.Outcomes {
		if o.Success {
			successes++
			assert.Nil(t, o.DepletionYear)
		}
		assert.True(t, o.TotalWithdrawn.IsPositive())
	}
	want := decimal.NewFromInt(int64(successes)).Div(decimal.NewFromInt(25))
	assert.True(t, result.SuccessRate.Equal(want), "Expected %s, got %s", want, result.SuccessRate)
}

func TestMonteCarlo_SeedFromProvider(t *testing.T) {
	defer SetSeedFunc(func() int64 { return 99 })()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	defer SetNowFunc(func() time.Time { return fixed })()

	result, err := NewEngine().RunMonteCarlo(context.Background(), randomRequest(), MonteCarloConfig{Trials: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(99), result.BaseSeed)
	assert.Equal(t, int64(101), result.Outcomes[2].Seed)
	assert.Equal(t, fixed, result.GeneratedAt)
}

func TestMonteCarlo_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewEngine().RunMonteCarlo(ctx, randomRequest(), MonteCarloConfig{Trials: 100, Seed: int64Ptr(1)})
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestMonteCarlo_InvalidInput(t *testing.T) {
	_, err := NewEngine().RunMonteCarlo(context.Background(), randomRequest(), MonteCarloConfig{})
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))

	req := randomRequest()
	req.Returns = nil
	_, err = NewEngine().RunMonteCarlo(context.Background(), req, MonteCarloConfig{Trials: 2})
	var cfgErr *domain.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestGetPercentile(t *testing.T) {
	values := []int{10, 20, 30, 40, 50}
	assert.Equal(t, 30, getPercentileInt(values, 0.5))
	assert.Equal(t, 15, getPercentileInt(values, 0.125))

	sorted := []decimal.Decimal{d("100"), d("200"), d("300")}
	assert.True(t, getPercentile(sorted, 0.25).Equal(d("150")))
	assert.True(t, getPercentile(nil, 0.5).IsZero())
}

func TestMonteCarlo_FailingTrialCarriesSeed(t *testing.T) {
	logger := &TestLogger{}
	engine := NewEngine()
	engine.SetLogger(logger)

	// the built-in base-rate table ends before 2026 and nothing is projected
	req := randomRequest()
	req.Tax.DisableVorabpauschale = false

	result, err := engine.RunMonteCarlo(context.Background(), req, MonteCarloConfig{Trials: 3, Seed: int64Ptr(5), Workers: 1})
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trial 0 (seed 5)")
	var cfgErr *domain.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr), "wrapped error keeps its type, got %v", err)
	assert.True(t, logger.has("ERROR: monte carlo trial"), "failing trial is logged")
}

func TestSetSeedFunc_Restores(t *testing.T) {
	restore := SetSeedFunc(func() int64 { return 7 })
	assert.Equal(t, int64(7), NewSeed())
	inner := SetSeedFunc(func() int64 { return 8 })
	assert.Equal(t, int64(8), NewSeed())
	inner()
	assert.Equal(t, int64(7), NewSeed())
	restore()
	assert.NotEqual(t, int64(7), NewSeed())
}
