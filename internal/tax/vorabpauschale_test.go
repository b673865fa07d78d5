package tax

import (
	"errors"
	"testing"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVorabpauschale(t *testing.T) {
	tests := []struct {
		name        string
		in          VorabpauschaleInput
		wantVorab   string
		wantTaxable string
	}{
		{
			name:        "base yield below gain",
			in:          VorabpauschaleInput{Year: 2023, StartValue: d("10000"), Gain: d("800"), MonthsHeld: 12, AssetType: domain.AssetEquityFund},
			wantVorab:   "178.5",
			wantTaxable: "124.95",
		},
		{
			name:        "capped at actual gain",
			in:          VorabpauschaleInput{Year: 2023, StartValue: d("10000"), Gain: d("100"), MonthsHeld: 12, AssetType: domain.AssetEquityFund},
			wantVorab:   "100",
			wantTaxable: "70",
		},
		{
			name:        "loss year",
			in:          VorabpauschaleInput{Year: 2023, StartValue: d("10000"), Gain: d("-50"), MonthsHeld: 12, AssetType: domain.AssetEquityFund},
			wantVorab:   "0",
			wantTaxable: "0",
		},
		{
			name:        "negative base rate",
			in:          VorabpauschaleInput{Year: 2021, StartValue: d("10000"), Gain: d("800"), MonthsHeld: 12, AssetType: domain.AssetOther},
			wantVorab:   "0",
			wantTaxable: "0",
		},
		{
			name:        "pro-rated in purchase year",
			in:          VorabpauschaleInput{Year: 2023, StartValue: d("10000"), Gain: d("800"), MonthsHeld: 10, AssetType: domain.AssetOther},
			wantVorab:   "148.75",
			wantTaxable: "148.75",
		},
		{
			name:        "real estate fund exemption",
			in:          VorabpauschaleInput{Year: 2023, StartValue: d("10000"), Gain: d("800"), MonthsHeld: 12, AssetType: domain.AssetRealEstateFund},
			wantVorab:   "178.5",
			wantTaxable: "71.4",
		},
	}

	m := newModel(t, defaultParams())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.Vorabpauschale(tt.in)
			require.NoError(t, err)
			assert.True(t, res.Vorabpauschale.Equal(d(tt.wantVorab)), "Expected %s, got %s", tt.wantVorab, res.Vorabpauschale)
			assert.True(t, res.Taxable.Equal(d(tt.wantTaxable)), "Expected taxable %s, got %s", tt.wantTaxable, res.Taxable)
		})
	}
}

func TestVorabpauschale_MissingBaseRate(t *testing.T) {
	m := newModel(t, defaultParams())
	_, err := m.Vorabpauschale(VorabpauschaleInput{Year: 2040, StartValue: d("10000"), Gain: d("800"), MonthsHeld: 12})
	var cfgErr *domain.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr), "a year without base rate must not default silently")

	params := defaultParams()
	projected := d("0.0253")
	params.ProjectedBaseRate = &projected
	m = newModel(t, params)
	res, err := m.Vorabpauschale(VorabpauschaleInput{Year: 2040, StartValue: d("10000"), Gain: d("800"), MonthsHeld: 12, AssetType: domain.AssetOther})
	require.NoError(t, err)
	assert.True(t, res.Vorabpauschale.Equal(d("177.1")), "Expected 177.1, got %s", res.Vorabpauschale)
	assert.Equal(t, domain.RateSourceFallback, res.BaseRate.Source)
}

func TestVorabpauschale_Disabled(t *testing.T) {
	params := defaultParams()
	params.DisableVorabpauschale = true
	m := newModel(t, params)

	res, err := m.Vorabpauschale(VorabpauschaleInput{Year: 2040, StartValue: d("10000"), Gain: d("800"), MonthsHeld: 12})
	require.NoError(t, err)
	assert.True(t, res.Vorabpauschale.IsZero())
}

func TestBaseRateTable(t *testing.T) {
	table := NewBaseRateTable(map[int]domain.BaseRateEntry{
		2024: {Rate: d("0.03")},
		2026: {Rate: d("0.02"), Source: domain.RateSourceAPI},
	}, nil)

	e, err := table.Lookup(2024)
	require.NoError(t, err)
	assert.True(t, e.Rate.Equal(d("0.03")), "configured entry overrides the fallback")
	assert.Equal(t, domain.RateSourceManual, e.Source)

	e, err = table.Lookup(2026)
	require.NoError(t, err)
	assert.Equal(t, domain.RateSourceAPI, e.Source)

	e, err = table.Lookup(2018)
	require.NoError(t, err)
	assert.Equal(t, domain.RateSourceFallback, e.Source)

	years := table.Entries().Years()
	assert.Equal(t, 2018, years[0])
	assert.Equal(t, 2026, years[len(years)-1])
}

func TestRealizedGain(t *testing.T) {
	res := RealizedGain(Sale{Capital: d("20000"), CostBasis: d("10000"), AccumulatedVorabpauschale: d("1000"), Amount: d("5000")})
	assert.True(t, res.Share.Equal(d("0.25")))
	assert.True(t, res.BasisSold.Equal(d("2500")))
	assert.True(t, res.VorabpauschaleSold.Equal(d("250")))
	assert.True(t, res.RealizedGain.Equal(d("2250")), "Expected 2250, got %s", res.RealizedGain)

	loss := RealizedGain(Sale{Capital: d("8000"), CostBasis: d("10000"), Amount: d("4000")})
	assert.True(t, loss.RealizedGain.Equal(d("-1000")), "underwater sale realizes a loss, got %s", loss.RealizedGain)

	capped := RealizedGain(Sale{Capital: d("1000"), CostBasis: d("500"), Amount: d("5000")})
	assert.True(t, capped.Share.Equal(d("1")), "cannot sell more than the holding")

	assert.True(t, RealizedGain(Sale{Amount: d("100")}).RealizedGain.IsZero())
}
