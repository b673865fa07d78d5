package withdrawal

import (
	"errors"
	"testing"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/rgehrsitz/zinsplan/internal/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func noTaxEngine(t *testing.T) *Engine {
	t.Helper()
	m, err := tax.NewModel(domain.TaxParameters{
		AnnualAllowance:       domain.DefaultAnnualAllowance,
		DisableVorabpauschale: true,
	})
	require.NoError(t, err)
	return NewEngine(m)
}

func taxedEngine(t *testing.T) *Engine {
	t.Helper()
	m, err := tax.NewModel(domain.TaxParameters{
		CapitalGainsRate:      domain.DefaultCapitalGainsRate,
		AnnualAllowance:       domain.DefaultAnnualAllowance,
		DisableVorabpauschale: true,
	})
	require.NoError(t, err)
	return NewEngine(m)
}

func portfolio(capital, basis string) Portfolio {
	return Portfolio{{AssetType: domain.AssetOther, Capital: d(capital), CostBasis: d(basis)}}
}

func variableReturns(rates map[int]string) domain.ReturnConfiguration {
	out := map[int]decimal.Decimal{}
	for y, r := range rates {
		out[y] = d(r)
	}
	return domain.ReturnConfiguration{Mode: domain.ReturnVariable, Variable: &domain.VariableReturn{Rates: out}}
}

func fourPercentSegment(start, end int) domain.WithdrawalSegment {
	return domain.WithdrawalSegment{
		ID:              "four-percent",
		StartYear:       start,
		EndYear:         end,
		Strategy:        domain.StrategyFixedPercentage,
		Returns:         domain.FixedReturnConfiguration(d("0.05")),
		FixedPercentage: &domain.FixedPercentageParams{Rate: d("0.04")},
	}
}

func TestRun_FourPercentRuleScenario(t *testing.T) {
	in := Input{
		Plan:      domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{fourPercentSegment(2025, 2054)}},
		Portfolio: portfolio("100000", "100000"),
	}

	first, err := noTaxEngine(t).Run(in)
	require.NoError(t, err)
	second, err := noTaxEngine(t).Run(in)
	require.NoError(t, err)

	res := first.Result
	assert.Equal(t, 30, res.Years.Len())
	y2025, _ := res.Years.Get(2025)
	assert.True(t, y2025.Withdrawal.Equal(d("4000")), "Expected 4000, got %s", y2025.Withdrawal)
	assert.True(t, y2025.EndCapital.Equal(d("100800")), "Expected 100800, got %s", y2025.EndCapital)

	if res.DepletionYear != nil {
		assert.GreaterOrEqual(t, *res.YearsUntilDepletion(), 28, "portfolio must last at least 28 years")
	}
	assert.True(t, res.TotalWithdrawn.Equal(d("120000")), "30 years of 4000, got %s", res.TotalWithdrawn)

	assert.Equal(t, res.DepletionYear, second.Result.DepletionYear, "depletion year must be reproducible")
	res.Years.Each(func(year int, s domain.WithdrawalYearState) {
		other, _ := second.Result.Years.Get(year)
		assert.True(t, s.EndCapital.Equal(other.EndCapital), "year %d differs between runs", year)
	})
	assert.True(t, in.Portfolio[0].Capital.Equal(d("100000")), "input portfolio is not mutated")
}

func TestRun_Depletion(t *testing.T) {
	in := Input{
		Plan: domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{{
			ID: "monthly", StartYear: 2025, EndYear: 2030,
			Strategy:     domain.StrategyFixedMonthly,
			Returns:      domain.FixedReturnConfiguration(decimal.Zero),
			FixedMonthly: &domain.FixedMonthlyParams{MonthlyAmount: d("500")},
		}}},
		Portfolio: portfolio("10000", "10000"),
	}

	out, err := noTaxEngine(t).Run(in)
	require.NoError(t, err)
	res := out.Result

	require.NotNil(t, res.DepletionYear)
	assert.Equal(t, 2026, *res.DepletionYear)
	assert.Equal(t, 2, *res.YearsUntilDepletion())

	y2026, _ := res.Years.Get(2026)
	assert.True(t, y2026.Withdrawal.Equal(d("4000")), "last withdrawal is capped at the remaining capital")
	y2030, _ := res.Years.Get(2030)
	assert.True(t, y2030.Depleted)
	assert.True(t, y2030.Withdrawal.IsZero())
	assert.True(t, res.FinalCapital.IsZero())
}

func TestRun_SegmentContiguity(t *testing.T) {
	tests := []struct {
		name     string
		segments []domain.WithdrawalSegment
	}{
		{"gap", []domain.WithdrawalSegment{fourPercentSegment(2025, 2030), fourPercentSegment(2032, 2040)}},
		{"overlap", []domain.WithdrawalSegment{fourPercentSegment(2025, 2030), fourPercentSegment(2030, 2040)}},
		{"reversed", []domain.WithdrawalSegment{fourPercentSegment(2031, 2040), fourPercentSegment(2025, 2030)}},
		{"inverted range", []domain.WithdrawalSegment{fourPercentSegment(2030, 2025)}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := noTaxEngine(t).Run(Input{
				Plan:      domain.WithdrawalPlan{Segments: tt.segments},
				Portfolio: portfolio("100000", "100000"),
			})
			assert.Nil(t, out, "no year may be computed")
			var cfgErr *domain.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
		})
	}
}

func TestRun_ConfigurationErrorsBeforeComputation(t *testing.T) {
	unknown := fourPercentSegment(2031, 2040)
	unknown.Strategy = "lottery"

	missing := fourPercentSegment(2031, 2040)
	missing.Strategy = domain.StrategyDynamic

	gappy := fourPercentSegment(2031, 2033)
	gappy.Returns = variableReturns(map[int]string{2031: "0.05", 2033: "0.05"})

	rmd := fourPercentSegment(2031, 2040)
	rmd.Strategy = domain.StrategyRMD

	for name, seg := range map[string]domain.WithdrawalSegment{
		"unknown strategy":         unknown,
		"missing parameters":       missing,
		"variable return gap":      gappy,
		"rmd without a birth year": rmd,
	} {
		t.Run(name, func(t *testing.T) {
			out, err := noTaxEngine(t).Run(Input{
				Plan:      domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{fourPercentSegment(2025, 2030), seg}},
				Portfolio: portfolio("100000", "100000"),
			})
			assert.Nil(t, out)
			var cfgErr *domain.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
		})
	}
}

func TestRun_SegmentedWithdrawal(t *testing.T) {
	second := domain.WithdrawalSegment{
		ID: "late", StartYear: 2035, EndYear: 2044,
		Strategy:           domain.StrategyVariablePercentage,
		Returns:            domain.FixedReturnConfiguration(d("0.03")),
		VariablePercentage: &domain.VariablePercentageParams{Rate: d("0.05")},
	}
	out, err := noTaxEngine(t).Run(Input{
		Plan:      domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{fourPercentSegment(2025, 2034), second}},
		Portfolio: portfolio("100000", "100000"),
	})
	require.NoError(t, err)
	res := out.Result

	assert.Equal(t, 20, res.Years.Len())
	last, _ := res.Years.Get(2034)
	first, _ := res.Years.Get(2035)
	assert.Equal(t, "four-percent", last.SegmentID)
	assert.Equal(t, "late", first.SegmentID)
	assert.Equal(t, domain.StrategyVariablePercentage, first.Strategy)
	assert.True(t, first.StartCapital.Equal(last.EndCapital), "segments chain capital")
	assert.True(t, first.Withdrawal.Equal(domain.RoundMoney(first.StartCapital.Mul(d("0.05")))))
	assert.True(t, first.Rate.Equal(d("0.03")), "each segment uses its own returns")
}

func TestRun_MonthlyFrequency(t *testing.T) {
	yearly := fourPercentSegment(2025, 2025)
	monthly := yearly
	monthly.Frequency = domain.FrequencyMonthly

	y, err := noTaxEngine(t).Run(Input{Plan: domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{yearly}}, Portfolio: portfolio("100000", "100000")})
	require.NoError(t, err)
	m, err := noTaxEngine(t).Run(Input{Plan: domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{monthly}}, Portfolio: portfolio("100000", "100000")})
	require.NoError(t, err)

	ys, _ := y.Result.Years.Get(2025)
	ms, _ := m.Result.Years.Get(2025)
	assert.True(t, ys.Withdrawal.Equal(ms.Withdrawal), "frequency does not change the annual amount")
	assert.True(t, ms.MonthlyWithdrawal.Equal(d("333.33")))
	assert.True(t, ms.EndCapital.GreaterThan(ys.EndCapital), "later installments stay invested longer")
}

func TestRun_RealizedLossesEnterThePot(t *testing.T) {
	seg := domain.WithdrawalSegment{
		ID: "loss", StartYear: 2025, EndYear: 2025,
		Strategy:           domain.StrategyVariablePercentage,
		Returns:            domain.FixedReturnConfiguration(decimal.Zero),
		VariablePercentage: &domain.VariablePercentageParams{Rate: d("0.1")},
	}
	out, err := taxedEngine(t).Run(Input{
		Plan:      domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{seg}},
		Portfolio: portfolio("50000", "100000"),
	})
	require.NoError(t, err)

	y, _ := out.Result.Years.Get(2025)
	assert.True(t, y.RealizedGain.Equal(d("-5000")), "Expected -5000, got %s", y.RealizedGain)
	assert.True(t, out.Pot.OtherLosses.Equal(d("5000")), "Expected 5000 carried forward, got %s", out.Pot.OtherLosses)
	assert.True(t, y.TaxPaid.IsZero())
	assert.True(t, out.Portfolio[0].CostBasis.Equal(d("90000")))
}

func TestRun_TaxOnRealizedGains(t *testing.T) {
	seg := fourPercentSegment(2025, 2025)
	seg.Returns = domain.FixedReturnConfiguration(decimal.Zero)
	seg.FixedPercentage.Rate = d("0.1")

	out, err := taxedEngine(t).Run(Input{
		Plan:      domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{seg}},
		Portfolio: portfolio("100000", "50000"),
	})
	require.NoError(t, err)
	y, _ := out.Result.Years.Get(2025)

	// 10000 sold, half of it gain, 1000 allowance
	assert.True(t, y.RealizedGain.Equal(d("5000")))
	assert.True(t, y.AllowanceUsed.Equal(d("1000")))
	assert.True(t, y.TaxPaid.Equal(d("1055")), "Expected 1055, got %s", y.TaxPaid)
	assert.True(t, y.NetWithdrawal.Equal(d("8945")))
	assert.True(t, out.Result.TotalTax.Equal(d("1055")))
}

func TestDynamicStrategy(t *testing.T) {
	seg := domain.WithdrawalSegment{
		ID: "dyn", StartYear: 2025, EndYear: 2027,
		Strategy: domain.StrategyDynamic,
		Returns:  variableReturns(map[int]string{2025: "0.15", 2026: "-0.05", 2027: "0.05"}),
		Dynamic: &domain.DynamicParams{
			BaseRate:        d("0.04"),
			UpperThreshold:  d("0.10"),
			UpperAdjustment: d("0.10"),
			LowerThreshold:  decimal.Zero,
			LowerAdjustment: d("-0.10"),
		},
	}
	out, err := noTaxEngine(t).Run(Input{Plan: domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{seg}}, Portfolio: portfolio("100000", "100000")})
	require.NoError(t, err)

	want := map[int]string{2025: "4000", 2026: "4400", 2027: "3960"}
	for year, w := range want {
		y, _ := out.Result.Years.Get(year)
		assert.True(t, y.Withdrawal.Equal(d(w)), "%d: expected %s, got %s", year, w, y.Withdrawal)
	}

	capped := seg
	dyn := *seg.Dynamic
	dyn.Cap = domain.DecimalPtr(d("4200"))
	dyn.Floor = domain.DecimalPtr(d("4100"))
	capped.Dynamic = &dyn
	out, err = noTaxEngine(t).Run(Input{Plan: domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{capped}}, Portfolio: portfolio("100000", "100000")})
	require.NoError(t, err)
	for year, w := range map[int]string{2025: "4100", 2026: "4200", 2027: "4100"} {
		y, _ := out.Result.Years.Get(year)
		assert.True(t, y.Withdrawal.Equal(d(w)), "%d: expected %s, got %s", year, w, y.Withdrawal)
	}
}

func TestBucketStrategy(t *testing.T) {
	seg := domain.WithdrawalSegment{
		ID: "buckets", StartYear: 2025, EndYear: 2026,
		Strategy: domain.StrategyBucket,
		Returns:  variableReturns(map[int]string{2025: "-0.2", 2026: "0.1"}),
		Bucket:   &domain.BucketParams{InitialRate: d("0.04"), CashYears: d("2")},
	}
	out, err := noTaxEngine(t).Run(Input{Plan: domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{seg}}, Portfolio: portfolio("100000", "100000")})
	require.NoError(t, err)

	y2025, _ := out.Result.Years.Get(2025)
	require.NotNil(t, y2025.CashBucket)
	assert.True(t, y2025.CashBucket.Equal(d("4000")), "no refill after a losing year, got %s", y2025.CashBucket)
	assert.True(t, y2025.EndCapital.Equal(d("77600")), "Expected 77600, got %s", y2025.EndCapital)

	y2026, _ := out.Result.Years.Get(2026)
	assert.True(t, y2026.CashBucket.Equal(d("8000")), "cash refilled after a positive year, got %s", y2026.CashBucket)
	assert.True(t, y2026.EndCapital.Equal(d("80960")), "Expected 80960, got %s", y2026.EndCapital)
	assert.True(t, y2026.GrowthBucket.Equal(d("72960")))
}

func TestRMDStrategy(t *testing.T) {
	seg := domain.WithdrawalSegment{
		ID: "rmd", StartYear: 2025, EndYear: 2026,
		Strategy: domain.StrategyRMD,
		Returns:  domain.FixedReturnConfiguration(decimal.Zero),
	}
	out, err := noTaxEngine(t).Run(Input{
		Plan:      domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{seg}, BirthYear: 1960},
		Portfolio: portfolio("100000", "100000"),
	})
	require.NoError(t, err)

	y, _ := out.Result.Years.Get(2025)
	assert.Equal(t, 65, y.Age)
	assert.True(t, y.Withdrawal.Equal(d("5181.35")), "Expected 5181.35, got %s", y.Withdrawal)
	next, _ := out.Result.Years.Get(2026)
	assert.Equal(t, 66, next.Age)
}

func TestLifeExpectancy(t *testing.T) {
	tests := []struct {
		age    int
		gender domain.Gender
		want   string
	}{
		{65, domain.GenderMale, "17.7"},
		{65, domain.GenderFemale, "20.9"},
		{65, domain.GenderUnisex, "19.3"},
		{67, domain.GenderFemale, "19.3"},
		{45, domain.GenderFemale, "39.6"},
		{110, domain.GenderMale, "1"},
	}
	for _, tt := range tests {
		got := LifeExpectancy(tt.age, tt.gender)
		assert.True(t, got.Equal(d(tt.want)), "age %d %s: expected %s, got %s", tt.age, tt.gender, tt.want, got)
	}
	assert.True(t, LifeExpectancy(80, domain.GenderMale).LessThan(LifeExpectancy(70, domain.GenderMale)), "declines with age")
}

func TestTaxOptimizedStrategy(t *testing.T) {
	tests := []struct {
		objective domain.TaxObjective
		want      float64
	}{
		// half of every sale is gain, so the 1000 allowance covers 2000
		{domain.ObjectiveMinimizeTaxes, 2000},
		{domain.ObjectiveMaximizeAfterTax, 10000},
		{domain.ObjectiveBalanced, 6000},
	}
	for _, tt := range tests {
		t.Run(string(tt.objective), func(t *testing.T) {
			seg := domain.WithdrawalSegment{
				ID: "opt", StartYear: 2025, EndYear: 2025,
				Strategy: domain.StrategyTaxOptimized,
				Returns:  domain.FixedReturnConfiguration(decimal.Zero),
				TaxOptimized: &domain.TaxOptimizedParams{
					MinAmount: decimal.Zero,
					MaxAmount: d("10000"),
					Objective: tt.objective,
				},
			}
			out, err := taxedEngine(t).Run(Input{
				Plan:      domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{seg}},
				Portfolio: portfolio("100000", "50000"),
			})
			require.NoError(t, err)
			y, _ := out.Result.Years.Get(2025)
			assert.InDelta(t, tt.want, y.Withdrawal.InexactFloat64(), 0.1)
		})
	}
}

func TestTaxOptimizedStrategy_VorabpauschaleUsesAllowance(t *testing.T) {
	m, err := tax.NewModel(domain.TaxParameters{
		CapitalGainsRate: domain.DefaultCapitalGainsRate,
		AnnualAllowance:  domain.DefaultAnnualAllowance,
	})
	require.NoError(t, err)

	seg := domain.WithdrawalSegment{
		ID: "opt", StartYear: 2025, EndYear: 2025,
		Strategy: domain.StrategyTaxOptimized,
		Returns:  domain.FixedReturnConfiguration(d("0.05")),
		TaxOptimized: &domain.TaxOptimizedParams{
			MinAmount: d("500"),
			MaxAmount: d("10000"),
			Objective: domain.ObjectiveMinimizeTaxes,
		},
	}
	out, err := NewEngine(m).Run(Input{
		Plan:      domain.WithdrawalPlan{Segments: []domain.WithdrawalSegment{seg}},
		Portfolio: portfolio("100000", "50000"),
	})
	require.NoError(t, err)
	y, _ := out.Result.Years.Get(2025)

	// the Vorabpauschale alone exceeds the allowance, so no sale is tax free
	// and the lowest effective rate sits at the largest amount
	assert.True(t, y.Vorabpauschale.GreaterThan(domain.DefaultAnnualAllowance), "Vorabpauschale %s", y.Vorabpauschale)
	assert.InDelta(t, 10000, y.Withdrawal.InexactFloat64(), 0.1)
	assert.True(t, y.TaxPaid.IsPositive())
}

func TestCreateStrategy_Validation(t *testing.T) {
	seg := fourPercentSegment(2025, 2030)
	seg.FixedPercentage.Rate = d("-0.01")
	_, err := CreateStrategy(seg, domain.WithdrawalPlan{})
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr), "negative rate is a validation error")

	seg = fourPercentSegment(2025, 2030)
	seg.Strategy = domain.StrategyTaxOptimized
	seg.TaxOptimized = &domain.TaxOptimizedParams{MinAmount: d("100"), MaxAmount: d("50")}
	_, err = CreateStrategy(seg, domain.WithdrawalPlan{})
	assert.Error(t, err, "inverted bounds are rejected")

	for _, kind := range domain.AllStrategyKinds {
		s := domain.WithdrawalSegment{
			ID: "all", Strategy: kind,
			FixedPercentage:    &domain.FixedPercentageParams{},
			VariablePercentage: &domain.VariablePercentageParams{},
			FixedMonthly:       &domain.FixedMonthlyParams{},
			Dynamic:            &domain.DynamicParams{},
			Bucket:             &domain.BucketParams{},
			TaxOptimized:       &domain.TaxOptimizedParams{},
		}
		strategy, err := CreateStrategy(s, domain.WithdrawalPlan{BirthYear: 1960})
		require.NoError(t, err, string(kind))
		assert.Equal(t, kind, strategy.Kind())
		assert.NotEmpty(t, strategy.Name())
	}
}
