package calculation

import (
	"fmt"
	"sort"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/rgehrsitz/zinsplan/internal/returns"
	"github.com/shopspring/decimal"
)

// SensitivityAnalyzer performs one-at-a-time parameter sweeps
type SensitivityAnalyzer struct {
	calculationEngine *Engine
}

// NewSensitivityAnalyzer creates a new sensitivity analyzer. A nil engine
// gets a default one.
func NewSensitivityAnalyzer(engine *Engine) *SensitivityAnalyzer {
	if engine == nil {
		engine = NewEngine()
	}
	return &SensitivityAnalyzer{calculationEngine: engine}
}

// Analyze moves each parameter down and up by its delta while holding every
// other input fixed, and ranks the parameters by the largest absolute change
// of the target metric. Random returns without a seed are pinned to one seed
// first so every run sees the same draws. Parameters that do not apply to the
// request (withdrawal parameters without a withdrawal plan) are skipped.
func (sa *SensitivityAnalyzer) Analyze(req domain.SimulationRequest, metric domain.SensitivityMetric, params []domain.SensitivityParameter) (*domain.SensitivityAnalysis, error) {
	if len(params) == 0 {
		params = domain.DefaultSensitivityParameters()
	}
	if metric == "" {
		metric = domain.MetricFinalCapital
		if req.Withdrawal != nil {
			metric = domain.MetricWithdrawalCapital
		}
	}
	if err := checkMetric(req, metric); err != nil {
		return nil, err
	}

	req, err := PinSeeds(req, NewSeed())
	if err != nil {
		return nil, err
	}
	base, err := sa.calculationEngine.Simulate(req)
	if err != nil {
		return nil, fmt.Errorf("failed to run base case: %w", err)
	}
	baseMetric := metricValue(base, metric)

	results := make([]domain.SensitivityResult, 0, len(params))
	for _, param := range params {
		baseValue, applies, err := parameterValue(req, param.Name)
		if err != nil {
			return nil, err
		}
		if !applies {
			continue
		}
		step := param.Delta
		if param.Relative {
			step = baseValue.Mul(param.Delta)
		}
		down, up := baseValue.Sub(step), baseValue.Add(step)
		if param.Name == domain.TaxRateParam.Name {
			down = domain.ClampZero(down)
		}

		result := domain.SensitivityResult{Parameter: param, BaseValue: baseValue, DownValue: down, UpValue: up}
		for _, side := range []struct {
			value  decimal.Decimal
			metric *decimal.Decimal
		}{{down, &result.MetricDown}, {up, &result.MetricUp}} {
			modified := modifyParameter(req, param.Name, baseValue, side.value)
			res, err := sa.calculationEngine.Simulate(modified)
			if err != nil {
				return nil, fmt.Errorf("failed to run %s=%s: %w", param.Name, side.value, err)
			}
			*side.metric = metricValue(res, metric)
		}
		result.ImpactDown = result.MetricDown.Sub(baseMetric)
		result.ImpactUp = result.MetricUp.Sub(baseMetric)
		result.MaxImpact = domain.MaxDecimal(result.ImpactDown.Abs(), result.ImpactUp.Abs())
		if !baseMetric.IsZero() {
			result.ImpactPct = result.MaxImpact.Div(baseMetric.Abs()).Mul(decimal.NewFromInt(100)).Round(2)
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MaxImpact.GreaterThan(results[j].MaxImpact)
	})
	for i := range results {
		results[i].Rank = i + 1
	}

	analysis := &domain.SensitivityAnalysis{
		Metric:     metric,
		BaseMetric: baseMetric,
		Results:    results,
	}
	if len(results) > 0 {
		analysis.MostSensitiveParameter = results[0].Parameter.Name
	}
	analysis.RiskLevel = analysis.DetermineRiskLevel()
	analysis.Recommendations = analysis.GenerateRecommendations()
	return analysis, nil
}

func checkMetric(req domain.SimulationRequest, metric domain.SensitivityMetric) error {
	switch metric {
	case domain.MetricFinalCapital, domain.MetricTotalTax:
		return nil
	case domain.MetricWithdrawalCapital, domain.MetricTotalWithdrawn:
		if req.Withdrawal == nil {
			return domain.NewConfigurationError("sensitivity", "metric %q needs a withdrawal plan", metric)
		}
		return nil
	default:
		return domain.NewConfigurationError("sensitivity", "unknown metric %q", metric)
	}
}

func metricValue(res *domain.SimulationResult, metric domain.SensitivityMetric) decimal.Decimal {
	switch metric {
	case domain.MetricWithdrawalCapital:
		return res.Withdrawal.FinalCapital
	case domain.MetricTotalWithdrawn:
		return res.Withdrawal.TotalWithdrawn
	case domain.MetricTotalTax:
		return res.TotalTaxPaid()
	default:
		return res.FinalCapital()
	}
}

// PinSeeds resolves the return precedence and gives every random
// configuration without a seed the same seed.
func PinSeeds(req domain.SimulationRequest, seed int64) (domain.SimulationRequest, error) {
	cfg, _, err := req.ResolvedReturns()
	if err != nil {
		return req, err
	}
	cfg = pinSeed(cfg, seed)
	req.Returns = &cfg
	req.Rate = nil
	if req.Withdrawal != nil {
		plan := *req.Withdrawal
		plan.Segments = append([]domain.WithdrawalSegment(nil), req.Withdrawal.Segments...)
		for i := range plan.Segments {
			plan.Segments[i].Returns = pinSeed(plan.Segments[i].Returns, seed)
		}
		req.Withdrawal = &plan
	}
	return req, nil
}

func pinSeed(cfg domain.ReturnConfiguration, seed int64) domain.ReturnConfiguration {
	switch {
	case cfg.Mode == domain.ReturnRandom && cfg.Random != nil && cfg.Random.Seed == nil,
		cfg.Mode == domain.ReturnMultiAsset && cfg.MultiAsset != nil && cfg.MultiAsset.Seed == nil:
		return returns.Reseed(cfg, seed)
	}
	return cfg
}

// parameterValue returns the current value of a named parameter and whether
// the parameter applies to the request.
func parameterValue(req domain.SimulationRequest, name string) (decimal.Decimal, bool, error) {
	switch name {
	case domain.AccumulationReturnParam.Name:
		return expectedRate(*req.Returns), true, nil
	case domain.ContributionParam.Name:
		total := decimal.Zero
		for _, el := range req.Elements {
			total = total.Add(el.Amount)
		}
		return total, total.IsPositive(), nil
	case domain.TaxRateParam.Name:
		return req.Tax.CapitalGainsRate, true, nil
	case domain.WithdrawalReturnParam.Name:
		if req.Withdrawal == nil || len(req.Withdrawal.Segments) == 0 {
			return decimal.Zero, false, nil
		}
		return expectedRate(req.Withdrawal.Segments[0].Returns), true, nil
	case domain.InflationParam.Name:
		if req.Withdrawal == nil {
			return decimal.Zero, false, nil
		}
		return req.Withdrawal.InflationRate, true, nil
	default:
		return decimal.Zero, false, domain.NewConfigurationError("sensitivity", "unknown parameter %q", name)
	}
}

// modifyParameter returns a copy of req with one parameter moved from base to
// value. Return parameters shift every configured rate by the difference;
// contributions scale every element amount by value/base.
func modifyParameter(req domain.SimulationRequest, name string, base, value decimal.Decimal) domain.SimulationRequest {
	switch name {
	case domain.AccumulationReturnParam.Name:
		shifted := returns.Shift(*req.Returns, value.Sub(base))
		req.Returns = &shifted
	case domain.ContributionParam.Name:
		factor := value.Div(base)
		elements := make([]domain.ContributionElement, len(req.Elements))
		for i, el := range req.Elements {
			el.Amount = domain.RoundMoney(el.Amount.Mul(factor))
			el.InitialGain = domain.RoundMoney(el.InitialGain.Mul(factor))
			elements[i] = el
		}
		req.Elements = elements
	case domain.TaxRateParam.Name:
		req.Tax.CapitalGainsRate = value
	case domain.WithdrawalReturnParam.Name:
		plan := *req.Withdrawal
		plan.Segments = make([]domain.WithdrawalSegment, len(req.Withdrawal.Segments))
		for i, seg := range req.Withdrawal.Segments {
			seg.Returns = returns.Shift(seg.Returns, value.Sub(base))
			plan.Segments[i] = seg
		}
		req.Withdrawal = &plan
	case domain.InflationParam.Name:
		plan := *req.Withdrawal
		plan.InflationRate = value
		req.Withdrawal = &plan
	}
	return req
}

// expectedRate summarises a return configuration as one rate: the fixed
// rate, the random mean, the average variable rate or the weighted expected
// return of the asset classes.
func expectedRate(cfg domain.ReturnConfiguration) decimal.Decimal {
	switch cfg.Mode {
	case domain.ReturnFixed:
		if cfg.Fixed != nil {
			return cfg.Fixed.Rate
		}
	case domain.ReturnRandom:
		if cfg.Random != nil {
			return cfg.Random.Mean
		}
	case domain.ReturnVariable:
		if cfg.Variable != nil && len(cfg.Variable.Rates) > 0 {
			sum := decimal.Zero
			for _, r := range cfg.Variable.Rates {
				sum = sum.Add(r)
			}
			return sum.Div(decimal.NewFromInt(int64(len(cfg.Variable.Rates))))
		}
	case domain.ReturnMultiAsset:
		if cfg.MultiAsset != nil {
			sum := decimal.Zero
			for _, a := range cfg.MultiAsset.Assets {
				sum = sum.Add(a.TargetWeight.Mul(a.ExpectedReturn))
			}
			return sum
		}
	}
	return decimal.Zero
}
