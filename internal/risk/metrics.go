// Package risk computes risk measures over completed capital series: value at
// risk, performance ratios, drawdowns and sequence-of-returns risk.
package risk

import (
	"math"
	"sort"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// RatioCeiling is the largest ratio magnitude reported as a value. Anything
// beyond it, or undefined with a non-zero numerator, becomes the sentinel.
const RatioCeiling = 999.0

// ConfidenceLevels are the VaR confidence levels reported by Analyze.
var ConfidenceLevels = []float64{0.90, 0.95, 0.99}

// Options tunes Analyze.
// RiskFreeRate: yearly rate subtracted in the Sharpe ratio
// TargetReturn: minimum acceptable return for the Sortino ratio
// Horizon: VaR horizon in periods, 1 when zero
type Options struct {
	RiskFreeRate float64
	TargetReturn float64
	Horizon      float64
}

// Analyze computes the full RiskMetrics of a capital series. values are the
// period-end capitals in chronological order; VaR is measured on the last one.
func Analyze(values []decimal.Decimal, opts Options) (*domain.RiskMetrics, error) {
	if len(values) < 2 {
		return nil, domain.NewValidationError("values", "at least two periods are required, got %d", len(values))
	}
	for i, v := range values {
		if v.IsNegative() {
			return nil, domain.NewValidationError("values", "period %d has negative capital %s", i, v)
		}
	}
	if opts.Horizon <= 0 {
		opts.Horizon = 1
	}

	rets := PeriodReturns(values)
	drawdowns, maxDD, peak, trough := Drawdowns(values)
	annualized := AnnualizedReturn(rets)
	current := values[len(values)-1]

	m := &domain.RiskMetrics{
		Periods:           len(rets),
		AnnualizedReturn:  annualized,
		SharpeRatio:       Sharpe(rets, opts.RiskFreeRate),
		SortinoRatio:      Sortino(rets, opts.TargetReturn),
		CalmarRatio:       Calmar(annualized, maxDD),
		MaxDrawdown:       maxDD,
		MaxDrawdownPeak:   peak,
		MaxDrawdownTrough: trough,
		Drawdowns:         drawdowns,
	}
	if len(rets) > 0 {
		m.MeanReturn = stat.Mean(rets, nil)
	}
	if len(rets) > 1 {
		m.Volatility = stat.StdDev(rets, nil)
	}
	for _, c := range ConfidenceLevels {
		m.ValueAtRisk = append(m.ValueAtRisk, ParametricVaR(current, m.MeanReturn, m.Volatility, opts.Horizon, c))
		m.HistoricalVaR = append(m.HistoricalVaR, HistoricalVaR(current, rets, c))
	}
	return m, nil
}

// PeriodReturns converts a capital series into simple period returns. A
// period starting from zero capital has no defined return and is skipped.
func PeriodReturns(values []decimal.Decimal) []float64 {
	if len(values) < 2 {
		return []float64{}
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1].InexactFloat64()
		if prev <= 0 {
			continue
		}
		out = append(out, values[i].InexactFloat64()/prev-1)
	}
	return out
}

// AnnualizedReturn is the geometric mean of the period returns.
func AnnualizedReturn(rets []float64) float64 {
	if len(rets) == 0 {
		return 0
	}
	logSum := 0.0
	for _, r := range rets {
		if 1+r <= 0 {
			return -1
		}
		logSum += math.Log1p(r)
	}
	return math.Expm1(logSum / float64(len(rets)))
}

// ParametricVaR is the normal-distribution value at risk:
// value × (−mean×h + z×σ×√h), never below zero.
func ParametricVaR(value decimal.Decimal, mean, stddev, horizon, confidence float64) domain.ValueAtRisk {
	z := distuv.UnitNormal.Quantile(confidence)
	loss := -mean*horizon + z*stddev*math.Sqrt(horizon)
	return valueAtRisk(value, loss, confidence, "parametric")
}

// HistoricalVaR reads the loss at the (1−confidence) empirical quantile of
// the observed returns.
func HistoricalVaR(value decimal.Decimal, rets []float64, confidence float64) domain.ValueAtRisk {
	if len(rets) == 0 {
		return valueAtRisk(value, 0, confidence, "historical")
	}
	sorted := append([]float64(nil), rets...)
	sort.Float64s(sorted)
	q := stat.Quantile(1-confidence, stat.Empirical, sorted, nil)
	return valueAtRisk(value, -q, confidence, "historical")
}

func valueAtRisk(value decimal.Decimal, lossFraction, confidence float64, method string) domain.ValueAtRisk {
	if lossFraction < 0 || math.IsNaN(lossFraction) {
		lossFraction = 0
	}
	return domain.ValueAtRisk{
		Confidence:     confidence,
		MaxLossAmount:  domain.RoundMoney(value.Mul(decimal.NewFromFloat(lossFraction))),
		MaxLossPercent: math.Round(lossFraction*10000) / 100,
		Method:         method,
	}
}

// Sharpe is (mean − riskFree) / σ over per-year returns.
func Sharpe(rets []float64, riskFree float64) domain.RatioValue {
	if len(rets) < 2 {
		return domain.RatioValue{}
	}
	excess := stat.Mean(rets, nil) - riskFree
	return capRatio(excess, stat.StdDev(rets, nil))
}

// Sortino divides the excess over target by the downside deviation, the root
// mean square of the shortfalls below target across all periods.
func Sortino(rets []float64, target float64) domain.RatioValue {
	if len(rets) < 2 {
		return domain.RatioValue{}
	}
	sumSq := 0.0
	for _, r := range rets {
		if r < target {
			sumSq += (r - target) * (r - target)
		}
	}
	downside := math.Sqrt(sumSq / float64(len(rets)))
	return capRatio(stat.Mean(rets, nil)-target, downside)
}

// Calmar is the annualized return over the absolute maximum drawdown.
func Calmar(annualized, maxDrawdown float64) domain.RatioValue {
	return capRatio(annualized, math.Abs(maxDrawdown))
}

func capRatio(num, den float64) domain.RatioValue {
	if den == 0 {
		switch {
		case num > 0:
			return domain.RatioValue{Value: RatioCeiling, Capped: true}
		case num < 0:
			return domain.RatioValue{Value: -RatioCeiling, Capped: true}
		default:
			return domain.RatioValue{}
		}
	}
	v := num / den
	if v > RatioCeiling {
		return domain.RatioValue{Value: RatioCeiling, Capped: true}
	}
	if v < -RatioCeiling {
		return domain.RatioValue{Value: -RatioCeiling, Capped: true}
	}
	return domain.RatioValue{Value: v}
}
