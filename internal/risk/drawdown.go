package risk

import (
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

// Drawdowns returns the drawdown of every period against the running peak,
// the largest drawdown as a positive fraction (0.25 = 25% below peak) and the
// period indexes of that drawdown's peak and trough.
func Drawdowns(values []decimal.Decimal) (series []domain.DrawdownPoint, maxDrawdown float64, peakIdx, troughIdx int) {
	if len(values) == 0 {
		return nil, 0, 0, 0
	}
	series = make([]domain.DrawdownPoint, len(values))
	peak := values[0]
	runningPeakIdx := 0
	for i, v := range values {
		if v.GreaterThan(peak) {
			peak = v
			runningPeakIdx = i
		}
		dd := 0.0
		if peak.IsPositive() {
			dd = peak.Sub(v).Div(peak).InexactFloat64()
		}
		series[i] = domain.DrawdownPoint{Period: i, Value: v, Peak: peak, Drawdown: dd}
		if dd > maxDrawdown {
			maxDrawdown = dd
			peakIdx = runningPeakIdx
			troughIdx = i
		}
	}
	return series, maxDrawdown, peakIdx, troughIdx
}

// MaxDrawdown is the largest peak-to-trough decline of the series.
func MaxDrawdown(values []decimal.Decimal) float64 {
	_, dd, _, _ := Drawdowns(values)
	return dd
}
