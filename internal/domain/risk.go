package domain

import "github.com/shopspring/decimal"

// RatioValue is a performance ratio with a display ceiling. Capped is set
// when the raw value exceeded the ceiling (or was undefined with a positive
// numerator) and Value holds the sentinel instead.
type RatioValue struct {
	Value  float64 `json:"value"`
	Capped bool    `json:"capped"`
}

// ValueAtRisk is the maximum expected loss at one confidence level.
type ValueAtRisk struct {
	Confidence     float64         `json:"confidence"`
	MaxLossAmount  decimal.Decimal `json:"maxLossAmount"`
	MaxLossPercent float64         `json:"maxLossPercent"`
	Method         string          `json:"method"`
}

// DrawdownPoint is one observation of the drawdown series.
type DrawdownPoint struct {
	Period   int             `json:"period"`
	Value    decimal.Decimal `json:"value"`
	Peak     decimal.Decimal `json:"peak"`
	Drawdown float64         `json:"drawdown"`
}

// RiskMetrics summarises the risk of a completed capital series.
type RiskMetrics struct {
	Periods           int             `json:"periods"`
	MeanReturn        float64         `json:"meanReturn"`
	Volatility        float64         `json:"volatility"`
	AnnualizedReturn  float64         `json:"annualizedReturn"`
	ValueAtRisk       []ValueAtRisk   `json:"valueAtRisk"`
	HistoricalVaR     []ValueAtRisk   `json:"historicalVaR"`
	SharpeRatio       RatioValue      `json:"sharpeRatio"`
	SortinoRatio      RatioValue      `json:"sortinoRatio"`
	CalmarRatio       RatioValue      `json:"calmarRatio"`
	MaxDrawdown       float64         `json:"maxDrawdown"`
	MaxDrawdownPeak   int             `json:"maxDrawdownPeak"`
	MaxDrawdownTrough int             `json:"maxDrawdownTrough"`
	Drawdowns         []DrawdownPoint `json:"drawdowns"`
}

// SequenceScenario is one ordering of a fixed multiset of returns.
type SequenceScenario struct {
	Order               string            `json:"order"`
	Returns             []decimal.Decimal `json:"returns"`
	Values              []decimal.Decimal `json:"values"`
	FinalPortfolioValue decimal.Decimal   `json:"finalPortfolioValue"`
	TotalWithdrawn      decimal.Decimal   `json:"totalWithdrawn"`
	YearsUntilDepletion *int              `json:"yearsUntilDepletion,omitempty"`
}

// SequenceRiskAnalysis compares best, as-given and worst orderings of the
// same returns under an identical withdrawal schedule.
type SequenceRiskAnalysis struct {
	StartingCapital  decimal.Decimal  `json:"startingCapital"`
	MeanReturn       decimal.Decimal  `json:"meanReturn"`
	BestCase         SequenceScenario `json:"bestCase"`
	AverageCase      SequenceScenario `json:"averageCase"`
	WorstCase        SequenceScenario `json:"worstCase"`
	FinalValueSpread decimal.Decimal  `json:"finalValueSpread"`
	DepletionSpread  int              `json:"depletionSpread"`
	RiskLevel        string           `json:"riskLevel"`
}
