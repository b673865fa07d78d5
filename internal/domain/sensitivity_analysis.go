package domain

import (
	"github.com/shopspring/decimal"
)

// SensitivityParameter is an input perturbed one at a time.
type SensitivityParameter struct {
	Name        string          `yaml:"name" json:"name"`
	Delta       decimal.Decimal `yaml:"delta" json:"delta"`
	Relative    bool            `yaml:"relative" json:"relative"` // delta is a fraction of the base value
	Unit        string          `yaml:"unit" json:"unit"`         // "percent", "currency"
	Description string          `yaml:"description" json:"description"`
}

// SensitivityMetric names the output compared across perturbations.
type SensitivityMetric string

const (
	MetricFinalCapital      SensitivityMetric = "final_capital"
	MetricWithdrawalCapital SensitivityMetric = "withdrawal_final_capital"
	MetricTotalWithdrawn    SensitivityMetric = "total_withdrawn"
	MetricTotalTax          SensitivityMetric = "total_tax"
)

// SensitivityResult is the outcome of perturbing a single parameter down and up.
type SensitivityResult struct {
	Parameter  SensitivityParameter `json:"parameter"`
	BaseValue  decimal.Decimal      `json:"baseValue"`
	DownValue  decimal.Decimal      `json:"downValue"`
	UpValue    decimal.Decimal      `json:"upValue"`
	MetricDown decimal.Decimal      `json:"metricDown"`
	MetricUp   decimal.Decimal      `json:"metricUp"`
	ImpactDown decimal.Decimal      `json:"impactDown"`
	ImpactUp   decimal.Decimal      `json:"impactUp"`
	MaxImpact  decimal.Decimal      `json:"maxImpact"`
	ImpactPct  decimal.Decimal      `json:"impactPct"`
	Rank       int                  `json:"rank"`
}

// SensitivityAnalysis ranks parameters by their effect on the target metric.
type SensitivityAnalysis struct {
	Metric                 SensitivityMetric   `json:"metric"`
	BaseMetric             decimal.Decimal     `json:"baseMetric"`
	Results                []SensitivityResult `json:"results"`
	MostSensitiveParameter string              `json:"mostSensitiveParameter"`
	RiskLevel              string              `json:"riskLevel"` // "LOW", "MEDIUM", "HIGH", "CRITICAL"
	Recommendations        []string            `json:"recommendations"`
}

// Common sensitivity parameters
var (
	AccumulationReturnParam = SensitivityParameter{
		Name:        "accumulation_return",
		Delta:       decimal.NewFromFloat(0.01),
		Unit:        "percent",
		Description: "Return rate during the savings phase",
	}

	ContributionParam = SensitivityParameter{
		Name:        "contributions",
		Delta:       decimal.NewFromFloat(0.10),
		Relative:    true,
		Unit:        "currency",
		Description: "All savings-plan and one-time contribution amounts",
	}

	TaxRateParam = SensitivityParameter{
		Name:        "capital_gains_rate",
		Delta:       decimal.NewFromFloat(0.01),
		Unit:        "percent",
		Description: "Capital gains tax rate",
	}

	WithdrawalReturnParam = SensitivityParameter{
		Name:        "withdrawal_return",
		Delta:       decimal.NewFromFloat(0.01),
		Unit:        "percent",
		Description: "Return rate during the withdrawal phase",
	}

	InflationParam = SensitivityParameter{
		Name:        "inflation_rate",
		Delta:       decimal.NewFromFloat(0.01),
		Unit:        "percent",
		Description: "Inflation used to adjust withdrawals",
	}
)

// DefaultSensitivityParameters returns the standard one-at-a-time set.
func DefaultSensitivityParameters() []SensitivityParameter {
	return []SensitivityParameter{
		AccumulationReturnParam,
		ContributionParam,
		TaxRateParam,
		WithdrawalReturnParam,
		InflationParam,
	}
}

// DetermineRiskLevel grades the largest relative impact among the results.
func (sa *SensitivityAnalysis) DetermineRiskLevel() string {
	maxScore := decimal.Zero
	for _, r := range sa.Results {
		if r.ImpactPct.GreaterThan(maxScore) {
			maxScore = r.ImpactPct
		}
	}

	if maxScore.LessThan(decimal.NewFromFloat(5.0)) {
		return "LOW"
	} else if maxScore.LessThan(decimal.NewFromFloat(15.0)) {
		return "MEDIUM"
	} else if maxScore.LessThan(decimal.NewFromFloat(30.0)) {
		return "HIGH"
	} else {
		return "CRITICAL"
	}
}

// GenerateRecommendations derives advice from the risk level and the most
// sensitive parameter.
func (sa *SensitivityAnalysis) GenerateRecommendations() []string {
	recommendations := []string{}

	switch sa.DetermineRiskLevel() {
	case "LOW":
		recommendations = append(recommendations, "Plan is robust to parameter changes")
	case "MEDIUM":
		recommendations = append(recommendations, "Monitor key parameters regularly")
		recommendations = append(recommendations, "Consider conservative assumptions for critical parameters")
	case "HIGH":
		recommendations = append(recommendations, "Plan is sensitive to parameter changes")
		recommendations = append(recommendations, "Consider stress testing with extreme scenarios")
	case "CRITICAL":
		recommendations = append(recommendations, "Plan is highly sensitive to parameter changes")
		recommendations = append(recommendations, "Consider more conservative assumptions")
		recommendations = append(recommendations, "Review the plan at least yearly")
	}

	switch sa.MostSensitiveParameter {
	case AccumulationReturnParam.Name:
		recommendations = append(recommendations, "Diversify across asset classes to narrow the range of savings-phase returns")
	case ContributionParam.Name:
		recommendations = append(recommendations, "Keep savings plans running; contribution cuts weigh most on the outcome")
	case TaxRateParam.Name:
		recommendations = append(recommendations, "Use the Sparerpauschbetrag and loss offsetting every year")
	case WithdrawalReturnParam.Name:
		recommendations = append(recommendations, "Consider a cash bucket to avoid selling after losses")
	case InflationParam.Name:
		recommendations = append(recommendations, "Check whether inflation-adjusted withdrawals remain sustainable")
	}

	return recommendations
}
