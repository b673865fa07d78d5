// Package output renders simulation, risk and rebalancing results for the
// command line: styled console reports, JSON, YAML and CSV.
package output

import (
	"time"

	"github.com/rgehrsitz/zinsplan/internal/calculation"
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

// Report bundles everything a command produced. Sections that were not
// computed stay nil and are skipped by every formatter.
type Report struct {
	Name        string    `json:"name,omitempty"`
	ConfigPath  string    `json:"configPath,omitempty"`
	GeneratedAt time.Time `json:"generatedAt"`

	Simulation   *domain.SimulationResult      `json:"simulation,omitempty"`
	Risk         *domain.RiskMetrics           `json:"risk,omitempty"`
	MonteCarlo   *calculation.MonteCarloResult `json:"monteCarlo,omitempty"`
	Sensitivity  *domain.SensitivityAnalysis   `json:"sensitivity,omitempty"`
	SequenceRisk *domain.SequenceRiskAnalysis  `json:"sequenceRisk,omitempty"`
	Rebalancing  *domain.RebalancingComparison `json:"rebalancing,omitempty"`
}

// Empty reports whether no section was filled in.
func (r *Report) Empty() bool {
	return r.Simulation == nil && r.Risk == nil && r.MonteCarlo == nil &&
		r.Sensitivity == nil && r.SequenceRisk == nil && r.Rebalancing == nil
}

// FormatCurrency formats a decimal as euros.
func FormatCurrency(amount decimal.Decimal) string {
	return domain.FormatEUR(amount)
}

// FormatPercentage formats a fraction as a percentage, 0.05 -> "5.00%".
func FormatPercentage(fraction decimal.Decimal) string {
	return fraction.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func formatPercentFloat(fraction float64) string {
	return FormatPercentage(decimal.NewFromFloat(fraction))
}

// formatRatio marks values clipped to the display ceiling.
func formatRatio(r domain.RatioValue) string {
	s := decimal.NewFromFloat(r.Value).StringFixed(2)
	if r.Capped {
		s += " (capped)"
	}
	return s
}

// percentileOrder is the display order of Monte Carlo percentile keys.
var percentileOrder = []string{"5th", "10th", "25th", "50th", "75th", "90th", "95th"}
