package output

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rgehrsitz/zinsplan/internal/calculation"
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	numberStyle  = cellStyle.Align(lipgloss.Right)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
)

const rule = "================================================================================="

// ConsoleFormatter renders the detailed console report.
type ConsoleFormatter struct{}

func (ConsoleFormatter) Name() string { return "console" }

func (c ConsoleFormatter) Format(report *Report) ([]byte, error) {
	if report == nil || report.Empty() {
		return nil, fmt.Errorf("report has no results")
	}
	var buf bytes.Buffer

	fmt.Fprintln(&buf, rule)
	title := "ZINSPLAN RETIREMENT PROJECTION"
	if report.Name != "" {
		title += ": " + report.Name
	}
	fmt.Fprintln(&buf, titleStyle.Render(title))
	fmt.Fprintln(&buf, rule)
	if report.ConfigPath != "" {
		fmt.Fprintf(&buf, "Configuration: %s\n", report.ConfigPath)
	}
	fmt.Fprintln(&buf)

	if report.Simulation != nil {
		writeSimulation(&buf, report.Simulation)
	}
	if report.Risk != nil {
		writeRisk(&buf, report.Risk)
	}
	if report.MonteCarlo != nil {
		writeMonteCarlo(&buf, report.MonteCarlo)
	}
	if report.Sensitivity != nil {
		writeSensitivity(&buf, report.Sensitivity)
	}
	if report.SequenceRisk != nil {
		writeSequenceRisk(&buf, report.SequenceRisk)
	}
	if report.Rebalancing != nil {
		writeRebalancing(&buf, report.Rebalancing)
	}
	return buf.Bytes(), nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			default:
				return numberStyle
			}
		})
}

func section(buf *bytes.Buffer, name string) {
	fmt.Fprintln(buf, sectionStyle.Render(name))
}

func writeSimulation(buf *bytes.Buffer, res *domain.SimulationResult) {
	section(buf, "ACCUMULATION")
	if res.Seed != nil {
		fmt.Fprintf(buf, "Seed: %d\n", *res.Seed)
	}
	t := newTable("Year", "Start", "Contribution", "Return", "Gain", "Vorabpauschale", "Tax", "End")
	res.Accumulation.Each(func(year int, s domain.SimulationYearState) {
		t.Row(
			strconv.Itoa(year),
			FormatCurrency(s.StartCapital),
			FormatCurrency(s.Contribution),
			FormatPercentage(s.Rate),
			FormatCurrency(s.Gain),
			FormatCurrency(s.Vorabpauschale),
			FormatCurrency(s.TaxPaid),
			FormatCurrency(s.EndCapital),
		)
	})
	fmt.Fprintln(buf, t.Render())
	fmt.Fprintf(buf, "Capital at end of savings phase: %s\n", FormatCurrency(res.FinalCapital()))
	fmt.Fprintf(buf, "Total tax paid:                  %s\n", FormatCurrency(res.TotalTaxPaid()))
	if pot := res.LossPot; !pot.Total().IsZero() {
		fmt.Fprintf(buf, "Loss carry-forward:              equity %s, other %s\n",
			FormatCurrency(pot.StockLosses), FormatCurrency(pot.OtherLosses))
	}
	fmt.Fprintln(buf)

	if res.Withdrawal != nil {
		writeWithdrawal(buf, res.Withdrawal)
	}
}

func writeWithdrawal(buf *bytes.Buffer, wr *domain.WithdrawalResult) {
	section(buf, "WITHDRAWAL")
	t := newTable("Year", "Strategy", "Start", "Withdrawal", "Monthly", "Tax", "Net", "Return", "End")
	wr.Years.Each(func(year int, s domain.WithdrawalYearState) {
		t.Row(
			strconv.Itoa(year),
			string(s.Strategy),
			FormatCurrency(s.StartCapital),
			FormatCurrency(s.Withdrawal),
			FormatCurrency(s.MonthlyWithdrawal),
			FormatCurrency(s.TaxPaid),
			FormatCurrency(s.NetWithdrawal),
			FormatPercentage(s.Rate),
			FormatCurrency(s.EndCapital),
		)
	})
	fmt.Fprintln(buf, t.Render())
	fmt.Fprintf(buf, "Total withdrawn:  %s\n", FormatCurrency(wr.TotalWithdrawn))
	fmt.Fprintf(buf, "Total net:        %s\n", FormatCurrency(wr.TotalNet))
	fmt.Fprintf(buf, "Total tax:        %s\n", FormatCurrency(wr.TotalTax))
	fmt.Fprintf(buf, "Final capital:    %s\n", FormatCurrency(wr.FinalCapital))
	if n := wr.YearsUntilDepletion(); n != nil {
		fmt.Fprintln(buf, warnStyle.Render(fmt.Sprintf("Capital depleted in %d after %d years", *wr.DepletionYear, *n)))
	} else if last, _, ok := wr.Years.Last(); ok {
		fmt.Fprintf(buf, "Capital lasts through %d\n", last)
	}
	fmt.Fprintln(buf)
}

func writeRisk(buf *bytes.Buffer, m *domain.RiskMetrics) {
	section(buf, "RISK METRICS")
	fmt.Fprintf(buf, "Periods:            %d\n", m.Periods)
	fmt.Fprintf(buf, "Mean return:        %s\n", formatPercentFloat(m.MeanReturn))
	fmt.Fprintf(buf, "Annualized return:  %s\n", formatPercentFloat(m.AnnualizedReturn))
	fmt.Fprintf(buf, "Volatility:         %s\n", formatPercentFloat(m.Volatility))
	fmt.Fprintf(buf, "Sharpe ratio:       %s\n", formatRatio(m.SharpeRatio))
	fmt.Fprintf(buf, "Sortino ratio:      %s\n", formatRatio(m.SortinoRatio))
	fmt.Fprintf(buf, "Calmar ratio:       %s\n", formatRatio(m.CalmarRatio))
	fmt.Fprintf(buf, "Max drawdown:       %s (periods %d to %d)\n",
		formatPercentFloat(m.MaxDrawdown), m.MaxDrawdownPeak, m.MaxDrawdownTrough)

	t := newTable("Confidence", "Parametric VaR", "Parametric %", "Historical VaR", "Historical %")
	for i, v := range m.ValueAtRisk {
		row := []string{
			formatPercentFloat(v.Confidence),
			FormatCurrency(v.MaxLossAmount),
			formatPercentFloat(v.MaxLossPercent),
			"-", "-",
		}
		if i < len(m.HistoricalVaR) {
			h := m.HistoricalVaR[i]
			row[3] = FormatCurrency(h.MaxLossAmount)
			row[4] = formatPercentFloat(h.MaxLossPercent)
		}
		t.Row(row...)
	}
	fmt.Fprintln(buf, t.Render())
	fmt.Fprintln(buf)
}

func writeMonteCarlo(buf *bytes.Buffer, mc *calculation.MonteCarloResult) {
	section(buf, "MONTE CARLO")
	fmt.Fprintf(buf, "Run:           %s\n", mc.RunID)
	fmt.Fprintf(buf, "Trials:        %d (base seed %d)\n", mc.Trials, mc.BaseSeed)
	fmt.Fprintf(buf, "Success rate:  %s\n", FormatPercentage(mc.SuccessRate))
	fmt.Fprintf(buf, "Median final:  %s\n", FormatCurrency(mc.MedianFinal))

	t := newTable("Percentile", "Final Capital")
	for _, key := range percentileOrder {
		if v, ok := mc.Percentiles[key]; ok {
			t.Row(key, FormatCurrency(v))
		}
	}
	fmt.Fprintln(buf, t.Render())

	if len(mc.DepletionYears) > 0 {
		fmt.Fprintln(buf, "Years until depletion in failed trials:")
		for _, key := range percentileOrder {
			if v, ok := mc.DepletionYears[key]; ok {
				fmt.Fprintf(buf, "  %-5s %d\n", key, v)
			}
		}
	}
	fmt.Fprintln(buf)
}

func writeSensitivity(buf *bytes.Buffer, sa *domain.SensitivityAnalysis) {
	section(buf, "SENSITIVITY ANALYSIS: "+strings.ToUpper(strings.ReplaceAll(string(sa.Metric), "_", " ")))
	fmt.Fprintf(buf, "Base case: %s\n", FormatCurrency(sa.BaseMetric))

	t := newTable("Rank", "Parameter", "Base", "Down", "Up", "Impact Down", "Impact Up", "Impact %")
	for _, r := range sa.Results {
		t.Row(
			strconv.Itoa(r.Rank),
			r.Parameter.Name,
			parameterValue(r.Parameter, r.BaseValue),
			parameterValue(r.Parameter, r.DownValue),
			parameterValue(r.Parameter, r.UpValue),
			FormatCurrency(r.ImpactDown),
			FormatCurrency(r.ImpactUp),
			r.ImpactPct.StringFixed(2)+"%",
		)
	}
	fmt.Fprintln(buf, t.Render())

	riskEmoji := ""
	switch sa.RiskLevel {
	case "LOW":
		riskEmoji = "✅"
	case "MEDIUM":
		riskEmoji = "⚠️"
	case "HIGH":
		riskEmoji = "🔴"
	case "CRITICAL":
		riskEmoji = "🚨"
	}
	fmt.Fprintf(buf, "Most sensitive: %s\n", sa.MostSensitiveParameter)
	fmt.Fprintf(buf, "RISK LEVEL: %s %s\n", riskEmoji, sa.RiskLevel)
	if len(sa.Recommendations) > 0 {
		fmt.Fprintln(buf, "RECOMMENDATIONS:")
		for _, rec := range sa.Recommendations {
			fmt.Fprintf(buf, "  • %s\n", rec)
		}
	}
	fmt.Fprintln(buf)
}

// parameterValue prints rates as percentages and everything else as euros.
func parameterValue(p domain.SensitivityParameter, v decimal.Decimal) string {
	if p.Unit == "percent" {
		return FormatPercentage(v)
	}
	return FormatCurrency(v)
}

func writeSequenceRisk(buf *bytes.Buffer, sr *domain.SequenceRiskAnalysis) {
	section(buf, "SEQUENCE OF RETURNS RISK")
	fmt.Fprintf(buf, "Starting capital: %s\n", FormatCurrency(sr.StartingCapital))
	fmt.Fprintf(buf, "Mean return:      %s\n", FormatPercentage(sr.MeanReturn))

	t := newTable("Order", "Final Value", "Withdrawn", "Depleted After")
	for _, s := range []domain.SequenceScenario{sr.BestCase, sr.AverageCase, sr.WorstCase} {
		depleted := "-"
		if s.YearsUntilDepletion != nil {
			depleted = fmt.Sprintf("%d years", *s.YearsUntilDepletion)
		}
		t.Row(s.Order, FormatCurrency(s.FinalPortfolioValue), FormatCurrency(s.TotalWithdrawn), depleted)
	}
	fmt.Fprintln(buf, t.Render())
	fmt.Fprintf(buf, "Final value spread: %s\n", FormatCurrency(sr.FinalValueSpread))
	fmt.Fprintf(buf, "Depletion spread:   %d years\n", sr.DepletionSpread)
	fmt.Fprintf(buf, "RISK LEVEL: %s\n", sr.RiskLevel)
	fmt.Fprintln(buf)
}

func writeRebalancing(buf *bytes.Buffer, rc *domain.RebalancingComparison) {
	section(buf, "REBALANCING POLICIES")
	if rc.Seed != nil {
		fmt.Fprintf(buf, "Seed: %d\n", *rc.Seed)
	}
	t := newTable("Rank", "Policy", "Rebalances", "Final Value", "Costs", "Tax", "Return p.a.", "Sharpe", "Tracking Error", "Score")
	for _, r := range rc.Runs {
		t.Row(
			strconv.Itoa(r.Rank),
			r.Policy.Name(),
			strconv.Itoa(r.RebalanceCount),
			FormatCurrency(r.FinalValue),
			FormatCurrency(r.TotalCost),
			FormatCurrency(r.TotalTax),
			formatPercentFloat(r.AnnualizedReturn),
			formatRatio(r.SharpeRatio),
			formatPercentFloat(r.TrackingError),
			decimal.NewFromFloat(r.Score).StringFixed(3),
		)
	}
	fmt.Fprintln(buf, t.Render())
	fmt.Fprintf(buf, "Recommended: %s\n", rc.Recommended)
	if rc.Rationale != "" {
		fmt.Fprintf(buf, "  • %s\n", rc.Rationale)
	}
	fmt.Fprintln(buf)
}

// ConsoleLiteFormatter prints a short summary of the headline numbers.
type ConsoleLiteFormatter struct{}

func (ConsoleLiteFormatter) Name() string { return "console-lite" }

func (ConsoleLiteFormatter) Format(report *Report) ([]byte, error) {
	if report == nil || report.Empty() {
		return nil, fmt.Errorf("report has no results")
	}
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "ZINSPLAN SUMMARY")
	fmt.Fprintln(&buf, strings.Repeat("=", 40))

	if res := report.Simulation; res != nil {
		fmt.Fprintf(&buf, "Capital at retirement: %s\n", FormatCurrency(res.FinalCapital()))
		fmt.Fprintf(&buf, "Total tax:             %s\n", FormatCurrency(res.TotalTaxPaid()))
		if wr := res.Withdrawal; wr != nil {
			fmt.Fprintf(&buf, "Total net withdrawn:   %s\n", FormatCurrency(wr.TotalNet))
			if wr.DepletionYear != nil {
				fmt.Fprintf(&buf, "Depleted:              %d\n", *wr.DepletionYear)
			} else {
				fmt.Fprintf(&buf, "Remaining capital:     %s\n", FormatCurrency(wr.FinalCapital))
			}
		}
	}
	if mc := report.MonteCarlo; mc != nil {
		fmt.Fprintf(&buf, "Success rate:          %s of %d trials\n", FormatPercentage(mc.SuccessRate), mc.Trials)
		fmt.Fprintf(&buf, "Median final capital:  %s\n", FormatCurrency(mc.MedianFinal))
	}
	if m := report.Risk; m != nil {
		fmt.Fprintf(&buf, "Max drawdown:          %s\n", formatPercentFloat(m.MaxDrawdown))
	}
	if sa := report.Sensitivity; sa != nil {
		fmt.Fprintf(&buf, "Most sensitive:        %s (%s)\n", sa.MostSensitiveParameter, sa.RiskLevel)
	}
	if sr := report.SequenceRisk; sr != nil {
		fmt.Fprintf(&buf, "Sequence risk:         %s\n", sr.RiskLevel)
	}
	if rc := report.Rebalancing; rc != nil {
		fmt.Fprintf(&buf, "Recommended policy:    %s\n", rc.Recommended)
	}
	return buf.Bytes(), nil
}
