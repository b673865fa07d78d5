package compare

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

// TableFormatter formats comparison results as a console table
type TableFormatter struct{}

// Format generates a formatted table comparing withdrawal plans
func (tf *TableFormatter) Format(compSet *StrategyComparisonResult) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("WITHDRAWAL STRATEGY COMPARISON"))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Base Plan: %s\n", compSet.BaseName))
	if compSet.ConfigPath != "" {
		sb.WriteString(fmt.Sprintf("Configuration: %s\n", compSet.ConfigPath))
	}
	sb.WriteString(fmt.Sprintf("Capital at retirement: %s\n", domain.FormatEUR(compSet.AccumulatedCapital)))
	if compSet.Seed != nil {
		sb.WriteString(fmt.Sprintf("Seed: %d\n", *compSet.Seed))
	}
	sb.WriteString("\n")

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Plan", "1st Year", "Avg Net", "Total Net", "Total Tax", "Final Capital", "Funded").
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
	for _, r := range compSet.All() {
		name := r.Name
		if compSet.BaseResult != nil && r.Name == compSet.BaseResult.Name {
			name += " (base)"
		}
		t.Row(
			tf.truncate(name, 25),
			tf.formatDecimal(r.FirstYearWithdrawal),
			tf.formatDecimal(r.AverageNet),
			tf.formatDecimal(r.TotalNet),
			tf.formatDecimal(r.TotalTax),
			tf.formatDecimal(r.FinalCapital),
			tf.fundedLabel(r),
		)
	}
	sb.WriteString(t.Render())
	sb.WriteString("\n")

	if len(compSet.AlternativeResults) > 0 {
		sb.WriteString("\nCOMPARISON TO BASE\n")
		sb.WriteString(strings.Repeat("-", 80) + "\n")
		for _, alt := range compSet.AlternativeResults {
			sb.WriteString(fmt.Sprintf("\n%s", alt.Name))
			if alt.Description != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", alt.Description))
			}
			sb.WriteString(":\n")

			sb.WriteString(fmt.Sprintf("  Net Income:       %s€%s (%s%%)\n",
				tf.deltaSymbol(alt.NetDiffFromBase),
				tf.formatDecimal(alt.NetDiffFromBase.Abs()),
				alt.NetPctFromBase.StringFixed(1)))

			if alt.YearsFundedDiff != 0 {
				sign := "+"
				if alt.YearsFundedDiff < 0 {
					sign = ""
				}
				sb.WriteString(fmt.Sprintf("  Longevity:        %s%d years\n", sign, alt.YearsFundedDiff))
			}

			if !alt.TaxDiffFromBase.IsZero() {
				// lower taxes are shown as a gain
				sb.WriteString(fmt.Sprintf("  Tax Impact:       %s€%s\n",
					tf.deltaSymbol(alt.TaxDiffFromBase.Neg()),
					tf.formatDecimal(alt.TaxDiffFromBase.Abs())))
			}
		}
		sb.WriteString("\n")
	}

	if len(compSet.Recommendations) > 0 {
		sb.WriteString("\nRECOMMENDATIONS\n")
		sb.WriteString(strings.Repeat("-", 80) + "\n")
		for _, rec := range compSet.Recommendations {
			sb.WriteString(fmt.Sprintf("• %s\n", rec))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func (tf *TableFormatter) fundedLabel(r StrategyResult) string {
	if r.DepletionYear != nil {
		return "depleted " + strconv.Itoa(*r.DepletionYear)
	}
	return strconv.Itoa(r.YearsFunded) + " years"
}

// formatDecimal shortens amounts to thousands or millions
func (tf *TableFormatter) formatDecimal(d decimal.Decimal) string {
	if d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1000000)) {
		return d.Div(decimal.NewFromInt(1000000)).StringFixed(2) + "M"
	} else if d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1000)) {
		return d.Div(decimal.NewFromInt(1000)).StringFixed(1) + "K"
	}
	return d.StringFixed(0)
}

// deltaSymbol returns a + or - symbol for deltas (positive is green concept)
func (tf *TableFormatter) deltaSymbol(delta decimal.Decimal) string {
	if delta.IsPositive() {
		return "+"
	} else if delta.IsNegative() {
		return "-"
	}
	return " "
}

func (tf *TableFormatter) truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// FormatCompact creates a compact single-line summary for each alternative
func (tf *TableFormatter) FormatCompact(compSet *StrategyComparisonResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Base: %s | ", compSet.BaseName))

	for i, alt := range compSet.AlternativeResults {
		if i > 0 {
			sb.WriteString(" | ")
		}
		change := "="
		if alt.NetDiffFromBase.IsPositive() {
			change = fmt.Sprintf("+€%s", tf.formatDecimal(alt.NetDiffFromBase))
		} else if alt.NetDiffFromBase.IsNegative() {
			change = fmt.Sprintf("-€%s", tf.formatDecimal(alt.NetDiffFromBase.Abs()))
		}

		sb.WriteString(fmt.Sprintf("%s: %s", alt.Name, change))
	}

	return sb.String()
}
