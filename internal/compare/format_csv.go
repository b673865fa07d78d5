package compare

import (
	"encoding/csv"
	"strconv"
	"strings"
)

// CSVFormatter formats comparison results as CSV
type CSVFormatter struct{}

// Format generates CSV output for comparison results
func (cf *CSVFormatter) Format(compSet *StrategyComparisonResult) (string, error) {
	var sb strings.Builder
	writer := csv.NewWriter(&sb)

	header := []string{
		"Plan",
		"Type",
		"Strategies",
		"First Year Withdrawal",
		"Average Net",
		"Total Withdrawn",
		"Total Net",
		"Total Tax",
		"Final Capital",
		"Years Funded",
		"Depletion Year",
		"Net Diff from Base",
		"Net % Change",
		"Years Funded Diff",
		"Tax Diff from Base",
	}
	if err := writer.Write(header); err != nil {
		return "", err
	}

	if compSet.BaseResult != nil {
		if err := writer.Write(cf.formatRow(compSet.BaseResult, "base")); err != nil {
			return "", err
		}
	}
	for i := range compSet.AlternativeResults {
		if err := writer.Write(cf.formatRow(&compSet.AlternativeResults[i], "alternative")); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	return sb.String(), nil
}

func (cf *CSVFormatter) formatRow(result *StrategyResult, kind string) []string {
	strategies := make([]string, len(result.Strategies))
	for i, s := range result.Strategies {
		strategies[i] = string(s)
	}
	depletion := ""
	if result.DepletionYear != nil {
		depletion = strconv.Itoa(*result.DepletionYear)
	}
	return []string{
		result.Name,
		kind,
		strings.Join(strategies, "+"),
		result.FirstYearWithdrawal.StringFixed(2),
		result.AverageNet.StringFixed(2),
		result.TotalWithdrawn.StringFixed(2),
		result.TotalNet.StringFixed(2),
		result.TotalTax.StringFixed(2),
		result.FinalCapital.StringFixed(2),
		strconv.Itoa(result.YearsFunded),
		depletion,
		result.NetDiffFromBase.StringFixed(2),
		result.NetPctFromBase.StringFixed(2),
		strconv.Itoa(result.YearsFundedDiff),
		result.TaxDiffFromBase.StringFixed(2),
	}
}
