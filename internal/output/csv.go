package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

// CSVFormatter writes one table per report section, separated by blank
// lines. Simulation years come first, one row per year and phase.
type CSVFormatter struct{}

func (CSVFormatter) Name() string { return "csv" }

func (CSVFormatter) Format(report *Report) ([]byte, error) {
	if report == nil || report.Empty() {
		return nil, fmt.Errorf("report has no results")
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	sections := 0
	next := func() {
		if sections > 0 {
			_ = w.Write([]string{})
		}
		sections++
	}

	if res := report.Simulation; res != nil {
		next()
		_ = w.Write([]string{"Phase", "Year", "Segment", "Strategy", "StartCapital", "Contribution", "Withdrawal", "Rate", "Gain", "Vorabpauschale", "TaxPaid", "NetWithdrawal", "EndCapital"})
		res.Accumulation.Each(func(year int, s domain.SimulationYearState) {
			_ = w.Write([]string{
				"accumulation", strconv.Itoa(year), "", "",
				money(s.StartCapital), money(s.Contribution), "0.00",
				s.Rate.String(), money(s.Gain), money(s.Vorabpauschale),
				money(s.TaxPaid), "0.00", money(s.EndCapital),
			})
		})
		if wr := res.Withdrawal; wr != nil {
			wr.Years.Each(func(year int, s domain.WithdrawalYearState) {
				_ = w.Write([]string{
					"withdrawal", strconv.Itoa(year), s.SegmentID, string(s.Strategy),
					money(s.StartCapital), "0.00", money(s.Withdrawal),
					s.Rate.String(), money(s.Gain), money(s.Vorabpauschale),
					money(s.TaxPaid), money(s.NetWithdrawal), money(s.EndCapital),
				})
			})
		}
	}

	if m := report.Risk; m != nil {
		next()
		_ = w.Write([]string{"Method", "Confidence", "MaxLossAmount", "MaxLossPercent"})
		for _, set := range [][]domain.ValueAtRisk{m.ValueAtRisk, m.HistoricalVaR} {
			for _, v := range set {
				_ = w.Write([]string{v.Method, ratio(v.Confidence), money(v.MaxLossAmount), ratio(v.MaxLossPercent)})
			}
		}
	}

	if mc := report.MonteCarlo; mc != nil {
		next()
		_ = w.Write([]string{"Percentile", "FinalCapital"})
		for _, key := range percentileOrder {
			if v, ok := mc.Percentiles[key]; ok {
				_ = w.Write([]string{key, money(v)})
			}
		}
		_ = w.Write([]string{"success_rate", mc.SuccessRate.StringFixed(4)})
	}

	if sa := report.Sensitivity; sa != nil {
		next()
		_ = w.Write([]string{"Rank", "Parameter", "BaseValue", "DownValue", "UpValue", "MetricDown", "MetricUp", "ImpactDown", "ImpactUp", "ImpactPct"})
		for _, r := range sa.Results {
			_ = w.Write([]string{
				strconv.Itoa(r.Rank), r.Parameter.Name,
				r.BaseValue.String(), r.DownValue.String(), r.UpValue.String(),
				money(r.MetricDown), money(r.MetricUp),
				money(r.ImpactDown), money(r.ImpactUp), r.ImpactPct.StringFixed(2),
			})
		}
	}

	if sr := report.SequenceRisk; sr != nil {
		next()
		_ = w.Write([]string{"Order", "FinalPortfolioValue", "TotalWithdrawn", "YearsUntilDepletion"})
		for _, s := range []domain.SequenceScenario{sr.BestCase, sr.AverageCase, sr.WorstCase} {
			depleted := ""
			if s.YearsUntilDepletion != nil {
				depleted = strconv.Itoa(*s.YearsUntilDepletion)
			}
			_ = w.Write([]string{s.Order, money(s.FinalPortfolioValue), money(s.TotalWithdrawn), depleted})
		}
	}

	if rc := report.Rebalancing; rc != nil {
		next()
		_ = w.Write([]string{"Rank", "Policy", "RebalanceCount", "FinalValue", "TotalCost", "TotalTax", "AnnualizedReturn", "Volatility", "SharpeRatio", "TrackingError", "Score"})
		for _, r := range rc.Runs {
			_ = w.Write([]string{
				strconv.Itoa(r.Rank), r.Policy.Name(), strconv.Itoa(r.RebalanceCount),
				money(r.FinalValue), money(r.TotalCost), money(r.TotalTax),
				ratio(r.AnnualizedReturn), ratio(r.Volatility), ratio(r.SharpeRatio.Value),
				ratio(r.TrackingError), ratio(r.Score),
			})
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// DetailedCSVFormatter writes the accumulation phase per contribution
// element.
type DetailedCSVFormatter struct{}

func (DetailedCSVFormatter) Name() string { return "detailed-csv" }

func (DetailedCSVFormatter) Format(report *Report) ([]byte, error) {
	if report == nil || report.Simulation == nil {
		return nil, fmt.Errorf("detailed CSV needs a simulation result")
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"Element", "AssetType", "Year", "Phase", "StartCapital", "Contribution", "Rate", "Gain", "CostBasis", "Vorabpauschale", "AccumulatedVorabpauschale", "AllowanceUsed", "TaxPaid", "EndCapital"})
	for _, el := range report.Simulation.Elements {
		el.Years.Each(func(year int, s domain.SimulationYearState) {
			_ = w.Write([]string{
				el.ElementID, string(el.AssetType), strconv.Itoa(year), string(s.Phase),
				money(s.StartCapital), money(s.Contribution), s.Rate.String(), money(s.Gain),
				money(s.CostBasis), money(s.Vorabpauschale), money(s.AccumulatedVorabpauschale),
				money(s.AllowanceUsed), money(s.TaxPaid), money(s.EndCapital),
			})
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV: %w", err)
	}
	return buf.Bytes(), nil
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func ratio(f float64) string { return strconv.FormatFloat(f, 'f', 6, 64) }
