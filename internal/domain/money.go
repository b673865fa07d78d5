package domain

import (
	"math"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// CurrencyScale is the number of decimal places kept for monetary amounts.
const CurrencyScale = 2

var (
	// MonthsPerYear as a decimal for period conversions.
	MonthsPerYear = decimal.NewFromInt(12)
	one           = decimal.NewFromInt(1)
)

// RoundMoney rounds an amount to the currency scale.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyScale)
}

// ClampZero returns d, or zero when d is negative.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// MinDecimal returns the smaller of a and b.
func MinDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// MaxDecimal returns the larger of a and b.
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// GrowthFactor returns (1 + rate)^years for integer years.
func GrowthFactor(rate decimal.Decimal, years int) decimal.Decimal {
	if years <= 0 {
		return one
	}
	return one.Add(rate).Pow(decimal.NewFromInt(int64(years)))
}

// DecimalPtr returns a pointer to d.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// MonthlyRate converts an annual rate into the equivalent compounding monthly
// rate, so twelve monthly steps reproduce the annual growth.
func MonthlyRate(annual decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(math.Pow(1+annual.InexactFloat64(), 1.0/12) - 1)
}

// FormatEUR renders an amount as euros with the currency's grouping, e.g.
// "€1,234.56".
func FormatEUR(d decimal.Decimal) string {
	cur := money.GetCurrency(money.EUR)
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, money.EUR).Display()
}
