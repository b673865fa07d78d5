package returns

import "github.com/shopspring/decimal"

// Fixed returns the same rate for every year.
type Fixed struct {
	history
	rate decimal.Decimal
}

func newFixed(rate decimal.Decimal) *Fixed {
	return &Fixed{history: newHistory(), rate: clampRate(rate)}
}

func (f *Fixed) Rate(year int) (decimal.Decimal, error) {
	return f.record(year, f.rate), nil
}

func (f *Fixed) Seed() *int64 { return nil }
