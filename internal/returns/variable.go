package returns

import (
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

// Variable looks rates up in a user supplied schedule. A year without an
// entry is a configuration error; there is no fallback rate.
type Variable struct {
	history
	rates map[int]decimal.Decimal
}

func newVariable(cfg domain.VariableReturn) *Variable {
	rates := make(map[int]decimal.Decimal, len(cfg.Rates))
	for y, r := range cfg.Rates {
		rates[y] = r
	}
	return &Variable{history: newHistory(), rates: rates}
}

func (v *Variable) Rate(year int) (decimal.Decimal, error) {
	r, ok := v.rates[year]
	if !ok {
		return decimal.Zero, domain.NewConfigurationError("returns", "variable returns have no entry for year %d", year)
	}
	return v.record(year, clampRate(r)), nil
}

func (v *Variable) Seed() *int64 { return nil }

// Covers reports the first year in [from, to] without a rate, if any.
func (v *Variable) Covers(from, to int) (int, bool) {
	for y := from; y <= to; y++ {
		if _, ok := v.rates[y]; !ok {
			return y, false
		}
	}
	return 0, true
}
