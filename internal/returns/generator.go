// Package returns produces per-year growth rates for the accumulation and
// withdrawal phases.
package returns

import (
	"math/rand/v2"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

// MinRate is the lowest rate a generator emits. A loss of 100% or more would
// drive capital negative through growth alone.
var MinRate = decimal.NewFromFloat(-0.9999)

// Generator yields the growth rate for a year. Implementations memoise every
// rate they hand out so a run can be replayed exactly. A generator belongs to
// one simulation run and is not safe for concurrent use.
type Generator interface {
	// Rate returns the portfolio rate for the given year.
	Rate(year int) (decimal.Decimal, error)
	// History returns every rate produced so far in chronological order.
	History() *domain.YearIndex[decimal.Decimal]
	// Replay returns a variable configuration that reproduces History.
	Replay() domain.ReturnConfiguration
	// Seed returns the seed in use, or nil for non-random generators.
	Seed() *int64
}

// New builds the generator for a return configuration. startYear anchors
// path-dependent modes (multi-asset weight drift).
func New(cfg domain.ReturnConfiguration, startYear int) (Generator, error) {
	if err := cfg.Validate("returns"); err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case domain.ReturnFixed:
		return newFixed(cfg.Fixed.Rate), nil
	case domain.ReturnRandom:
		return newRandom(*cfg.Random), nil
	case domain.ReturnVariable:
		return newVariable(*cfg.Variable), nil
	case domain.ReturnMultiAsset:
		return NewMultiAsset(*cfg.MultiAsset, startYear)
	default:
		return nil, domain.NewConfigurationError("returns", "unknown return mode %q", cfg.Mode)
	}
}

// Reseed returns a copy of cfg whose random draws use seed. Non-random
// configurations are returned unchanged.
func Reseed(cfg domain.ReturnConfiguration, seed int64) domain.ReturnConfiguration {
	switch cfg.Mode {
	case domain.ReturnRandom:
		if cfg.Random != nil {
			r := *cfg.Random
			r.Seed = &seed
			cfg.Random = &r
		}
	case domain.ReturnMultiAsset:
		if cfg.MultiAsset != nil {
			m := *cfg.MultiAsset
			m.Seed = &seed
			cfg.MultiAsset = &m
		}
	}
	return cfg
}

// Shift returns a copy of cfg with every expected rate moved by delta.
// Volatilities and seeds are kept, so a shifted random run uses the same
// draws around a different mean.
func Shift(cfg domain.ReturnConfiguration, delta decimal.Decimal) domain.ReturnConfiguration {
	switch cfg.Mode {
	case domain.ReturnFixed:
		if cfg.Fixed != nil {
			cfg.Fixed = &domain.FixedReturn{Rate: cfg.Fixed.Rate.Add(delta)}
		}
	case domain.ReturnRandom:
		if cfg.Random != nil {
			r := *cfg.Random
			r.Mean = r.Mean.Add(delta)
			cfg.Random = &r
		}
	case domain.ReturnVariable:
		if cfg.Variable != nil {
			rates := make(map[int]decimal.Decimal, len(cfg.Variable.Rates))
			for y, r := range cfg.Variable.Rates {
				rates[y] = r.Add(delta)
			}
			cfg.Variable = &domain.VariableReturn{Rates: rates}
		}
	case domain.ReturnMultiAsset:
		if cfg.MultiAsset != nil {
			m := *cfg.MultiAsset
			m.Assets = make([]domain.AssetClass, len(cfg.MultiAsset.Assets))
			for i, a := range cfg.MultiAsset.Assets {
				a.ExpectedReturn = a.ExpectedReturn.Add(delta)
				m.Assets[i] = a
			}
			cfg.MultiAsset = &m
		}
	}
	return cfg
}

func clampRate(r decimal.Decimal) decimal.Decimal {
	if r.LessThan(MinRate) {
		return MinRate
	}
	return r
}

// newSeed picks a seed from the runtime-seeded global source. It is only
// used when the caller supplied none; the chosen seed is reported back.
func newSeed() int64 {
	return rand.Int64()
}

// history is the memo shared by all generator kinds.
type history struct {
	rates *domain.YearIndex[decimal.Decimal]
}

func newHistory() history {
	return history{rates: domain.NewYearIndex[decimal.Decimal]()}
}

func (h history) lookup(year int) (decimal.Decimal, bool) {
	return h.rates.Get(year)
}

func (h history) record(year int, r decimal.Decimal) decimal.Decimal {
	h.rates.Set(year, r)
	return r
}

func (h history) History() *domain.YearIndex[decimal.Decimal] {
	out := domain.NewYearIndex[decimal.Decimal]()
	h.rates.Each(func(y int, r decimal.Decimal) { out.Set(y, r) })
	return out
}

func (h history) Replay() domain.ReturnConfiguration {
	rates := make(map[int]decimal.Decimal, h.rates.Len())
	h.rates.Each(func(y int, r decimal.Decimal) { rates[y] = r })
	return domain.ReturnConfiguration{
		Mode:     domain.ReturnVariable,
		Variable: &domain.VariableReturn{Rates: rates},
	}
}
