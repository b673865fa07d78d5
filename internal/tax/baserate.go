package tax

import (
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

// fallbackBaseRates is the published Basiszins used when the caller supplies
// no table of its own.
var fallbackBaseRates = map[int]string{
	2018: "0.0087",
	2019: "0.0052",
	2020: "0.0007",
	2021: "-0.0045",
	2022: "-0.0005",
	2023: "0.0255",
	2024: "0.0229",
	2025: "0.0253",
}

// FallbackBaseRates returns the built-in base-rate table.
func FallbackBaseRates() map[int]domain.BaseRateEntry {
	out := make(map[int]domain.BaseRateEntry, len(fallbackBaseRates))
	for year, rate := range fallbackBaseRates {
		out[year] = domain.BaseRateEntry{Rate: decimal.RequireFromString(rate), Source: domain.RateSourceFallback}
	}
	return out
}

// BaseRateTable resolves the base rate for a year. Entries supplied by a
// rate-lookup collaborator override the built-in table; years beyond both
// use the projected rate when one is configured.
type BaseRateTable struct {
	entries   map[int]domain.BaseRateEntry
	projected *decimal.Decimal
}

// NewBaseRateTable merges configured entries over the fallback table.
func NewBaseRateTable(configured map[int]domain.BaseRateEntry, projected *decimal.Decimal) *BaseRateTable {
	entries := FallbackBaseRates()
	for year, e := range configured {
		if e.Source == "" {
			e.Source = domain.RateSourceManual
		}
		entries[year] = e
	}
	return &BaseRateTable{entries: entries, projected: projected}
}

// Lookup returns the entry for year. Without an entry or projection the
// year cannot be taxed and a ConfigurationError is returned.
func (t *BaseRateTable) Lookup(year int) (domain.BaseRateEntry, error) {
	if e, ok := t.entries[year]; ok {
		return e, nil
	}
	if t.projected != nil {
		return domain.BaseRateEntry{Rate: *t.projected, Source: domain.RateSourceFallback}, nil
	}
	return domain.BaseRateEntry{}, domain.NewConfigurationError("tax", "no base rate for year %d", year)
}

// Entries returns the explicit entries in chronological order.
func (t *BaseRateTable) Entries() *domain.YearIndex[domain.BaseRateEntry] {
	out := domain.NewYearIndex[domain.BaseRateEntry]()
	for year, e := range t.entries {
		out.Set(year, e)
	}
	return out
}
