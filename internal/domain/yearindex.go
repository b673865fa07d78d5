package domain

import (
	"encoding/json"
	"sort"
	"strconv"
)

// YearIndex is a year-keyed mapping that always iterates in chronological
// order. Map semantics give direct lookup; the sorted key slice keeps display
// and derived computations independent of Go's map ordering.
type YearIndex[T any] struct {
	years  []int
	values map[int]T
}

// NewYearIndex creates an empty index.
func NewYearIndex[T any]() *YearIndex[T] {
	return &YearIndex[T]{values: make(map[int]T)}
}

// Set stores v for year, replacing any previous value.
func (yi *YearIndex[T]) Set(year int, v T) {
	if yi.values == nil {
		yi.values = make(map[int]T)
	}
	if _, exists := yi.values[year]; !exists {
		i := sort.SearchInts(yi.years, year)
		yi.years = append(yi.years, 0)
		copy(yi.years[i+1:], yi.years[i:])
		yi.years[i] = year
	}
	yi.values[year] = v
}

// Get returns the value stored for year.
func (yi *YearIndex[T]) Get(year int) (T, bool) {
	if yi == nil || yi.values == nil {
		var zero T
		return zero, false
	}
	v, ok := yi.values[year]
	return v, ok
}

// Years returns the stored years in ascending order.
func (yi *YearIndex[T]) Years() []int {
	if yi == nil {
		return nil
	}
	out := make([]int, len(yi.years))
	copy(out, yi.years)
	return out
}

// Len returns the number of stored years.
func (yi *YearIndex[T]) Len() int {
	if yi == nil {
		return 0
	}
	return len(yi.years)
}

// Values returns the stored values in chronological order.
func (yi *YearIndex[T]) Values() []T {
	if yi == nil {
		return nil
	}
	out := make([]T, 0, len(yi.years))
	for _, y := range yi.years {
		out = append(out, yi.values[y])
	}
	return out
}

// First returns the earliest entry.
func (yi *YearIndex[T]) First() (int, T, bool) {
	if yi.Len() == 0 {
		var zero T
		return 0, zero, false
	}
	y := yi.years[0]
	return y, yi.values[y], true
}

// Last returns the latest entry.
func (yi *YearIndex[T]) Last() (int, T, bool) {
	if yi.Len() == 0 {
		var zero T
		return 0, zero, false
	}
	y := yi.years[len(yi.years)-1]
	return y, yi.values[y], true
}

// Each calls fn for every entry in chronological order.
func (yi *YearIndex[T]) Each(fn func(year int, v T)) {
	if yi == nil {
		return
	}
	for _, y := range yi.years {
		fn(y, yi.values[y])
	}
}

// MarshalJSON encodes the index as an object keyed by year, in year order.
func (yi *YearIndex[T]) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, y := range yi.Years() {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '"')
		buf = strconv.AppendInt(buf, int64(y), 10)
		buf = append(buf, '"', ':')
		data, err := json.Marshal(yi.values[y])
		if err != nil {
			return nil, err
		}
		buf = append(buf, data...)
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON decodes an object keyed by year.
func (yi *YearIndex[T]) UnmarshalJSON(data []byte) error {
	raw := map[string]T{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	yi.years = nil
	yi.values = make(map[int]T, len(raw))
	for k, v := range raw {
		y, err := strconv.Atoi(k)
		if err != nil {
			return err
		}
		yi.Set(y, v)
	}
	return nil
}
