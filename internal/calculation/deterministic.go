package calculation

import (
	"sync"
	"time"
)

// Unseeded sweeps (Monte Carlo, sensitivity, strategy comparison) draw their
// base seed here, and Monte Carlo results are stamped from the same place, so
// tests can pin both.
var (
	providerMu sync.RWMutex
	nowFunc    = time.Now
	seedFunc   = func() int64 { return time.Now().UnixNano() }
)

// SetNowFunc replaces the clock and returns a function restoring the
// previous one.
func SetNowFunc(f func() time.Time) (restore func()) {
	providerMu.Lock()
	defer providerMu.Unlock()
	prev := nowFunc
	nowFunc = f
	return func() { SetNowFunc(prev) }
}

// SetSeedFunc replaces the base-seed source and returns a function restoring
// the previous one.
func SetSeedFunc(f func() int64) (restore func()) {
	providerMu.Lock()
	defer providerMu.Unlock()
	prev := seedFunc
	seedFunc = f
	return func() { SetSeedFunc(prev) }
}

// NewSeed draws a base seed for a sweep that was configured without one.
func NewSeed() int64 {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return seedFunc()
}

func now() time.Time {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return nowFunc()
}
