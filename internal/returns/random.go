package returns

import (
	"math/rand/v2"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat/distuv"
)

// Random draws normally distributed yearly rates.
//
// The PCG source is reseeded with (seed, year) before each draw, so the rate
// of a year depends only on the seed and the year, never on the order in
// which years are requested.
type Random struct {
	history
	seed int64
	src  *rand.PCG
	dist distuv.Normal
}

func newRandom(cfg domain.RandomReturn) *Random {
	seed := newSeed()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	src := rand.NewPCG(uint64(seed), 0)
	return &Random{
		history: newHistory(),
		seed:    seed,
		src:     src,
		dist: distuv.Normal{
			Mu:    cfg.Mean.InexactFloat64(),
			Sigma: cfg.StdDev.InexactFloat64(),
			Src:   src,
		},
	}
}

func (r *Random) Rate(year int) (decimal.Decimal, error) {
	if rate, ok := r.lookup(year); ok {
		return rate, nil
	}
	if r.dist.Sigma == 0 {
		return r.record(year, clampRate(decimal.NewFromFloat(r.dist.Mu))), nil
	}
	r.src.Seed(uint64(r.seed), uint64(year))
	return r.record(year, clampRate(decimal.NewFromFloat(r.dist.Rand()))), nil
}

func (r *Random) Seed() *int64 {
	s := r.seed
	return &s
}
