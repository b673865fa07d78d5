package returns

import (
	"math/rand/v2"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// MultiAsset draws correlated per-class rates and combines them by the
// current, drifting portfolio weights.
type MultiAsset struct {
	history
	cfg    domain.MultiAssetReturn
	start  int
	next   int
	seed   int64
	src    *rand.PCG
	normal *distmv.Normal
	// stochastic holds the indexes of classes with positive volatility, in
	// the order they appear in the draw vector.
	stochastic []int
	draw       []float64

	weights    map[string]decimal.Decimal
	assetRates *domain.YearIndex[map[string]decimal.Decimal]
	weightLog  *domain.YearIndex[map[string]decimal.Decimal]
}

// NewMultiAsset builds a multi-asset generator whose weight path starts at
// the target allocation in startYear.
func NewMultiAsset(cfg domain.MultiAssetReturn, startYear int) (*MultiAsset, error) {
	seed := newSeed()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	g := &MultiAsset{
		history:    newHistory(),
		cfg:        cfg,
		start:      startYear,
		next:       startYear,
		seed:       seed,
		src:        rand.NewPCG(uint64(seed), 0),
		weights:    cfg.TargetWeights(),
		assetRates: domain.NewYearIndex[map[string]decimal.Decimal](),
		weightLog:  domain.NewYearIndex[map[string]decimal.Decimal](),
	}

	var mu, vols []float64
	for i, a := range cfg.Assets {
		if a.Volatility.IsPositive() {
			g.stochastic = append(g.stochastic, i)
			mu = append(mu, a.ExpectedReturn.InexactFloat64())
			vols = append(vols, a.Volatility.InexactFloat64())
		}
	}
	if n := len(g.stochastic); n > 0 {
		cov := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				rho := cfg.Correlation(cfg.Assets[g.stochastic[i]].Name, cfg.Assets[g.stochastic[j]].Name)
				cov.SetSym(i, j, vols[i]*vols[j]*rho)
			}
		}
		normal, ok := distmv.NewNormal(mu, cov, g.src)
		if !ok {
			return nil, domain.NewConfigurationError("returns", "correlation matrix is not positive definite")
		}
		g.normal = normal
		g.draw = make([]float64, n)
	}
	return g, nil
}

func (g *MultiAsset) Rate(year int) (decimal.Decimal, error) {
	if err := g.advance(year); err != nil {
		return decimal.Zero, err
	}
	r, _ := g.lookup(year)
	return r, nil
}

// AssetRates returns the per-class rates drawn for year.
func (g *MultiAsset) AssetRates(year int) (map[string]decimal.Decimal, error) {
	if err := g.advance(year); err != nil {
		return nil, err
	}
	rates, _ := g.assetRates.Get(year)
	return copyWeights(rates), nil
}

// Weights returns the allocation in effect at the start of year.
func (g *MultiAsset) Weights(year int) (map[string]decimal.Decimal, error) {
	if err := g.advance(year); err != nil {
		return nil, err
	}
	w, _ := g.weightLog.Get(year)
	return copyWeights(w), nil
}

// Assets returns the configured classes in declaration order.
func (g *MultiAsset) Assets() []domain.AssetClass {
	out := make([]domain.AssetClass, len(g.cfg.Assets))
	copy(out, g.cfg.Assets)
	return out
}

func (g *MultiAsset) Seed() *int64 {
	s := g.seed
	return &s
}

// advance computes every year from the last computed one through year, in
// order, because each year's weights depend on all earlier rates.
func (g *MultiAsset) advance(year int) error {
	if year < g.start {
		return domain.NewConfigurationError("returns", "year %d precedes multi-asset start year %d", year, g.start)
	}
	for ; g.next <= year; g.next++ {
		g.step(g.next)
	}
	return nil
}

func (g *MultiAsset) step(year int) {
	rates := make(map[string]decimal.Decimal, len(g.cfg.Assets))
	for _, a := range g.cfg.Assets {
		rates[a.Name] = clampRate(a.ExpectedReturn)
	}
	if g.normal != nil {
		g.src.Seed(uint64(g.seed), uint64(year))
		g.normal.Rand(g.draw)
		for k, idx := range g.stochastic {
			rates[g.cfg.Assets[idx].Name] = clampRate(decimal.NewFromFloat(g.draw[k]))
		}
	}

	portfolio := decimal.Zero
	for _, a := range g.cfg.Assets {
		portfolio = portfolio.Add(g.weights[a.Name].Mul(rates[a.Name]))
	}
	portfolio = clampRate(portfolio)

	g.weightLog.Set(year, copyWeights(g.weights))
	g.assetRates.Set(year, rates)
	g.record(year, portfolio)

	growth := decimal.NewFromInt(1).Add(portfolio)
	for _, a := range g.cfg.Assets {
		g.weights[a.Name] = g.weights[a.Name].Mul(decimal.NewFromInt(1).Add(rates[a.Name])).Div(growth)
	}
	if n := g.cfg.RebalanceEveryYears; n > 0 && (year+1-g.start)%n == 0 {
		g.weights = g.cfg.TargetWeights()
	}
}

func copyWeights(in map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
