package rebalancing

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Recommendation weights of the policy comparison.
const (
	weightReturn   = 0.4
	weightCost     = 0.3
	weightSharpe   = 0.2
	weightTracking = 0.1
)

// Compare runs every policy of the request (all five kinds with default
// parameters when none are given) on the same return draws and ranks them.
// Policies run concurrently; results are ranked by score with ties kept in
// request order, so the outcome does not depend on scheduling.
func (s *Simulator) Compare(ctx context.Context) (*domain.RebalancingComparison, error) {
	policies := s.req.Policies
	if len(policies) == 0 {
		policies = domain.DefaultRebalancingPolicies()
	}
	for i, p := range policies {
		if err := p.Validate(fmt.Sprintf("policies[%d]", i)); err != nil {
			return nil, err
		}
	}

	runs := make([]domain.RebalancingRun, len(policies))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range policies {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := s.Run(p)
			if err != nil {
				return fmt.Errorf("policy %s: %w", p.Name(), err)
			}
			runs[i] = *r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	Score(runs)
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Score > runs[j].Score })
	for i := range runs {
		runs[i].Rank = i + 1
	}

	best := runs[0]
	return &domain.RebalancingComparison{
		Seed:        s.Seed(),
		Runs:        runs,
		Recommended: best.Policy.Kind,
		Rationale: fmt.Sprintf("%s scores %.2f: %.2f%% annualized return, %s in fees, Sharpe %.2f, tracking error %.2f%%",
			best.Policy.Name(), best.Score, best.AnnualizedReturn*100, domain.FormatEUR(best.TotalCost),
			best.SharpeRatio.Value, best.TrackingError*100),
	}, nil
}

// Score sets each run's score: annualized return 40%, total cost 30%, Sharpe
// ratio 20% and tracking error 10%, each min-max normalised across the runs
// so the best value scores 1 and the worst 0. A criterion on which all runs
// tie scores 1 for everyone.
func Score(runs []domain.RebalancingRun) {
	if len(runs) == 0 {
		return
	}
	ret := make([]float64, len(runs))
	cost := make([]float64, len(runs))
	sharpe := make([]float64, len(runs))
	te := make([]float64, len(runs))
	for i, r := range runs {
		ret[i] = r.AnnualizedReturn
		cost[i] = r.TotalCost.InexactFloat64()
		sharpe[i] = r.SharpeRatio.Value
		te[i] = r.TrackingError
	}
	nRet := normalise(ret, true)
	nCost := normalise(cost, false)
	nSharpe := normalise(sharpe, true)
	nTE := normalise(te, false)
	for i := range runs {
		score := weightReturn*nRet[i] + weightCost*nCost[i] + weightSharpe*nSharpe[i] + weightTracking*nTE[i]
		runs[i].Score = math.Round(score*10000) / 10000
	}
}

func normalise(xs []float64, higherIsBetter bool) []float64 {
	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	out := make([]float64, len(xs))
	for i, x := range xs {
		switch {
		case hi == lo:
			out[i] = 1
		case higherIsBetter:
			out[i] = (x - lo) / (hi - lo)
		default:
			out[i] = (hi - x) / (hi - lo)
		}
	}
	return out
}
