package calculation

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/rgehrsitz/zinsplan/internal/returns"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// MonteCarloConfig controls a batch of seeded trials.
type MonteCarloConfig struct {
	Trials int
	// Seed is the base seed; trial i runs with Seed+i. Nil draws one from NewSeed.
	Seed *int64
	// Workers bounds concurrent trials. Zero uses GOMAXPROCS.
	Workers int
	// Progress, if set, is called after each finished trial. Calls are
	// serialised but arrive in completion order.
	Progress func(done, total int)
}

// MonteCarloResult summarises the trials of one batch.
type MonteCarloResult struct {
	RunID          string                     `json:"runId"`
	GeneratedAt    time.Time                  `json:"generatedAt"`
	Trials         int                        `json:"trials"`
	BaseSeed       int64                      `json:"baseSeed"`
	SuccessRate    decimal.Decimal            `json:"successRate"`
	MedianFinal    decimal.Decimal            `json:"medianFinal"`
	Percentiles    map[string]decimal.Decimal `json:"percentiles"`
	DepletionYears map[string]int             `json:"depletionYears,omitempty"`
	Outcomes       []TrialOutcome             `json:"outcomes"`
}

// TrialOutcome is the result of one trial.
type TrialOutcome struct {
	Trial               int             `json:"trial"`
	Seed                int64           `json:"seed"`
	AccumulatedCapital  decimal.Decimal `json:"accumulatedCapital"`
	FinalCapital        decimal.Decimal `json:"finalCapital"`
	TotalContributions  decimal.Decimal `json:"totalContributions"`
	TotalWithdrawn      decimal.Decimal `json:"totalWithdrawn"`
	DepletionYear       *int            `json:"depletionYear,omitempty"`
	YearsUntilDepletion *int            `json:"yearsUntilDepletion,omitempty"`
	Success             bool            `json:"success"`
}

// percentileLevels are the reported percentiles of final capital.
var percentileLevels = []struct {
	key string
	p   float64
}{
	{"5th", 0.05}, {"10th", 0.10}, {"25th", 0.25}, {"50th", 0.50},
	{"75th", 0.75}, {"90th", 0.90}, {"95th", 0.95},
}

// RunMonteCarlo runs cfg.Trials projections of req, each with its own seed,
// across a bounded worker pool. Outcomes are stored by trial index, so the
// result does not depend on scheduling. Cancellation is checked between
// trials; a cancelled run returns the context error. A failing trial is
// logged with its request and returned with its index and seed.
//
// A trial succeeds when the withdrawal plan never depletes the portfolio or,
// without a withdrawal plan, when the accumulated capital is at least the sum
// of contributions.
func (e *Engine) RunMonteCarlo(ctx context.Context, req domain.SimulationRequest, cfg MonteCarloConfig) (*MonteCarloResult, error) {
	if cfg.Trials <= 0 {
		return nil, domain.NewValidationError("montecarlo.trials", "must be positive (got %d)", cfg.Trials)
	}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	resolved, conflict, err := req.ResolvedReturns()
	if err != nil {
		return nil, err
	}
	if conflict {
		e.Logger.Warnf("legacy rate %s ignored, the %s return configuration takes precedence", req.Rate, resolved.Mode)
	}
	base := NewSeed()
	if cfg.Seed != nil {
		base = *cfg.Seed
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	runID := uuid.NewString()
	e.Logger.Infof("monte carlo %s: %d trials, base seed %d, %d workers", runID, cfg.Trials, base, workers)

	outcomes := make([]TrialOutcome, cfg.Trials)
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < cfg.Trials; i++ {
		if gctx.Err() != nil {
			break
		}
		trial := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			seed := base + int64(trial)
			treq := trialRequest(req, resolved, seed)
			res, err := e.simulate(treq)
			if err != nil {
				e.Logger.Errorf("monte carlo trial %d (seed %d) failed: %v [request: %s]", trial, seed, err, describeRequest(treq))
				return fmt.Errorf("trial %d (seed %d): %w", trial, seed, err)
			}
			outcomes[trial] = outcomeOf(trial, seed, res)
			if cfg.Progress != nil {
				mu.Lock()
				done++
				cfg.Progress(done, cfg.Trials)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return summarise(runID, base, outcomes), nil
}

// trialRequest pins every random return configuration to seed. Rate is
// dropped because resolved already carries the precedence decision.
func trialRequest(req domain.SimulationRequest, resolved domain.ReturnConfiguration, seed int64) domain.SimulationRequest {
	r := returns.Reseed(resolved, seed)
	req.Returns = &r
	req.Rate = nil
	if req.Withdrawal != nil {
		plan := *req.Withdrawal
		plan.Segments = make([]domain.WithdrawalSegment, len(req.Withdrawal.Segments))
		for i, seg := range req.Withdrawal.Segments {
			seg.Returns = returns.Reseed(seg.Returns, seed)
			plan.Segments[i] = seg
		}
		req.Withdrawal = &plan
	}
	return req
}

func outcomeOf(trial int, seed int64, res *domain.SimulationResult) TrialOutcome {
	out := TrialOutcome{
		Trial:              trial,
		Seed:               seed,
		AccumulatedCapital: res.FinalCapital(),
		FinalCapital:       res.FinalCapital(),
	}
	res.Accumulation.Each(func(_ int, s domain.SimulationYearState) {
		out.TotalContributions = out.TotalContributions.Add(s.Contribution)
	})
	if w := res.Withdrawal; w != nil {
		out.FinalCapital = w.FinalCapital
		out.TotalWithdrawn = w.TotalWithdrawn
		out.DepletionYear = w.DepletionYear
		out.YearsUntilDepletion = w.YearsUntilDepletion()
		out.Success = w.DepletionYear == nil
		return out
	}
	out.Success = out.FinalCapital.GreaterThanOrEqual(out.TotalContributions)
	return out
}

func summarise(runID string, base int64, outcomes []TrialOutcome) *MonteCarloResult {
	finals := make([]decimal.Decimal, len(outcomes))
	var depletion []int
	successes := 0
	for i, o := range outcomes {
		finals[i] = o.FinalCapital
		if o.Success {
			successes++
		}
		if o.YearsUntilDepletion != nil {
			depletion = append(depletion, *o.YearsUntilDepletion)
		}
	}
	sort.Slice(finals, func(i, j int) bool { return finals[i].LessThan(finals[j]) })

	result := &MonteCarloResult{
		RunID:       runID,
		GeneratedAt: now(),
		Trials:      len(outcomes),
		BaseSeed:    base,
		SuccessRate: decimal.NewFromInt(int64(successes)).Div(decimal.NewFromInt(int64(len(outcomes)))),
		Percentiles: make(map[string]decimal.Decimal, len(percentileLevels)),
		Outcomes:    outcomes,
	}
	for _, lvl := range percentileLevels {
		result.Percentiles[lvl.key] = domain.RoundMoney(getPercentile(finals, lvl.p))
	}
	result.MedianFinal = result.Percentiles["50th"]
	if len(depletion) > 0 {
		sort.Ints(depletion)
		result.DepletionYears = map[string]int{
			"10th": getPercentileInt(depletion, 0.10),
			"50th": getPercentileInt(depletion, 0.50),
			"90th": getPercentileInt(depletion, 0.90),
		}
	}
	return result
}

// getPercentile interpolates linearly between the closest ranks of sorted values.
func getPercentile(values []decimal.Decimal, percentile float64) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	index := percentile * float64(len(values)-1)
	if index == float64(int(index)) {
		return values[int(index)]
	}

	lower := values[int(index)]
	upper := values[int(index)+1]
	fraction := decimal.NewFromFloat(index - float64(int(index)))

	return lower.Add(upper.Sub(lower).Mul(fraction))
}

func getPercentileInt(values []int, percentile float64) int {
	index := percentile * float64(len(values)-1)
	if index == float64(int(index)) {
		return values[int(index)]
	}

	lower := values[int(index)]
	upper := values[int(index)+1]
	fraction := index - float64(int(index))

	return lower + int(float64(upper-lower)*fraction)
}
