package compare

import (
	"context"
	"fmt"

	"github.com/rgehrsitz/zinsplan/internal/calculation"
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

// Alternative replaces the strategy of every withdrawal segment. Template
// carries the strategy tag and its parameter block; segment ids, years,
// frequency and returns are kept from the base plan.
type Alternative struct {
	Name        string                   `yaml:"name" json:"name"`
	Description string                   `yaml:"description" json:"description"`
	Template    domain.WithdrawalSegment `yaml:"template" json:"template"`
}

// ApplyAlternative returns a copy of plan with the alternative's strategy in
// every segment.
func ApplyAlternative(plan domain.WithdrawalPlan, alt Alternative) domain.WithdrawalPlan {
	out := plan
	out.Segments = make([]domain.WithdrawalSegment, len(plan.Segments))
	for i, seg := range plan.Segments {
		t := alt.Template
		seg.Strategy = t.Strategy
		seg.FixedPercentage = t.FixedPercentage
		seg.VariablePercentage = t.VariablePercentage
		seg.FixedMonthly = t.FixedMonthly
		seg.Dynamic = t.Dynamic
		seg.Bucket = t.Bucket
		seg.RMD = t.RMD
		seg.TaxOptimized = t.TaxOptimized
		out.Segments[i] = seg
	}
	return out
}

// DefaultAlternatives returns one alternative per strategy with common
// parameters. The life-expectancy strategy is included only when the plan
// has a birth year.
func DefaultAlternatives(plan domain.WithdrawalPlan) []Alternative {
	pct := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	alts := []Alternative{
		{
			Name:        "four_percent",
			Description: "4% of the starting capital, raised with inflation",
			Template: domain.WithdrawalSegment{
				Strategy:        domain.StrategyFixedPercentage,
				FixedPercentage: &domain.FixedPercentageParams{Rate: pct("0.04"), InflationAdjusted: true},
			},
		},
		{
			Name:        "variable_five",
			Description: "5% of the current capital every year",
			Template: domain.WithdrawalSegment{
				Strategy:           domain.StrategyVariablePercentage,
				VariablePercentage: &domain.VariablePercentageParams{Rate: pct("0.05")},
			},
		},
		{
			Name:        "dynamic",
			Description: "4% start, +5% after years above 10% return, -5% after losses",
			Template: domain.WithdrawalSegment{
				Strategy: domain.StrategyDynamic,
				Dynamic: &domain.DynamicParams{
					BaseRate:        pct("0.04"),
					UpperThreshold:  pct("0.10"),
					UpperAdjustment: pct("0.05"),
					LowerThreshold:  decimal.Zero,
					LowerAdjustment: pct("-0.05"),
				},
			},
		},
		{
			Name:        "bucket",
			Description: "4% withdrawals with two years held in cash at 1%",
			Template: domain.WithdrawalSegment{
				Strategy: domain.StrategyBucket,
				Bucket: &domain.BucketParams{
					InitialRate:       pct("0.04"),
					CashYears:         pct("2"),
					CashReturn:        pct("0.01"),
					InflationAdjusted: true,
				},
			},
		},
	}
	if plan.BirthYear != 0 {
		alts = append(alts, Alternative{
			Name:        "life_expectancy",
			Description: "capital divided by the remaining life expectancy",
			Template:    domain.WithdrawalSegment{Strategy: domain.StrategyRMD},
		})
	}
	return alts
}

// CompareEngine runs a base withdrawal plan and its alternatives
type CompareEngine struct {
	CalcEngine        *calculation.Engine
	MetricsCalculator *MetricsCalculator
}

// NewCompareEngine creates a new comparison engine. A nil engine gets a
// default one.
func NewCompareEngine(calcEngine *calculation.Engine) *CompareEngine {
	if calcEngine == nil {
		calcEngine = calculation.NewEngine()
	}
	return &CompareEngine{
		CalcEngine:        calcEngine,
		MetricsCalculator: NewMetricsCalculator(),
	}
}

// CompareOptions configures comparison behavior
type CompareOptions struct {
	BaseName     string        // label of the configured plan, "base" if empty
	Alternatives []Alternative // DefaultAlternatives if empty
	Seed         *int64        // seed for unseeded random returns; drawn if nil
}

// Compare runs the request's withdrawal plan and every alternative on the
// same accumulation and the same return draws.
func (ce *CompareEngine) Compare(ctx context.Context, req domain.SimulationRequest, options CompareOptions) (*StrategyComparisonResult, error) {
	if req.Withdrawal == nil {
		return nil, domain.NewConfigurationError("compare", "strategy comparison needs a withdrawal plan")
	}
	if options.BaseName == "" {
		options.BaseName = "base"
	}
	if len(options.Alternatives) == 0 {
		options.Alternatives = DefaultAlternatives(*req.Withdrawal)
	}
	seed := calculation.NewSeed()
	if options.Seed != nil {
		seed = *options.Seed
	}
	req, err := calculation.PinSeeds(req, seed)
	if err != nil {
		return nil, err
	}

	base, err := ce.CalcEngine.Simulate(req)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate base plan: %w", err)
	}
	baseResult := ce.MetricsCalculator.CalculateMetrics(options.BaseName, *req.Withdrawal, base.Withdrawal)
	baseResult.Description = "configured withdrawal plan"

	alternatives := make([]StrategyResult, 0, len(options.Alternatives))
	for _, alt := range options.Alternatives {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		plan := ApplyAlternative(*req.Withdrawal, alt)
		altReq := req
		altReq.Withdrawal = &plan

		res, err := ce.CalcEngine.Simulate(altReq)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate alternative %s: %w", alt.Name, err)
		}
		altResult := ce.MetricsCalculator.CalculateMetrics(alt.Name, plan, res.Withdrawal)
		altResult.Description = alt.Description
		alternatives = append(alternatives, ce.MetricsCalculator.CalculateComparison(altResult, baseResult))
	}

	compSet := &StrategyComparisonResult{
		BaseName:           options.BaseName,
		Seed:               &seed,
		AccumulatedCapital: base.FinalCapital(),
		BaseResult:         &baseResult,
		AlternativeResults: alternatives,
	}
	compSet.Recommendations = GenerateRecommendations(compSet)
	return compSet, nil
}
