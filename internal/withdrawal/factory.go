package withdrawal

import (
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

// CreateStrategy builds the strategy selected by a segment. A missing
// parameter block or an unknown tag is a configuration error.
func CreateStrategy(seg domain.WithdrawalSegment, plan domain.WithdrawalPlan) (Strategy, error) {
	missing := func() error {
		return domain.NewConfigurationError("withdrawal", "segment %q uses %s but has no %s parameters", seg.ID, seg.Strategy, seg.Strategy)
	}

	switch seg.Strategy {
	case domain.StrategyFixedPercentage:
		if seg.FixedPercentage == nil {
			return nil, missing()
		}
		if err := nonNegative(seg, "fixed_percentage.rate", seg.FixedPercentage.Rate); err != nil {
			return nil, err
		}
		return NewFixedPercentageStrategy(*seg.FixedPercentage), nil
	case domain.StrategyVariablePercentage:
		if seg.VariablePercentage == nil {
			return nil, missing()
		}
		if err := nonNegative(seg, "variable_percentage.rate", seg.VariablePercentage.Rate); err != nil {
			return nil, err
		}
		return NewVariablePercentageStrategy(*seg.VariablePercentage), nil
	case domain.StrategyFixedMonthly:
		if seg.FixedMonthly == nil {
			return nil, missing()
		}
		if err := nonNegative(seg, "fixed_monthly.monthly_amount", seg.FixedMonthly.MonthlyAmount); err != nil {
			return nil, err
		}
		return NewFixedMonthlyStrategy(*seg.FixedMonthly), nil
	case domain.StrategyDynamic:
		if seg.Dynamic == nil {
			return nil, missing()
		}
		p := *seg.Dynamic
		if err := nonNegative(seg, "dynamic.base_rate", p.BaseRate); err != nil {
			return nil, err
		}
		if p.Floor != nil && p.Cap != nil && p.Floor.GreaterThan(*p.Cap) {
			return nil, domain.NewValidationError(segmentField(seg, "dynamic.floor"), "floor %s exceeds cap %s", p.Floor, p.Cap)
		}
		return NewDynamicStrategy(p), nil
	case domain.StrategyBucket:
		if seg.Bucket == nil {
			return nil, missing()
		}
		if err := nonNegative(seg, "bucket.cash_years", seg.Bucket.CashYears); err != nil {
			return nil, err
		}
		return NewBucketStrategy(*seg.Bucket), nil
	case domain.StrategyRMD:
		if plan.BirthYear == 0 {
			return nil, domain.NewConfigurationError("withdrawal", "segment %q uses rmd but the plan has no birth year", seg.ID)
		}
		gender := plan.Gender
		if seg.RMD != nil && seg.RMD.Gender != "" {
			gender = seg.RMD.Gender
		}
		return NewRMDStrategy(gender), nil
	case domain.StrategyTaxOptimized:
		if seg.TaxOptimized == nil {
			return nil, missing()
		}
		p := *seg.TaxOptimized
		if p.MinAmount.IsNegative() || p.MaxAmount.LessThan(p.MinAmount) {
			return nil, domain.NewValidationError(segmentField(seg, "tax_optimized"), "bounds must satisfy 0 <= min_amount <= max_amount")
		}
		switch p.Objective {
		case "", domain.ObjectiveMinimizeTaxes, domain.ObjectiveMaximizeAfterTax, domain.ObjectiveBalanced:
		default:
			return nil, domain.NewConfigurationError("withdrawal", "unknown tax objective %q", p.Objective)
		}
		return NewTaxOptimizedStrategy(p), nil
	default:
		return nil, domain.NewConfigurationError("withdrawal", "unknown strategy %q in segment %q", seg.Strategy, seg.ID)
	}
}

func nonNegative(seg domain.WithdrawalSegment, field string, v decimal.Decimal) error {
	if v.IsNegative() {
		return domain.NewValidationError(segmentField(seg, field), "cannot be negative (got %s)", v)
	}
	return nil
}

func segmentField(seg domain.WithdrawalSegment, field string) string {
	return "withdrawal.segments[" + seg.ID + "]." + field
}
