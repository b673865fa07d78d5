package withdrawal

import (
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

// FixedPercentageStrategy withdraws a constant share of the capital the
// segment started with (the 4% / 3% rule), optionally inflation-adjusted.
type FixedPercentageStrategy struct {
	params domain.FixedPercentageParams
}

func NewFixedPercentageStrategy(params domain.FixedPercentageParams) *FixedPercentageStrategy {
	return &FixedPercentageStrategy{params: params}
}

func (s *FixedPercentageStrategy) Name() string { return "Fixed percentage" }

func (s *FixedPercentageStrategy) Kind() domain.StrategyKind { return domain.StrategyFixedPercentage }

func (s *FixedPercentageStrategy) Plan(prior State, p Period) (Decision, error) {
	amount := prior.InitialCapital.Mul(s.params.Rate)
	if s.params.InflationAdjusted {
		amount = amount.Mul(p.InflationFactor)
	}
	return p.withdraw(amount), nil
}

// VariablePercentageStrategy withdraws a share of the current capital, so
// the portfolio can never be fully depleted by the rule itself.
type VariablePercentageStrategy struct {
	params domain.VariablePercentageParams
}

func NewVariablePercentageStrategy(params domain.VariablePercentageParams) *VariablePercentageStrategy {
	return &VariablePercentageStrategy{params: params}
}

func (s *VariablePercentageStrategy) Name() string { return "Variable percentage" }

func (s *VariablePercentageStrategy) Kind() domain.StrategyKind {
	return domain.StrategyVariablePercentage
}

func (s *VariablePercentageStrategy) Plan(_ State, p Period) (Decision, error) {
	return p.withdraw(p.Capital.Mul(s.params.Rate)), nil
}

// FixedMonthlyStrategy withdraws a constant monthly amount, nominal or
// adjusted for inflation.
type FixedMonthlyStrategy struct {
	params domain.FixedMonthlyParams
}

func NewFixedMonthlyStrategy(params domain.FixedMonthlyParams) *FixedMonthlyStrategy {
	return &FixedMonthlyStrategy{params: params}
}

func (s *FixedMonthlyStrategy) Name() string { return "Fixed monthly amount" }

func (s *FixedMonthlyStrategy) Kind() domain.StrategyKind { return domain.StrategyFixedMonthly }

func (s *FixedMonthlyStrategy) Plan(_ State, p Period) (Decision, error) {
	amount := s.params.MonthlyAmount.Mul(domain.MonthsPerYear)
	if s.params.InflationAdjusted {
		amount = amount.Mul(p.InflationFactor)
	}
	return p.withdraw(amount), nil
}

// DynamicStrategy starts at BaseRate of the initial capital and then scales
// the previous withdrawal by (1 + adjustment) whenever the prior year's
// return crossed a threshold. Floor and Cap bound the annual amount.
type DynamicStrategy struct {
	params domain.DynamicParams
}

func NewDynamicStrategy(params domain.DynamicParams) *DynamicStrategy {
	return &DynamicStrategy{params: params}
}

func (s *DynamicStrategy) Name() string { return "Dynamic" }

func (s *DynamicStrategy) Kind() domain.StrategyKind { return domain.StrategyDynamic }

func (s *DynamicStrategy) Plan(prior State, p Period) (Decision, error) {
	amount := prior.InitialCapital.Mul(s.params.BaseRate)
	if p.Index > 0 {
		amount = prior.PriorWithdrawal
		if prior.PriorReturn != nil {
			switch r := *prior.PriorReturn; {
			case r.GreaterThan(s.params.UpperThreshold):
				amount = amount.Mul(decimal.NewFromInt(1).Add(s.params.UpperAdjustment))
			case r.LessThan(s.params.LowerThreshold):
				amount = amount.Mul(decimal.NewFromInt(1).Add(s.params.LowerAdjustment))
			}
		}
	}
	if s.params.Floor != nil {
		amount = domain.MaxDecimal(amount, *s.params.Floor)
	}
	if s.params.Cap != nil {
		amount = domain.MinDecimal(amount, *s.params.Cap)
	}
	return p.withdraw(amount), nil
}
