package withdrawal

import (
	"github.com/rgehrsitz/zinsplan/internal/domain"
)

// BucketStrategy keeps CashYears of withdrawals in a cash bucket earning
// CashReturn and the rest in a growth bucket earning the portfolio return.
// Withdrawals come out of cash first. Cash is topped up from growth only
// after a year with a positive growth return, so losses are never locked in
// to refill the buffer.
type BucketStrategy struct {
	params domain.BucketParams
}

func NewBucketStrategy(params domain.BucketParams) *BucketStrategy {
	return &BucketStrategy{params: params}
}

func (s *BucketStrategy) Name() string { return "Bucket" }

func (s *BucketStrategy) Kind() domain.StrategyKind { return domain.StrategyBucket }

func (s *BucketStrategy) Plan(prior State, p Period) (Decision, error) {
	annual := prior.InitialCapital.Mul(s.params.InitialRate)
	if s.params.InflationAdjusted {
		annual = annual.Mul(p.InflationFactor)
	}
	target := annual.Mul(s.params.CashYears)

	cash := domain.MinDecimal(target, p.Capital)
	if prior.Cash != nil {
		cash = domain.MinDecimal(*prior.Cash, p.Capital)
	}
	growth := p.Capital.Sub(cash)

	d := p.withdraw(annual)
	fromCash := domain.MinDecimal(d.Amount, cash)
	cash = cash.Sub(fromCash)
	growth = growth.Sub(d.Amount.Sub(fromCash))

	invested := cash.Add(growth)
	cashGain := cash.Mul(s.params.CashReturn)
	growthGain := growth.Mul(p.Rate)
	cash = cash.Add(cashGain)
	growth = growth.Add(growthGain)

	if p.Rate.IsPositive() {
		need := domain.ClampZero(target.Sub(cash))
		move := domain.MinDecimal(need, domain.ClampZero(growth))
		cash = cash.Add(move)
	}

	if invested.IsPositive() {
		d.GrowthRate = cashGain.Add(growthGain).Div(invested)
	}
	cash = domain.RoundMoney(cash)
	d.Cash = &cash
	return d, nil
}
