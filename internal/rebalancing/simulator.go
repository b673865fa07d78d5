// Package rebalancing simulates a multi-asset portfolio under different
// rebalancing policies and compares them on identical return draws.
package rebalancing

import (
	"fmt"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/rgehrsitz/zinsplan/internal/returns"
	"github.com/rgehrsitz/zinsplan/internal/risk"
	"github.com/rgehrsitz/zinsplan/internal/tax"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// Simulator runs policies against one validated request. The return seed is
// fixed at construction, so every policy sees the same per-class returns. Run
// may be called concurrently.
type Simulator struct {
	req    domain.RebalancingRequest
	assets []domain.AssetClass
	cfg    domain.MultiAssetReturn
	model  *tax.Model
}

// NewSimulator validates the request and pins the return seed.
func NewSimulator(req domain.RebalancingRequest) (*Simulator, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	model, err := tax.NewModel(req.Tax)
	if err != nil {
		return nil, err
	}
	cfg := req.Returns
	if cfg.MultiAsset.Seed == nil {
		gen, err := returns.New(cfg, req.StartYear)
		if err != nil {
			return nil, err
		}
		cfg = returns.Reseed(cfg, *gen.Seed())
	}
	return &Simulator{
		req:    req,
		assets: cfg.MultiAsset.Assets,
		cfg:    *cfg.MultiAsset,
		model:  model,
	}, nil
}

// ValidateRequest checks a rebalancing request before any year is simulated.
func ValidateRequest(req domain.RebalancingRequest) error {
	if req.EndYear < req.StartYear {
		return domain.NewValidationError("end_year", "end year %d is before start year %d", req.EndYear, req.StartYear)
	}
	if req.Returns.Mode != domain.ReturnMultiAsset {
		return domain.NewConfigurationError("rebalancing", "rebalancing needs multiasset returns, got %q", req.Returns.Mode)
	}
	if err := req.Returns.Validate("returns"); err != nil {
		return err
	}
	switch {
	case req.InitialCapital.IsNegative():
		return domain.NewValidationError("initial_capital", "cannot be negative")
	case req.AnnualContribution.IsNegative():
		return domain.NewValidationError("annual_contribution", "cannot be negative")
	case req.AnnualWithdrawal.IsNegative():
		return domain.NewValidationError("annual_withdrawal", "cannot be negative")
	case !req.InitialCapital.IsPositive() && !req.AnnualContribution.IsPositive():
		return domain.NewValidationError("initial_capital", "either initial capital or a contribution is required")
	}
	classes := req.Returns.MultiAsset.TargetWeights()
	for name, t := range req.AssetTypes {
		if _, ok := classes[name]; !ok {
			return domain.NewValidationError("asset_types."+name, "unknown asset class")
		}
		if !t.Valid() {
			return domain.NewValidationError("asset_types."+name, "unknown asset type %q", t)
		}
	}
	if err := req.Costs.Validate("costs"); err != nil {
		return err
	}
	for i, p := range req.Policies {
		if err := p.Validate(fmt.Sprintf("policies[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

// Seed returns the seed of the per-class return draws.
func (s *Simulator) Seed() *int64 {
	if s.cfg.Seed == nil {
		return nil
	}
	seed := *s.cfg.Seed
	return &seed
}

// run carries the state of one policy run through the years.
type run struct {
	*Simulator
	policy    domain.RebalancingPolicy
	book      *book
	pot       domain.LossOffsetPot
	allowance decimal.Decimal
	out       *domain.RebalancingRun
}

// Run simulates the request under one policy. Each year contributions are
// invested and the withdrawal is sold at the start of the year, the classes
// grow by their drawn rates, and the policy decides on a rebalance at year
// end. Every sale is taxed through the tax model with one allowance per year
// and a loss pot carried across years.
func (s *Simulator) Run(policy domain.RebalancingPolicy) (*domain.RebalancingRun, error) {
	if err := policy.Validate("policy"); err != nil {
		return nil, err
	}
	gen, err := returns.NewMultiAsset(s.cfg, s.req.StartYear)
	if err != nil {
		return nil, err
	}

	r := &run{
		Simulator: s,
		policy:    policy,
		book:      newBook(s.assets, s.req.InitialCapital),
		out: &domain.RebalancingRun{
			Policy: policy,
			Years:  domain.NewYearIndex[domain.RebalancingYearState](),
		},
	}

	var rets, excess []float64
	for year := s.req.StartYear; year <= s.req.EndYear; year++ {
		rates, err := gen.AssetRates(year)
		if err != nil {
			return nil, err
		}
		state := r.step(year, year-s.req.StartYear, rates)
		if err := r.check(state); err != nil {
			return nil, err
		}
		r.out.Years.Set(year, state)

		base := state.StartValue.Add(state.Contribution).Sub(state.Withdrawal)
		if base.IsPositive() {
			ret := state.EndValue.Div(base).InexactFloat64() - 1
			rets = append(rets, ret)
			excess = append(excess, ret-state.BenchmarkReturn)
		}
	}

	out := r.out
	out.FinalValue = r.book.total()
	out.AnnualizedReturn = risk.AnnualizedReturn(rets)
	out.SharpeRatio = risk.Sharpe(rets, s.req.RiskFreeRate.InexactFloat64())
	if len(rets) > 1 {
		out.Volatility = stat.StdDev(rets, nil)
		out.TrackingError = stat.StdDev(excess, nil)
	}
	return out, nil
}

func (r *run) step(year, index int, rates map[string]decimal.Decimal) domain.RebalancingYearState {
	r.allowance = r.model.AnnualAllowance()
	state := domain.RebalancingYearState{
		Year:       year,
		StartValue: r.book.total(),
		AssetRates: rates,
	}

	if c := r.req.AnnualContribution; c.IsPositive() {
		split := r.book.byTarget(c)
		if r.policy.Kind == domain.PolicyTaxOptimized {
			split = r.book.towardTarget(c)
		}
		state.Costs = state.Costs.Add(r.buyAll(year, domain.TradeContribution, split))
		state.Contribution = c
	}

	if w := domain.MinDecimal(r.req.AnnualWithdrawal, r.book.total()); w.IsPositive() {
		split := r.book.byValue(w)
		if r.policy.Kind == domain.PolicyTaxOptimized {
			split = r.book.fromOverweight(w)
		}
		sold, taxPaid, cost := r.sellAll(year, domain.TradeWithdrawal, split)
		state.Withdrawal = sold
		state.TaxPaid = state.TaxPaid.Add(taxPaid)
		state.Costs = state.Costs.Add(cost)
	}

	r.book.grow(rates)
	for i, c := range r.book.classes {
		state.BenchmarkReturn += r.book.target[i].Mul(rates[c]).InexactFloat64()
	}

	state.MaxDrift = r.book.maxDrift()
	if r.triggered(index, state.MaxDrift) {
		if taxPaid, cost, done := r.rebalance(year, state.MaxDrift); done {
			state.Rebalanced = true
			state.TaxPaid = state.TaxPaid.Add(taxPaid)
			state.Costs = state.Costs.Add(cost)
			r.out.RebalanceCount++
		}
	}

	state.EndValue = r.book.total()
	state.Values = r.book.snapshot()
	state.Weights = r.book.weights()
	state.LossPot = r.pot
	r.out.TotalTax = r.out.TotalTax.Add(state.TaxPaid)
	r.out.TotalCost = r.out.TotalCost.Add(state.Costs)
	return state
}

// triggered reports whether the policy looks at rebalancing at the end of
// the index-th year.
func (r *run) triggered(index int, drift decimal.Decimal) bool {
	checkpoint := r.policy.IntervalYears > 0 && (index+1)%r.policy.IntervalYears == 0
	switch r.policy.Kind {
	case domain.PolicyCalendar:
		return checkpoint
	case domain.PolicyHybrid:
		return checkpoint && drift.GreaterThan(r.policy.Threshold)
	default:
		return drift.GreaterThan(r.policy.Threshold)
	}
}

// rebalance restores the target allocation. Sales are taxed and the net
// proceeds after tax and fees are spread over the underweight classes in
// proportion to their gaps. The opportunistic policy skips a rebalance that
// would cost tax unless the drift has reached twice its band.
func (r *run) rebalance(year int, drift decimal.Decimal) (taxPaid, cost decimal.Decimal, done bool) {
	gaps := r.book.rebalanceGaps(r.req.Costs.MinimumTrade)
	sells := make([]decimal.Decimal, len(gaps))
	buys := make([]decimal.Decimal, len(gaps))
	var anySell, anyBuy bool
	for i, g := range gaps {
		switch {
		case g.IsNegative():
			sells[i] = g.Neg()
			anySell = true
		case g.IsPositive():
			buys[i] = g
			anyBuy = true
		}
	}
	if !anySell || !anyBuy {
		return decimal.Zero, decimal.Zero, false
	}

	if r.policy.Kind == domain.PolicyOpportunistic && drift.LessThanOrEqual(r.policy.Threshold.Mul(decimal.NewFromInt(2))) {
		if r.estimateTax(sells).IsPositive() {
			return decimal.Zero, decimal.Zero, false
		}
	}

	proceeds, taxPaid, sellCost := r.sellAll(year, domain.TradeRebalance, sells)
	cash := domain.ClampZero(proceeds.Sub(taxPaid).Sub(sellCost))
	buyCost := r.buyAll(year, domain.TradeRebalance, tax.Apportion(cash, buys))
	return taxPaid, sellCost.Add(buyCost), true
}

// estimateTax settles the gains the sales would realize without touching the
// book, the allowance or the pot.
func (r *run) estimateTax(amounts []decimal.Decimal) decimal.Decimal {
	var items []tax.Income
	for i, c := range r.book.classes {
		if !amounts[i].IsPositive() {
			continue
		}
		gain, _ := r.book.gainOn(c, amounts[i])
		items = append(items, tax.Income{AssetType: r.req.AssetTypeOf(c), Kind: tax.IncomeRealized, Amount: gain})
	}
	return r.model.Settle(tax.SettlementInput{Items: items, AllowanceRemaining: r.allowance, Pot: r.pot}).Tax
}

// buyAll places one purchase per positive amount and returns the fees.
func (r *run) buyAll(year int, reason domain.TradeReason, amounts []decimal.Decimal) decimal.Decimal {
	fees := decimal.Zero
	for i, c := range r.book.classes {
		amount := amounts[i]
		if !amount.IsPositive() {
			continue
		}
		cost := costOf(r.req.Costs, amount)
		r.book.buy(c, amount, cost)
		fees = fees.Add(cost)
		r.out.Transactions = append(r.out.Transactions, domain.RebalancingTransaction{
			Year: year, Asset: c, Reason: reason, Amount: amount, Cost: cost,
		})
	}
	return fees
}

// sellAll places one sale per positive amount and settles the realized
// gains together. The tax is attributed to the sales by taxable gain.
func (r *run) sellAll(year int, reason domain.TradeReason, amounts []decimal.Decimal) (sold, taxPaid, fees decimal.Decimal) {
	var items []tax.Income
	var txs []domain.RebalancingTransaction
	var weights []decimal.Decimal
	for i, c := range r.book.classes {
		if !amounts[i].IsPositive() {
			continue
		}
		amount, gain := r.book.sell(c, amounts[i])
		if !amount.IsPositive() {
			continue
		}
		asset := r.req.AssetTypeOf(c)
		cost := costOf(r.req.Costs, amount)
		items = append(items, tax.Income{AssetType: asset, Kind: tax.IncomeRealized, Amount: gain})
		weights = append(weights, r.model.TaxableAmount(asset, gain))
		txs = append(txs, domain.RebalancingTransaction{
			Year: year, Asset: c, Reason: reason, Amount: amount.Neg(), RealizedGain: gain, Cost: cost,
		})
		sold = sold.Add(amount)
		fees = fees.Add(cost)
	}
	if len(items) == 0 {
		return decimal.Zero, decimal.Zero, decimal.Zero
	}

	settlement := r.model.Settle(tax.SettlementInput{Items: items, AllowanceRemaining: r.allowance, Pot: r.pot})
	r.allowance = settlement.AllowanceRemaining
	r.pot = settlement.Pot
	for i, share := range tax.Apportion(settlement.Tax, weights) {
		txs[i].Tax = share
	}
	r.out.Transactions = append(r.out.Transactions, txs...)
	return sold, settlement.Tax, fees
}

// check guards the book invariants after a year.
func (r *run) check(state domain.RebalancingYearState) error {
	for _, c := range r.book.classes {
		if r.book.value[c].IsNegative() {
			return domain.NewComputationError("rebalancing.step", "asset class value went negative", map[string]string{
				"policy": string(r.policy.Kind),
				"year":   fmt.Sprint(state.Year),
				"asset":  c,
				"value":  r.book.value[c].String(),
			})
		}
	}
	return nil
}
