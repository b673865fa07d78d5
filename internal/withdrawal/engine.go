package withdrawal

import (
	"fmt"
	"strconv"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/rgehrsitz/zinsplan/internal/returns"
	"github.com/rgehrsitz/zinsplan/internal/tax"
	"github.com/shopspring/decimal"
)

// Input is everything one decumulation run needs.
type Input struct {
	Plan      domain.WithdrawalPlan
	Portfolio Portfolio
	Pot       domain.LossOffsetPot
	// PriorReturn is the last accumulation-phase return, seen by the first
	// segment as the previous period's return.
	PriorReturn *decimal.Decimal
}

// Output is the result of a run together with the loss pot it leaves behind.
type Output struct {
	Result    *domain.WithdrawalResult
	Pot       domain.LossOffsetPot
	Portfolio Portfolio
	Seeds     map[string]int64
}

// Engine runs segmented withdrawal plans against one tax model.
type Engine struct {
	tax *tax.Model
}

// NewEngine creates a withdrawal engine.
func NewEngine(taxModel *tax.Model) *Engine {
	return &Engine{tax: taxModel}
}

// ValidateSegments checks that segments are non-empty, well-formed and
// contiguous: each segment starts the year after its predecessor ends.
func ValidateSegments(segments []domain.WithdrawalSegment) error {
	if len(segments) == 0 {
		return domain.NewConfigurationError("withdrawal", "plan has no segments")
	}
	for i, seg := range segments {
		if seg.StartYear > seg.EndYear {
			return domain.NewConfigurationError("withdrawal", "segment %q ends (%d) before it starts (%d)", seg.ID, seg.EndYear, seg.StartYear)
		}
		if !seg.Frequency.Valid() {
			return domain.NewConfigurationError("withdrawal", "segment %q has unknown frequency %q", seg.ID, seg.Frequency)
		}
		if i > 0 && segments[i-1].EndYear+1 != seg.StartYear {
			return domain.NewConfigurationError("withdrawal",
				"segments %q and %q are not contiguous: %d is followed by %d",
				segments[i-1].ID, seg.ID, segments[i-1].EndYear, seg.StartYear)
		}
	}
	return nil
}

type segmentRun struct {
	seg      domain.WithdrawalSegment
	strategy Strategy
	gen      returns.Generator
}

// ValidatePlan runs every check Run performs before the first year is
// computed: segment contiguity, strategy parameters and return coverage.
func ValidatePlan(plan domain.WithdrawalPlan) error {
	_, err := prepare(plan)
	return err
}

func prepare(plan domain.WithdrawalPlan) ([]segmentRun, error) {
	if err := ValidateSegments(plan.Segments); err != nil {
		return nil, err
	}
	runs := make([]segmentRun, 0, len(plan.Segments))
	for _, seg := range plan.Segments {
		strategy, err := CreateStrategy(seg, plan)
		if err != nil {
			return nil, err
		}
		gen, err := returns.New(seg.Returns, seg.StartYear)
		if err != nil {
			return nil, fmt.Errorf("segment %q returns: %w", seg.ID, err)
		}
		if v, ok := gen.(*returns.Variable); ok {
			if y, covered := v.Covers(seg.StartYear, seg.EndYear); !covered {
				return nil, domain.NewConfigurationError("returns", "segment %q has no variable return for year %d", seg.ID, y)
			}
		}
		runs = append(runs, segmentRun{seg: seg, strategy: strategy, gen: gen})
	}
	return runs, nil
}

// Run executes every segment in order. All segments are validated and all
// strategies and generators are built before the first year is computed.
func (e *Engine) Run(in Input) (*Output, error) {
	plan := in.Plan
	runs, err := prepare(plan)
	if err != nil {
		return nil, err
	}

	holdings := in.Portfolio.Clone()
	pot := in.Pot
	priorReturn := in.PriorReturn
	result := &domain.WithdrawalResult{
		Years:         domain.NewYearIndex[domain.WithdrawalYearState](),
		ReturnHistory: domain.NewYearIndex[decimal.Decimal](),
	}
	seeds := map[string]int64{}

	for _, run := range runs {
		state := State{InitialCapital: holdings.Total(), PriorReturn: priorReturn}
		for year := run.seg.StartYear; year <= run.seg.EndYear; year++ {
			rate, err := run.gen.Rate(year)
			if err != nil {
				return nil, err
			}
			result.ReturnHistory.Set(year, rate)

			ys, next, err := e.step(run, state, year, rate, plan, holdings, pot)
			if err != nil {
				return nil, err
			}
			pot = ys.LossPot
			state = next
			result.Years.Set(year, ys)
			result.TotalWithdrawn = result.TotalWithdrawn.Add(ys.Withdrawal)
			result.TotalNet = result.TotalNet.Add(ys.NetWithdrawal)
			result.TotalTax = result.TotalTax.Add(ys.TaxPaid)
			if ys.Depleted && result.DepletionYear == nil {
				y := year
				result.DepletionYear = &y
			}
		}
		if s := run.gen.Seed(); s != nil {
			seeds[run.seg.ID] = *s
		}
		priorReturn = state.PriorReturn
	}
	result.FinalCapital = holdings.Total()
	return &Output{Result: result, Pot: pot, Portfolio: holdings, Seeds: seeds}, nil
}

// step computes one year. holdings are updated in place.
func (e *Engine) step(run segmentRun, prior State, year int, rate decimal.Decimal, plan domain.WithdrawalPlan, holdings Portfolio, pot domain.LossOffsetPot) (domain.WithdrawalYearState, State, error) {
	start := holdings.Total()
	index := year - run.seg.StartYear
	ys := domain.WithdrawalYearState{
		Year:         year,
		SegmentID:    run.seg.ID,
		Strategy:     run.seg.Strategy,
		StartCapital: start,
		Rate:         rate,
		LossPot:      pot,
	}
	if plan.BirthYear > 0 {
		ys.Age = year - plan.BirthYear
	}
	next := prior
	next.PriorReturn = domain.DecimalPtr(rate)

	if !start.IsPositive() {
		ys.Depleted = true
		next.PriorWithdrawal = decimal.Zero
		return ys, next, nil
	}

	period := Period{
		Year:            year,
		Index:           index,
		Capital:         start,
		Rate:            rate,
		InflationFactor: domain.GrowthFactor(plan.InflationRate, index),
		Age:             ys.Age,
		Oracle: func(amount decimal.Decimal) tax.Settlement {
			after := holdings.Clone()
			items := saleIncome(after, amount)
			items = append(items, e.expectedVorabpauschale(after, rate, year)...)
			return e.tax.Settle(tax.SettlementInput{
				Items:              items,
				AllowanceRemaining: e.tax.AnnualAllowance(),
				Pot:                pot,
			})
		},
	}
	decision, err := run.strategy.Plan(prior, period)
	if err != nil {
		return ys, next, err
	}
	amount := domain.MinDecimal(domain.RoundMoney(domain.ClampZero(decision.Amount)), start)

	realized := make([]decimal.Decimal, len(holdings))
	gains := make([]decimal.Decimal, len(holdings))

	installments, periodRate := 1, decision.GrowthRate
	if run.seg.Frequency == domain.FrequencyMonthly {
		installments = 12
		periodRate = domain.MonthlyRate(decision.GrowthRate)
	}
	per := amount.Div(decimal.NewFromInt(int64(installments))).RoundFloor(2)
	for k := 0; k < installments; k++ {
		part := per
		if k == installments-1 {
			part = amount.Sub(per.Mul(decimal.NewFromInt(int64(installments - 1))))
		}
		for i, r := range sell(holdings, part) {
			realized[i] = realized[i].Add(r)
		}
		for i := range holdings {
			g := holdings[i].Capital.Mul(periodRate)
			holdings[i].Capital = holdings[i].Capital.Add(g)
			gains[i] = gains[i].Add(g)
		}
	}

	var items []tax.Income
	for i := range holdings {
		holdings[i].Capital = domain.RoundMoney(holdings[i].Capital)
		gains[i] = domain.RoundMoney(gains[i])
		if !realized[i].IsZero() {
			items = append(items, tax.Income{AssetType: holdings[i].AssetType, Kind: tax.IncomeRealized, Amount: realized[i]})
		}
		vp, err := e.tax.Vorabpauschale(tax.VorabpauschaleInput{
			Year:       year,
			StartValue: holdings[i].Capital.Sub(gains[i]),
			Gain:       gains[i],
			MonthsHeld: 12,
			AssetType:  holdings[i].AssetType,
		})
		if err != nil {
			return ys, next, err
		}
		if vp.Vorabpauschale.IsPositive() {
			holdings[i].AccumulatedVorabpauschale = holdings[i].AccumulatedVorabpauschale.Add(vp.Vorabpauschale)
			ys.Vorabpauschale = ys.Vorabpauschale.Add(vp.Vorabpauschale)
			items = append(items, tax.Income{AssetType: holdings[i].AssetType, Kind: tax.IncomeVorabpauschale, Amount: vp.Vorabpauschale})
		}
		ys.Gain = ys.Gain.Add(gains[i])
	}

	settlement := e.tax.Settle(tax.SettlementInput{
		Items:              items,
		AllowanceRemaining: e.tax.AnnualAllowance(),
		Pot:                pot,
	})

	net := amount.Sub(settlement.Tax)
	if net.IsNegative() {
		deductPro(holdings, net.Neg())
		net = decimal.Zero
	}

	for _, r := range realized {
		ys.RealizedGain = ys.RealizedGain.Add(r)
	}
	ys.Withdrawal = amount
	ys.MonthlyWithdrawal = domain.RoundMoney(amount.Div(domain.MonthsPerYear))
	ys.TaxPaid = settlement.Tax
	ys.AllowanceUsed = settlement.AllowanceUsed
	ys.NetWithdrawal = net
	ys.EndCapital = holdings.Total()
	ys.LossPot = settlement.Pot
	ys.Breakdown = settlement.Breakdown

	if ys.EndCapital.IsNegative() {
		return ys, next, domain.NewComputationError("withdrawal.step", "negative capital after withdrawal", map[string]string{
			"year":       strconv.Itoa(year),
			"segment":    run.seg.ID,
			"start":      start.String(),
			"withdrawal": amount.String(),
			"rate":       rate.String(),
			"endCapital": ys.EndCapital.String(),
		})
	}
	if decision.Cash != nil {
		cash := domain.MinDecimal(*decision.Cash, ys.EndCapital)
		growth := ys.EndCapital.Sub(cash)
		ys.CashBucket, ys.GrowthBucket = &cash, &growth
		next.Cash = &cash
	}
	ys.Depleted = !ys.EndCapital.IsPositive()
	next.PriorWithdrawal = amount
	return ys, next, nil
}

// sell removes amount pro rata from the holdings and returns the realized
// gain per holding. The last holding with capital absorbs rounding.
func sell(holdings Portfolio, amount decimal.Decimal) []decimal.Decimal {
	realized := make([]decimal.Decimal, len(holdings))
	total := holdings.Total()
	if !amount.IsPositive() || !total.IsPositive() {
		return realized
	}
	parts := tax.Apportion(amount, capitals(holdings))
	for i, part := range parts {
		if !part.IsPositive() {
			continue
		}
		h := &holdings[i]
		res := tax.RealizedGain(tax.Sale{
			Capital:                   h.Capital,
			CostBasis:                 h.CostBasis,
			AccumulatedVorabpauschale: h.AccumulatedVorabpauschale,
			Amount:                    part,
		})
		h.Capital = domain.ClampZero(h.Capital.Sub(part))
		h.CostBasis = domain.ClampZero(h.CostBasis.Sub(res.BasisSold))
		h.AccumulatedVorabpauschale = domain.ClampZero(h.AccumulatedVorabpauschale.Sub(res.VorabpauschaleSold))
		realized[i] = res.RealizedGain
	}
	return realized
}

// saleIncome returns the realized income items selling amount would create.
func saleIncome(holdings Portfolio, amount decimal.Decimal) []tax.Income {
	var items []tax.Income
	for i, r := range sell(holdings, amount) {
		if !r.IsZero() {
			items = append(items, tax.Income{AssetType: holdings[i].AssetType, Kind: tax.IncomeRealized, Amount: r})
		}
	}
	return items
}

// expectedVorabpauschale returns the Vorabpauschale items the holdings left
// after a sale would owe if they earn rate for the whole year. Errors are
// dropped here; the settled year reports them.
func (e *Engine) expectedVorabpauschale(holdings Portfolio, rate decimal.Decimal, year int) []tax.Income {
	var items []tax.Income
	for _, h := range holdings {
		vp, err := e.tax.Vorabpauschale(tax.VorabpauschaleInput{
			Year:       year,
			StartValue: h.Capital,
			Gain:       domain.RoundMoney(h.Capital.Mul(rate)),
			MonthsHeld: 12,
			AssetType:  h.AssetType,
		})
		if err != nil {
			return nil
		}
		if vp.Vorabpauschale.IsPositive() {
			items = append(items, tax.Income{AssetType: h.AssetType, Kind: tax.IncomeVorabpauschale, Amount: vp.Vorabpauschale})
		}
	}
	return items
}

// deductPro takes amount out of the holdings pro rata to their capital.
func deductPro(holdings Portfolio, amount decimal.Decimal) {
	for i, part := range tax.Apportion(domain.MinDecimal(amount, holdings.Total()), capitals(holdings)) {
		holdings[i].Capital = domain.ClampZero(holdings[i].Capital.Sub(part))
	}
}

func capitals(holdings Portfolio) []decimal.Decimal {
	out := make([]decimal.Decimal, len(holdings))
	for i, h := range holdings {
		out[i] = h.Capital
	}
	return out
}
