package calculation

import (
	"strconv"
	"time"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/rgehrsitz/zinsplan/internal/returns"
	"github.com/rgehrsitz/zinsplan/internal/tax"
	"github.com/rgehrsitz/zinsplan/internal/withdrawal"
	"github.com/shopspring/decimal"
)

// GrowthInput is one accumulation run over [StartYear, EndYear].
type GrowthInput struct {
	Elements          []domain.ContributionElement
	StartYear         int
	EndYear           int
	Frequency         domain.Frequency
	Returns           returns.Generator
	TaxOutsideCapital bool
	Pot               domain.LossOffsetPot
}

// GrowthOutput holds the accumulation series and the state handed on to the
// withdrawal phase.
type GrowthOutput struct {
	Accumulation *domain.YearIndex[domain.SimulationYearState]
	Elements     []domain.ElementProjection
	// Holdings groups the final element states by asset type, in order of
	// first appearance.
	Holdings withdrawal.Portfolio
	Pot      domain.LossOffsetPot
	LastRate *decimal.Decimal
}

// GrowthSimulator advances contribution elements year by year, taxing the
// Vorabpauschale of all elements in one settlement per year.
type GrowthSimulator struct {
	tax *tax.Model
}

// NewGrowthSimulator creates a simulator using the given tax model.
func NewGrowthSimulator(taxModel *tax.Model) *GrowthSimulator {
	return &GrowthSimulator{tax: taxModel}
}

type elementState struct {
	el      domain.ContributionElement
	capital decimal.Decimal
	basis   decimal.Decimal
	vp      decimal.Decimal
	years   *domain.YearIndex[domain.SimulationYearState]
}

func (s *elementState) deposit(amount decimal.Decimal) {
	s.capital = s.capital.Add(amount)
	if s.el.Kind == domain.KindOneTime {
		s.basis = s.basis.Add(s.el.CostBasis())
		return
	}
	s.basis = s.basis.Add(amount)
}

// yearlyContribution is paid in at the start of the year.
func (s *elementState) yearlyContribution(year int) decimal.Decimal {
	if s.el.Kind == domain.KindOneTime {
		if year == s.el.Start.Year() {
			return s.el.Amount
		}
		return decimal.Zero
	}
	months := 0
	for m := 1; m <= 12; m++ {
		if s.el.ActiveInMonth(year, time.Month(m)) {
			months++
		}
	}
	return domain.RoundMoney(s.el.Amount.Mul(decimal.NewFromInt(int64(months))).Div(domain.MonthsPerYear))
}

func (s *elementState) monthlyContribution(year, month int) decimal.Decimal {
	if s.el.Kind == domain.KindOneTime {
		if year == s.el.Start.Year() && month == int(s.el.Start.Month()) {
			return s.el.Amount
		}
		return decimal.Zero
	}
	if !s.el.ActiveInMonth(year, time.Month(month)) {
		return decimal.Zero
	}
	return domain.RoundMoney(s.el.Amount.Div(domain.MonthsPerYear))
}

// grow applies the year's contributions and growth and returns the amount
// contributed.
func (s *elementState) grow(year int, rate decimal.Decimal, monthly bool) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if !monthly {
		c := s.yearlyContribution(year)
		if c.IsPositive() {
			s.deposit(c)
		}
		s.capital = domain.RoundMoney(s.capital.Mul(one.Add(rate)))
		return c
	}
	factor := one.Add(domain.MonthlyRate(rate))
	total := decimal.Zero
	for m := 1; m <= 12; m++ {
		if c := s.monthlyContribution(year, m); c.IsPositive() {
			s.deposit(c)
			total = total.Add(c)
		}
		s.capital = s.capital.Mul(factor)
	}
	s.capital = domain.RoundMoney(s.capital)
	return total
}

// Run simulates the accumulation phase.
func (g *GrowthSimulator) Run(in GrowthInput) (*GrowthOutput, error) {
	if err := ValidateElements(in.Elements, in.StartYear); err != nil {
		return nil, err
	}
	states := make([]*elementState, len(in.Elements))
	for i, el := range in.Elements {
		states[i] = &elementState{el: el, years: domain.NewYearIndex[domain.SimulationYearState]()}
	}

	out := &GrowthOutput{Accumulation: domain.NewYearIndex[domain.SimulationYearState]()}
	pot := in.Pot
	monthly := in.Frequency == domain.FrequencyMonthly
	for year := in.StartYear; year <= in.EndYear; year++ {
		rate, err := in.Returns.Rate(year)
		if err != nil {
			return nil, err
		}
		agg, next, err := g.step(states, year, rate, monthly, in.TaxOutsideCapital, pot)
		if err != nil {
			return nil, err
		}
		pot = next
		out.Accumulation.Set(year, agg)
		out.LastRate = domain.DecimalPtr(rate)
	}

	for _, s := range states {
		out.Elements = append(out.Elements, domain.ElementProjection{ElementID: s.el.ID, AssetType: s.el.AssetType, Years: s.years})
	}
	out.Holdings = holdingsByAsset(states)
	out.Pot = pot
	return out, nil
}

func (g *GrowthSimulator) step(states []*elementState, year int, rate decimal.Decimal, monthly, outside bool, pot domain.LossOffsetPot) (domain.SimulationYearState, domain.LossOffsetPot, error) {
	rows := make([]domain.SimulationYearState, len(states))
	vps := make([]decimal.Decimal, len(states))
	weights := make([]decimal.Decimal, len(states))
	var items []tax.Income

	for i, s := range states {
		phase := s.el.PhaseInYear(year)
		rows[i] = domain.SimulationYearState{Year: year, Phase: phase, StartCapital: s.capital, Rate: rate}
		if phase == domain.PhaseIdle {
			continue
		}
		start := s.capital
		contribution := s.grow(year, rate, monthly)
		gain := s.capital.Sub(start).Sub(contribution)
		rows[i].Contribution = contribution
		rows[i].Gain = gain

		startValue := start
		if year == s.el.Start.Year() {
			startValue = startValue.Add(contribution)
		}
		vp, err := g.tax.Vorabpauschale(tax.VorabpauschaleInput{
			Year:       year,
			StartValue: startValue,
			Gain:       gain,
			MonthsHeld: s.el.MonthsHeldInYear(year),
			AssetType:  s.el.AssetType,
		})
		if err != nil {
			return domain.SimulationYearState{}, pot, err
		}
		if vp.Vorabpauschale.IsPositive() {
			vps[i] = vp.Vorabpauschale
			weights[i] = vp.Taxable
			items = append(items, tax.Income{AssetType: s.el.AssetType, Kind: tax.IncomeVorabpauschale, Amount: vp.Vorabpauschale})
		}
	}

	settlement := g.tax.Settle(tax.SettlementInput{
		Items:              items,
		AllowanceRemaining: g.tax.AnnualAllowance(),
		Pot:                pot,
	})
	taxes := tax.Apportion(settlement.Tax, weights)
	allowances := tax.Apportion(settlement.AllowanceUsed, weights)

	agg := domain.SimulationYearState{Year: year, Rate: rate}
	for i, s := range states {
		row := rows[i]
		if row.Phase == domain.PhaseIdle {
			continue
		}
		s.vp = s.vp.Add(vps[i])
		if !outside {
			s.capital = s.capital.Sub(taxes[i])
		}
		if s.capital.IsNegative() {
			return domain.SimulationYearState{}, pot, domain.NewComputationError("growth.step", "negative capital after tax", map[string]string{
				"year":       strconv.Itoa(year),
				"element":    s.el.ID,
				"start":      row.StartCapital.String(),
				"rate":       rate.String(),
				"tax":        taxes[i].String(),
				"endCapital": s.capital.String(),
			})
		}
		row.TaxPaid = taxes[i]
		row.AllowanceUsed = allowances[i]
		row.Vorabpauschale = vps[i]
		row.AccumulatedVorabpauschale = s.vp
		row.EndCapital = s.capital
		row.CostBasis = s.basis
		s.years.Set(year, row)

		agg.StartCapital = agg.StartCapital.Add(row.StartCapital)
		agg.Contribution = agg.Contribution.Add(row.Contribution)
		agg.Gain = agg.Gain.Add(row.Gain)
		agg.EndCapital = agg.EndCapital.Add(row.EndCapital)
		agg.CostBasis = agg.CostBasis.Add(row.CostBasis)
		agg.TaxPaid = agg.TaxPaid.Add(row.TaxPaid)
		agg.Vorabpauschale = agg.Vorabpauschale.Add(row.Vorabpauschale)
		agg.AccumulatedVorabpauschale = agg.AccumulatedVorabpauschale.Add(row.AccumulatedVorabpauschale)
		agg.AllowanceUsed = agg.AllowanceUsed.Add(row.AllowanceUsed)
	}
	return agg, settlement.Pot, nil
}

// ValidateElements rejects inconsistent elements before anything is
// simulated. Element ids must be unique and no element may start before the
// simulation does.
func ValidateElements(elements []domain.ContributionElement, startYear int) error {
	if len(elements) == 0 {
		return domain.NewValidationError("elements", "at least one contribution element is required")
	}
	seen := make(map[string]bool, len(elements))
	for _, el := range elements {
		if err := el.Validate(); err != nil {
			return err
		}
		if seen[el.ID] {
			return domain.NewValidationError("elements["+el.ID+"].id", "duplicate element id")
		}
		seen[el.ID] = true
		if el.Start.Year() < startYear {
			return domain.NewValidationError("elements["+el.ID+"].start",
				"starts in %d, before the simulation start %d", el.Start.Year(), startYear)
		}
	}
	return nil
}

func holdingsByAsset(states []*elementState) withdrawal.Portfolio {
	var out withdrawal.Portfolio
	index := map[domain.AssetType]int{}
	for _, s := range states {
		i, ok := index[s.el.AssetType]
		if !ok {
			i = len(out)
			index[s.el.AssetType] = i
			out = append(out, withdrawal.Holding{AssetType: s.el.AssetType})
		}
		out[i].Capital = out[i].Capital.Add(s.capital)
		out[i].CostBasis = out[i].CostBasis.Add(s.basis)
		out[i].AccumulatedVorabpauschale = out[i].AccumulatedVorabpauschale.Add(s.vp)
	}
	return out
}
