package withdrawal

import (
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/shopspring/decimal"
)

// lifeTableAge and the two columns below are remaining life expectancy in
// years from the German period life table, at five-year anchors.
var (
	lifeTableAge    = []int{50, 55, 60, 65, 70, 75, 80, 85, 90, 95, 100}
	lifeTableMale   = []float64{30.4, 25.9, 21.5, 17.7, 14.2, 11.0, 8.1, 5.7, 3.9, 2.7, 1.9}
	lifeTableFemale = []float64{34.6, 29.8, 25.2, 20.9, 16.9, 13.1, 9.7, 6.8, 4.5, 3.0, 2.1}
)

// LifeExpectancy returns the remaining life expectancy at age, linearly
// interpolated between anchors. Ages below the table gain one year per year
// of difference; the result never drops below one year.
func LifeExpectancy(age int, gender domain.Gender) decimal.Decimal {
	column := func(i int) float64 {
		switch gender {
		case domain.GenderMale:
			return lifeTableMale[i]
		case domain.GenderFemale:
			return lifeTableFemale[i]
		default:
			return (lifeTableMale[i] + lifeTableFemale[i]) / 2
		}
	}

	var years float64
	last := len(lifeTableAge) - 1
	switch {
	case age <= lifeTableAge[0]:
		years = column(0) + float64(lifeTableAge[0]-age)
	case age >= lifeTableAge[last]:
		years = column(last) - 0.1*float64(age-lifeTableAge[last])
	default:
		for i := 0; i < last; i++ {
			lo, hi := lifeTableAge[i], lifeTableAge[i+1]
			if age >= lo && age <= hi {
				frac := float64(age-lo) / float64(hi-lo)
				years = column(i) + frac*(column(i+1)-column(i))
				break
			}
		}
	}
	if years < 1 {
		years = 1
	}
	return decimal.NewFromFloat(years).Round(2)
}

// RMDStrategy withdraws capital divided by the remaining life expectancy,
// recomputed each year as the retiree ages.
type RMDStrategy struct {
	gender domain.Gender
}

func NewRMDStrategy(gender domain.Gender) *RMDStrategy {
	if gender == "" {
		gender = domain.GenderUnisex
	}
	return &RMDStrategy{gender: gender}
}

func (s *RMDStrategy) Name() string { return "Life expectancy (RMD)" }

func (s *RMDStrategy) Kind() domain.StrategyKind { return domain.StrategyRMD }

func (s *RMDStrategy) Plan(_ State, p Period) (Decision, error) {
	if p.Age <= 0 {
		return Decision{}, domain.NewConfigurationError("withdrawal", "rmd strategy needs the retiree's age in %d", p.Year)
	}
	return p.withdraw(p.Capital.Div(LifeExpectancy(p.Age, s.gender))), nil
}
