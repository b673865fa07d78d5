package domain

import (
	"github.com/shopspring/decimal"
)

// StrategyKind selects a withdrawal strategy.
type StrategyKind string

const (
	StrategyFixedPercentage    StrategyKind = "fixed_percentage"
	StrategyVariablePercentage StrategyKind = "variable_percentage"
	StrategyFixedMonthly       StrategyKind = "fixed_monthly"
	StrategyDynamic            StrategyKind = "dynamic"
	StrategyBucket             StrategyKind = "bucket"
	StrategyRMD                StrategyKind = "rmd"
	StrategyTaxOptimized       StrategyKind = "tax_optimized"
)

// AllStrategyKinds lists every strategy in display order.
var AllStrategyKinds = []StrategyKind{
	StrategyFixedPercentage,
	StrategyVariablePercentage,
	StrategyFixedMonthly,
	StrategyDynamic,
	StrategyBucket,
	StrategyRMD,
	StrategyTaxOptimized,
}

// Gender selects the life-expectancy table used by the RMD strategy.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderUnisex Gender = "unisex"
)

// WithdrawalPlan describes the decumulation phase.
type WithdrawalPlan struct {
	Segments      []WithdrawalSegment `yaml:"segments" json:"segments"`
	InflationRate decimal.Decimal     `yaml:"inflation_rate" json:"inflationRate"`
	BirthYear     int                 `yaml:"birth_year,omitempty" json:"birthYear,omitempty"`
	Gender        Gender              `yaml:"gender,omitempty" json:"gender,omitempty"`
}

// WithdrawalSegment applies one strategy over an inclusive year range.
// Only the parameter block matching Strategy is read.
type WithdrawalSegment struct {
	ID        string              `yaml:"id" json:"id"`
	Name      string              `yaml:"name" json:"name"`
	StartYear int                 `yaml:"start_year" json:"startYear"`
	EndYear   int                 `yaml:"end_year" json:"endYear"`
	Strategy  StrategyKind        `yaml:"strategy" json:"strategy"`
	Frequency Frequency           `yaml:"frequency" json:"frequency"`
	Returns   ReturnConfiguration `yaml:"returns" json:"returns"`

	FixedPercentage    *FixedPercentageParams    `yaml:"fixed_percentage,omitempty" json:"fixedPercentage,omitempty"`
	VariablePercentage *VariablePercentageParams `yaml:"variable_percentage,omitempty" json:"variablePercentage,omitempty"`
	FixedMonthly       *FixedMonthlyParams       `yaml:"fixed_monthly,omitempty" json:"fixedMonthly,omitempty"`
	Dynamic            *DynamicParams            `yaml:"dynamic,omitempty" json:"dynamic,omitempty"`
	Bucket             *BucketParams             `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	RMD                *RMDParams                `yaml:"rmd,omitempty" json:"rmd,omitempty"`
	TaxOptimized       *TaxOptimizedParams       `yaml:"tax_optimized,omitempty" json:"taxOptimized,omitempty"`
}

// FixedPercentageParams withdraws Rate × initial capital (4% / 3% rule).
type FixedPercentageParams struct {
	Rate              decimal.Decimal `yaml:"rate" json:"rate"`
	InflationAdjusted bool            `yaml:"inflation_adjusted" json:"inflationAdjusted"`
}

// VariablePercentageParams withdraws Rate × current capital.
type VariablePercentageParams struct {
	Rate decimal.Decimal `yaml:"rate" json:"rate"`
}

// FixedMonthlyParams withdraws a constant monthly amount.
type FixedMonthlyParams struct {
	MonthlyAmount     decimal.Decimal `yaml:"monthly_amount" json:"monthlyAmount"`
	InflationAdjusted bool            `yaml:"inflation_adjusted" json:"inflationAdjusted"`
}

// DynamicParams scales the previous withdrawal by the prior period's return.
type DynamicParams struct {
	BaseRate        decimal.Decimal  `yaml:"base_rate" json:"baseRate"`
	UpperThreshold  decimal.Decimal  `yaml:"upper_threshold" json:"upperThreshold"`
	UpperAdjustment decimal.Decimal  `yaml:"upper_adjustment" json:"upperAdjustment"`
	LowerThreshold  decimal.Decimal  `yaml:"lower_threshold" json:"lowerThreshold"`
	LowerAdjustment decimal.Decimal  `yaml:"lower_adjustment" json:"lowerAdjustment"`
	Floor           *decimal.Decimal `yaml:"floor,omitempty" json:"floor,omitempty"`
	Cap             *decimal.Decimal `yaml:"cap,omitempty" json:"cap,omitempty"`
}

// BucketParams splits capital into a cash buffer and a growth bucket.
type BucketParams struct {
	InitialRate       decimal.Decimal `yaml:"initial_rate" json:"initialRate"`
	CashYears         decimal.Decimal `yaml:"cash_years" json:"cashYears"`
	CashReturn        decimal.Decimal `yaml:"cash_return" json:"cashReturn"`
	InflationAdjusted bool            `yaml:"inflation_adjusted" json:"inflationAdjusted"`
}

// RMDParams derives the withdrawal from remaining life expectancy.
type RMDParams struct {
	Gender Gender `yaml:"gender,omitempty" json:"gender,omitempty"`
}

// TaxObjective selects what the tax-optimized strategy optimizes.
type TaxObjective string

const (
	ObjectiveMinimizeTaxes    TaxObjective = "minimize_taxes"
	ObjectiveMaximizeAfterTax TaxObjective = "maximize_after_tax"
	ObjectiveBalanced         TaxObjective = "balanced"
)

// TaxOptimizedParams bounds the search for the tax-optimal withdrawal.
type TaxOptimizedParams struct {
	MinAmount decimal.Decimal `yaml:"min_amount" json:"minAmount"`
	MaxAmount decimal.Decimal `yaml:"max_amount" json:"maxAmount"`
	Objective TaxObjective    `yaml:"objective" json:"objective"`
	Steps     int             `yaml:"steps" json:"steps"`
}

// WithdrawalYearState is one year of the decumulation phase.
type WithdrawalYearState struct {
	Year              int              `json:"year"`
	SegmentID         string           `json:"segmentId"`
	Strategy          StrategyKind     `json:"strategy"`
	Age               int              `json:"age,omitempty"`
	StartCapital      decimal.Decimal  `json:"startCapital"`
	Withdrawal        decimal.Decimal  `json:"withdrawal"`
	MonthlyWithdrawal decimal.Decimal  `json:"monthlyWithdrawal"`
	Rate              decimal.Decimal  `json:"rate"`
	Gain              decimal.Decimal  `json:"gain"`
	RealizedGain      decimal.Decimal  `json:"realizedGain"`
	TaxPaid           decimal.Decimal  `json:"taxPaid"`
	Vorabpauschale    decimal.Decimal  `json:"vorabpauschale"`
	AllowanceUsed     decimal.Decimal  `json:"allowanceUsed"`
	NetWithdrawal     decimal.Decimal  `json:"netWithdrawal"`
	EndCapital        decimal.Decimal  `json:"endCapital"`
	CashBucket        *decimal.Decimal `json:"cashBucket,omitempty"`
	GrowthBucket      *decimal.Decimal `json:"growthBucket,omitempty"`
	LossPot           LossOffsetPot    `json:"lossPot"`
	Breakdown         TaxBreakdown     `json:"breakdown"`
	Depleted          bool             `json:"depleted"`
}

// WithdrawalResult is the immutable output of the decumulation phase.
type WithdrawalResult struct {
	Years          *YearIndex[WithdrawalYearState] `json:"years"`
	DepletionYear  *int                            `json:"depletionYear,omitempty"`
	TotalWithdrawn decimal.Decimal                 `json:"totalWithdrawn"`
	TotalNet       decimal.Decimal                 `json:"totalNet"`
	TotalTax       decimal.Decimal                 `json:"totalTax"`
	FinalCapital   decimal.Decimal                 `json:"finalCapital"`
	ReturnHistory  *YearIndex[decimal.Decimal]     `json:"returnHistory"`
}

// YearsUntilDepletion returns the number of years funded before the capital
// ran out, or nil when it lasted the whole horizon.
func (wr *WithdrawalResult) YearsUntilDepletion() *int {
	if wr == nil || wr.DepletionYear == nil {
		return nil
	}
	first, _, ok := wr.Years.First()
	if !ok {
		return nil
	}
	n := *wr.DepletionYear - first + 1
	return &n
}
