package domain

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// RebalancingPolicyKind selects when a portfolio is brought back to target.
type RebalancingPolicyKind string

const (
	PolicyCalendar      RebalancingPolicyKind = "calendar"
	PolicyThreshold     RebalancingPolicyKind = "threshold"
	PolicyHybrid        RebalancingPolicyKind = "hybrid"
	PolicyTaxOptimized  RebalancingPolicyKind = "tax_optimized"
	PolicyOpportunistic RebalancingPolicyKind = "opportunistic"
)

// RebalancingPolicy is a tagged variant: IntervalYears is read by calendar
// and hybrid, Threshold (absolute weight drift, 0.05 = 5 points) by every
// kind except calendar.
type RebalancingPolicy struct {
	Kind          RebalancingPolicyKind `yaml:"kind" json:"kind"`
	IntervalYears int                   `yaml:"interval_years,omitempty" json:"intervalYears,omitempty"`
	Threshold     decimal.Decimal       `yaml:"threshold,omitempty" json:"threshold,omitempty"`
}

// DefaultRebalancingPolicies returns one policy of every kind with common
// parameters: yearly calendar, 5% drift band, hybrid checked every two years.
func DefaultRebalancingPolicies() []RebalancingPolicy {
	band := decimal.NewFromFloat(0.05)
	return []RebalancingPolicy{
		{Kind: PolicyCalendar, IntervalYears: 1},
		{Kind: PolicyThreshold, Threshold: band},
		{Kind: PolicyHybrid, IntervalYears: 2, Threshold: band},
		{Kind: PolicyTaxOptimized, Threshold: band},
		{Kind: PolicyOpportunistic, Threshold: band},
	}
}

// Validate checks the parameters the policy kind reads.
func (p RebalancingPolicy) Validate(field string) error {
	switch p.Kind {
	case PolicyCalendar, PolicyHybrid:
		if p.IntervalYears < 1 {
			return NewValidationError(field+".interval_years", "%s policy requires an interval of at least one year", p.Kind)
		}
	case PolicyThreshold, PolicyTaxOptimized, PolicyOpportunistic:
	default:
		return NewConfigurationError("rebalancing", "unknown rebalancing policy %q", p.Kind)
	}
	if p.Kind != PolicyCalendar {
		if !p.Threshold.IsPositive() || p.Threshold.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return NewValidationError(field+".threshold", "threshold must be within (0, 1)")
		}
	}
	return nil
}

// Name labels the policy with its parameters.
func (p RebalancingPolicy) Name() string {
	switch p.Kind {
	case PolicyCalendar:
		return string(p.Kind) + " (" + pluralYears(p.IntervalYears) + ")"
	case PolicyHybrid:
		return string(p.Kind) + " (" + pluralYears(p.IntervalYears) + ", " + p.Threshold.Mul(decimal.NewFromInt(100)).String() + "%)"
	default:
		return string(p.Kind) + " (" + p.Threshold.Mul(decimal.NewFromInt(100)).String() + "%)"
	}
}

func pluralYears(n int) string {
	if n == 1 {
		return "yearly"
	}
	return "every " + strconv.Itoa(n) + " years"
}

// TransactionCostModel charges Percentage of the traded amount plus
// FixedPerTrade. Rebalancing trades below MinimumTrade are not placed.
type TransactionCostModel struct {
	Percentage    decimal.Decimal `yaml:"percentage" json:"percentage"`
	FixedPerTrade decimal.Decimal `yaml:"fixed_per_trade" json:"fixedPerTrade"`
	MinimumTrade  decimal.Decimal `yaml:"minimum_trade" json:"minimumTrade"`
}

// Validate rejects negative cost parameters.
func (c TransactionCostModel) Validate(field string) error {
	switch {
	case c.Percentage.IsNegative() || c.Percentage.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return NewValidationError(field+".percentage", "must be within [0, 1)")
	case c.FixedPerTrade.IsNegative():
		return NewValidationError(field+".fixed_per_trade", "cannot be negative")
	case c.MinimumTrade.IsNegative():
		return NewValidationError(field+".minimum_trade", "cannot be negative")
	}
	return nil
}

// RebalancingRequest describes a multi-asset portfolio simulated under one or
// more rebalancing policies. Returns must be a multi-asset configuration; its
// asset classes carry the target allocation.
type RebalancingRequest struct {
	StartYear          int                  `yaml:"start_year" json:"startYear"`
	EndYear            int                  `yaml:"end_year" json:"endYear"`
	InitialCapital     decimal.Decimal      `yaml:"initial_capital" json:"initialCapital"`
	AnnualContribution decimal.Decimal      `yaml:"annual_contribution" json:"annualContribution"`
	AnnualWithdrawal   decimal.Decimal      `yaml:"annual_withdrawal" json:"annualWithdrawal"`
	Returns            ReturnConfiguration  `yaml:"returns" json:"returns"`
	AssetTypes         map[string]AssetType `yaml:"asset_types,omitempty" json:"assetTypes,omitempty"`
	Policies           []RebalancingPolicy  `yaml:"policies,omitempty" json:"policies,omitempty"`
	Costs              TransactionCostModel `yaml:"costs" json:"costs"`
	Tax                TaxParameters        `yaml:"tax" json:"tax"`
	RiskFreeRate       decimal.Decimal      `yaml:"risk_free_rate" json:"riskFreeRate"`
}

// AssetTypeOf returns the fund type of an asset class; unmapped classes are
// taxed without partial exemption.
func (r RebalancingRequest) AssetTypeOf(class string) AssetType {
	if t, ok := r.AssetTypes[class]; ok {
		return t
	}
	return AssetOther
}

// TradeReason records why a transaction was placed.
type TradeReason string

const (
	TradeContribution TradeReason = "contribution"
	TradeWithdrawal   TradeReason = "withdrawal"
	TradeRebalance    TradeReason = "rebalance"
)

// RebalancingTransaction is one trade in one asset class. Amount is positive
// for purchases and negative for sales.
type RebalancingTransaction struct {
	Year         int             `json:"year"`
	Asset        string          `json:"asset"`
	Reason       TradeReason     `json:"reason"`
	Amount       decimal.Decimal `json:"amount"`
	RealizedGain decimal.Decimal `json:"realizedGain"`
	Tax          decimal.Decimal `json:"tax"`
	Cost         decimal.Decimal `json:"cost"`
}

// RebalancingYearState is one year of a policy run. MaxDrift is measured
// after growth and before any rebalancing trade; Weights after it.
type RebalancingYearState struct {
	Year            int                        `json:"year"`
	StartValue      decimal.Decimal            `json:"startValue"`
	Contribution    decimal.Decimal            `json:"contribution"`
	Withdrawal      decimal.Decimal            `json:"withdrawal"`
	AssetRates      map[string]decimal.Decimal `json:"assetRates"`
	Values          map[string]decimal.Decimal `json:"values"`
	Weights         map[string]decimal.Decimal `json:"weights"`
	MaxDrift        decimal.Decimal            `json:"maxDrift"`
	Rebalanced      bool                       `json:"rebalanced"`
	TaxPaid         decimal.Decimal            `json:"taxPaid"`
	Costs           decimal.Decimal            `json:"costs"`
	EndValue        decimal.Decimal            `json:"endValue"`
	Return          float64                    `json:"return"`
	BenchmarkReturn float64                    `json:"benchmarkReturn"`
	LossPot         LossOffsetPot              `json:"lossPot"`
}

// RebalancingRun is the outcome of one policy. Score and Rank are filled in
// by a comparison.
type RebalancingRun struct {
	Policy           RebalancingPolicy                `json:"policy"`
	Years            *YearIndex[RebalancingYearState] `json:"years"`
	Transactions     []RebalancingTransaction         `json:"transactions"`
	RebalanceCount   int                              `json:"rebalanceCount"`
	FinalValue       decimal.Decimal                  `json:"finalValue"`
	TotalCost        decimal.Decimal                  `json:"totalCost"`
	TotalTax         decimal.Decimal                  `json:"totalTax"`
	AnnualizedReturn float64                          `json:"annualizedReturn"`
	Volatility       float64                          `json:"volatility"`
	SharpeRatio      RatioValue                       `json:"sharpeRatio"`
	TrackingError    float64                          `json:"trackingError"`
	Score            float64                          `json:"score"`
	Rank             int                              `json:"rank"`
}

// RebalancingComparison ranks policy runs on identical return draws.
type RebalancingComparison struct {
	Seed        *int64                `json:"seed,omitempty"`
	Runs        []RebalancingRun      `json:"runs"`
	Recommended RebalancingPolicyKind `json:"recommended"`
	Rationale   string                `json:"rationale"`
}
