package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rgehrsitz/zinsplan/internal/calculation"
	"github.com/rgehrsitz/zinsplan/internal/compare"
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/rgehrsitz/zinsplan/internal/rebalancing"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Configuration is the root of a plan file.
type Configuration struct {
	Name        string                     `yaml:"name"`
	Description string                     `yaml:"description,omitempty"`
	Simulation  domain.SimulationRequest   `yaml:"simulation"`
	MonteCarlo  *MonteCarloSettings        `yaml:"monte_carlo,omitempty"`
	Sensitivity *SensitivitySettings       `yaml:"sensitivity,omitempty"`
	Risk        *RiskSettings              `yaml:"risk,omitempty"`
	Compare     *CompareSettings           `yaml:"compare,omitempty"`
	Rebalancing *domain.RebalancingRequest `yaml:"rebalancing,omitempty"`

	// keys holds the dotted path of every mapping key in the parsed file.
	// Nil for configurations built in code.
	keys map[string]bool
}

// isSet reports whether the plan file named the key at path. Without a
// parsed file every key counts as unset.
func (c *Configuration) isSet(path string) bool {
	return c.keys[path]
}

// MonteCarloSettings configures the montecarlo command.
type MonteCarloSettings struct {
	Trials  int    `yaml:"trials"`
	Seed    *int64 `yaml:"seed,omitempty"`
	Workers int    `yaml:"workers,omitempty"`
}

// SensitivitySettings configures the sensitivity command.
type SensitivitySettings struct {
	Metric     domain.SensitivityMetric      `yaml:"metric,omitempty"`
	Parameters []domain.SensitivityParameter `yaml:"parameters,omitempty"`
}

// RiskSettings configures risk metrics and the sequence-risk command.
type RiskSettings struct {
	RiskFreeRate decimal.Decimal `yaml:"risk_free_rate"`
	TargetReturn decimal.Decimal `yaml:"target_return"`
	Horizon      int             `yaml:"horizon"`
}

// CompareSettings configures the withdrawal strategy comparison.
type CompareSettings struct {
	BaseName     string                `yaml:"base_name,omitempty"`
	Alternatives []compare.Alternative `yaml:"alternatives,omitempty"`
	Seed         *int64                `yaml:"seed,omitempty"`
}

// Defaults filled in for zero values.
var (
	DefaultProjectedBaseRate = decimal.RequireFromString("0.0253")
	DefaultTrials            = 1000
	DefaultRiskHorizon       = 1
)

// InputParser handles parsing of input configuration files
type InputParser struct{}

// NewInputParser creates a new input parser
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadFromFile loads a plan from a YAML file, fills in defaults and
// validates it.
func (ip *InputParser) LoadFromFile(filename string) (*Configuration, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return ip.Parse(data)
}

// Parse decodes, defaults and validates a plan.
func (ip *InputParser) Parse(data []byte) (*Configuration, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	var config Configuration
	if err := doc.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	config.keys = map[string]bool{}
	collectKeys(&doc, "", config.keys)

	ip.ApplyDefaults(&config)

	if err := ip.ValidateConfiguration(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// collectKeys records the dotted path of every mapping key below n.
func collectKeys(n *yaml.Node, prefix string, out map[string]bool) {
	switch n.Kind {
	case yaml.DocumentNode:
		for _, c := range n.Content {
			collectKeys(c, prefix, out)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			path := n.Content[i].Value
			if prefix != "" {
				path = prefix + "." + path
			}
			out[path] = true
			collectKeys(n.Content[i+1], path, out)
		}
	}
}

// ApplyDefaults fills unset values: German tax defaults, the projected base
// rate, yearly frequency, generated ids, and the rebalancing horizon and tax
// taken from the simulation. Tax rates and the allowance keep an explicit
// zero from the plan file; for configurations built in code a zero means
// unset.
func (ip *InputParser) ApplyDefaults(config *Configuration) {
	sim := &config.Simulation
	applyTaxDefaults(&sim.Tax, config, "simulation.tax")
	if sim.Frequency == "" {
		sim.Frequency = domain.FrequencyYearly
	}
	for i := range sim.Elements {
		if sim.Elements[i].ID == "" {
			sim.Elements[i].ID = uuid.NewString()
		}
		if sim.Elements[i].AssetType == "" {
			sim.Elements[i].AssetType = domain.AssetEquityFund
		}
	}

	if plan := sim.Withdrawal; plan != nil {
		if plan.Gender == "" {
			plan.Gender = domain.GenderUnisex
		}
		for i := range plan.Segments {
			seg := &plan.Segments[i]
			if seg.ID == "" {
				seg.ID = uuid.NewString()
			}
			if seg.Name == "" {
				seg.Name = fmt.Sprintf("Segment %d", i+1)
			}
			if seg.Frequency == "" {
				seg.Frequency = domain.FrequencyYearly
			}
		}
	}

	if mc := config.MonteCarlo; mc != nil && mc.Trials == 0 {
		mc.Trials = DefaultTrials
	}
	if r := config.Risk; r != nil && r.Horizon == 0 {
		r.Horizon = DefaultRiskHorizon
	}

	if rb := config.Rebalancing; rb != nil {
		if rb.StartYear == 0 {
			rb.StartYear = sim.StartYear
		}
		if rb.EndYear == 0 {
			rb.EndYear = sim.EndYear
		}
		inherit := !config.isSet("rebalancing.tax")
		if config.keys == nil {
			inherit = rb.Tax.CapitalGainsRate.IsZero() && rb.Tax.AnnualAllowance.IsZero()
		}
		if inherit {
			rb.Tax = sim.Tax
		} else {
			applyTaxDefaults(&rb.Tax, config, "rebalancing.tax")
		}
		if rb.RiskFreeRate.IsZero() && config.Risk != nil {
			rb.RiskFreeRate = config.Risk.RiskFreeRate
		}
	}
}

func applyTaxDefaults(tp *domain.TaxParameters, config *Configuration, prefix string) {
	if tp.CapitalGainsRate.IsZero() && !config.isSet(prefix+".capital_gains_rate") {
		tp.CapitalGainsRate = domain.DefaultCapitalGainsRate
	}
	if tp.AnnualAllowance.IsZero() && !config.isSet(prefix+".annual_allowance") {
		tp.AnnualAllowance = domain.DefaultAnnualAllowance
	}
	if tp.ChurchTax && tp.ChurchTaxRate.IsZero() && !config.isSet(prefix+".church_tax_rate") {
		tp.ChurchTaxRate = domain.DefaultChurchTaxRate
	}
	if tp.ProjectedBaseRate == nil {
		tp.ProjectedBaseRate = domain.DecimalPtr(DefaultProjectedBaseRate)
	}
}

// ValidateConfiguration validates the loaded configuration. Typed domain
// errors are wrapped, so callers can still match them with errors.As.
func (ip *InputParser) ValidateConfiguration(config *Configuration) error {
	if err := calculation.ValidateRequest(config.Simulation); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}

	if mc := config.MonteCarlo; mc != nil {
		if mc.Trials < 0 {
			return domain.NewValidationError("monte_carlo.trials", "must be positive")
		}
		if mc.Workers < 0 {
			return domain.NewValidationError("monte_carlo.workers", "cannot be negative")
		}
	}

	if s := config.Sensitivity; s != nil {
		for i, p := range s.Parameters {
			if p.Name == "" {
				return domain.NewValidationError(fmt.Sprintf("sensitivity.parameters[%d].name", i), "is required")
			}
			if !p.Delta.IsPositive() {
				return domain.NewValidationError(fmt.Sprintf("sensitivity.parameters[%d].delta", i), "must be positive")
			}
		}
	}

	if r := config.Risk; r != nil && r.Horizon < 1 {
		return domain.NewValidationError("risk.horizon", "must be at least one period")
	}

	if c := config.Compare; c != nil {
		if config.Simulation.Withdrawal == nil {
			return domain.NewConfigurationError("compare", "strategy comparison needs a withdrawal plan")
		}
		seen := map[string]bool{}
		for i, alt := range c.Alternatives {
			if alt.Name == "" {
				return domain.NewValidationError(fmt.Sprintf("compare.alternatives[%d].name", i), "is required")
			}
			if seen[alt.Name] {
				return domain.NewValidationError(fmt.Sprintf("compare.alternatives[%d].name", i), "duplicate alternative %q", alt.Name)
			}
			seen[alt.Name] = true
		}
	}

	if rb := config.Rebalancing; rb != nil {
		if err := rebalancing.ValidateRequest(*rb); err != nil {
			return fmt.Errorf("rebalancing: %w", err)
		}
	}

	return nil
}
