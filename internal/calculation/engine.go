package calculation

import (
	"errors"
	"fmt"

	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/rgehrsitz/zinsplan/internal/returns"
	"github.com/rgehrsitz/zinsplan/internal/tax"
	"github.com/rgehrsitz/zinsplan/internal/withdrawal"
)

// Logger receives the engine's diagnostics, most importantly every
// computation error together with the request that caused it.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}

// Engine orchestrates a full projection: accumulation through the growth
// simulator, then the optional withdrawal plan on the resulting portfolio.
// An Engine holds no per-run state and may be shared between goroutines as
// long as its Logger is safe for concurrent use.
type Engine struct {
	Logger Logger
}

// NewEngine creates an engine with a no-op logger.
func NewEngine() *Engine {
	return &Engine{Logger: NopLogger{}}
}

// SetLogger sets the logger; nil restores the no-op logger.
func (e *Engine) SetLogger(l Logger) {
	if l == nil {
		e.Logger = NopLogger{}
		return
	}
	e.Logger = l
}

// ValidateRequest checks everything that can be checked without simulating:
// year range, frequency, elements, tax parameters, the return configuration
// and the withdrawal plan.
func ValidateRequest(req domain.SimulationRequest) error {
	if req.StartYear <= 0 || req.EndYear < req.StartYear {
		return domain.NewValidationError("end_year", "simulation range %d-%d is empty", req.StartYear, req.EndYear)
	}
	if !req.Frequency.Valid() {
		return domain.NewConfigurationError("simulation", "unknown frequency %q", req.Frequency)
	}
	if err := ValidateElements(req.Elements, req.StartYear); err != nil {
		return err
	}
	if err := req.Tax.Validate(); err != nil {
		return err
	}
	cfg, _, err := req.ResolvedReturns()
	if err != nil {
		return err
	}
	gen, err := returns.New(cfg, req.StartYear)
	if err != nil {
		return err
	}
	if v, ok := gen.(*returns.Variable); ok {
		if y, covered := v.Covers(req.StartYear, req.EndYear); !covered {
			return domain.NewConfigurationError("returns", "no variable return for year %d", y)
		}
	}
	if req.Withdrawal != nil {
		if err := withdrawal.ValidatePlan(*req.Withdrawal); err != nil {
			return err
		}
		if first := req.Withdrawal.Segments[0].StartYear; first != req.EndYear+1 {
			return domain.NewConfigurationError("withdrawal",
				"first segment starts in %d but accumulation ends in %d", first, req.EndYear)
		}
	}
	return nil
}

// Simulate runs one projection. Computation errors are logged together with
// a summary of the request before they are returned.
func (e *Engine) Simulate(req domain.SimulationRequest) (*domain.SimulationResult, error) {
	result, err := e.simulate(req)
	if err != nil {
		var compErr *domain.ComputationError
		if errors.As(err, &compErr) {
			e.Logger.Errorf("%v [request: %s]", err, describeRequest(req))
		}
		return nil, err
	}
	return result, nil
}

func (e *Engine) simulate(req domain.SimulationRequest) (*domain.SimulationResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	cfg, conflict, err := req.ResolvedReturns()
	if err != nil {
		return nil, err
	}
	if conflict {
		e.Logger.Warnf("legacy rate %s ignored, the %s return configuration takes precedence", req.Rate, cfg.Mode)
	}

	taxModel, err := tax.NewModel(req.Tax)
	if err != nil {
		return nil, err
	}
	gen, err := returns.New(cfg, req.StartYear)
	if err != nil {
		return nil, err
	}

	e.Logger.Debugf("simulating %d elements from %d to %d with %s returns", len(req.Elements), req.StartYear, req.EndYear, cfg.Mode)
	growth, err := NewGrowthSimulator(taxModel).Run(GrowthInput{
		Elements:          req.Elements,
		StartYear:         req.StartYear,
		EndYear:           req.EndYear,
		Frequency:         req.Frequency,
		Returns:           gen,
		TaxOutsideCapital: req.TaxOutsideCapital,
		Pot:               req.InitialLossPot,
	})
	if err != nil {
		return nil, fmt.Errorf("accumulation: %w", err)
	}

	result := &domain.SimulationResult{
		Accumulation:  growth.Accumulation,
		Elements:      growth.Elements,
		ReturnHistory: gen.History(),
		Seed:          gen.Seed(),
		LossPot:       growth.Pot,
	}
	if result.Seed != nil {
		e.Logger.Debugf("random returns seeded with %d", *result.Seed)
	}

	if req.Withdrawal != nil {
		out, err := withdrawal.NewEngine(taxModel).Run(withdrawal.Input{
			Plan:        *req.Withdrawal,
			Portfolio:   growth.Holdings,
			Pot:         growth.Pot,
			PriorReturn: growth.LastRate,
		})
		if err != nil {
			return nil, fmt.Errorf("withdrawal: %w", err)
		}
		result.Withdrawal = out.Result
		result.LossPot = out.Pot
		if len(out.Seeds) > 0 {
			result.SegmentSeeds = out.Seeds
		}
		if y := out.Result.DepletionYear; y != nil {
			e.Logger.Debugf("portfolio depleted in %d", *y)
		}
	}

	e.Logger.Debugf("simulation finished: accumulated %s, total tax %s", result.FinalCapital(), result.TotalTaxPaid())
	return result, nil
}

func describeRequest(req domain.SimulationRequest) string {
	mode := domain.ReturnFixed
	if req.Returns != nil {
		mode = req.Returns.Mode
	}
	segments := 0
	if req.Withdrawal != nil {
		segments = len(req.Withdrawal.Segments)
	}
	return fmt.Sprintf("years=%d-%d elements=%d frequency=%s returns=%s taxOutsideCapital=%t segments=%d",
		req.StartYear, req.EndYear, len(req.Elements), req.Frequency, mode, req.TaxOutsideCapital, segments)
}
