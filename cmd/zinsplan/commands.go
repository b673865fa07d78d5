package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/rgehrsitz/zinsplan/internal/calculation"
	"github.com/rgehrsitz/zinsplan/internal/compare"
	"github.com/rgehrsitz/zinsplan/internal/config"
	"github.com/rgehrsitz/zinsplan/internal/domain"
	"github.com/rgehrsitz/zinsplan/internal/output"
	"github.com/rgehrsitz/zinsplan/internal/rebalancing"
	"github.com/rgehrsitz/zinsplan/internal/risk"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newReport(cfg *config.Configuration, path string) *output.Report {
	return &output.Report{Name: cfg.Name, ConfigPath: path, GeneratedAt: time.Now()}
}

func riskOptions(cfg *config.Configuration) risk.Options {
	if cfg.Risk == nil {
		return risk.Options{}
	}
	return risk.Options{
		RiskFreeRate: cfg.Risk.RiskFreeRate.InexactFloat64(),
		TargetReturn: cfg.Risk.TargetReturn.InexactFloat64(),
		Horizon:      float64(cfg.Risk.Horizon),
	}
}

func (a *app) simulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate [input-file]",
		Short: "Project the savings and withdrawal phases of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(args[0])
			if err != nil {
				return err
			}
			res, err := a.engine.Simulate(cfg.Simulation)
			if err != nil {
				return err
			}
			report := newReport(cfg, args[0])
			report.Simulation = res

			withRisk, _ := cmd.Flags().GetBool("risk")
			if withRisk || cfg.Risk != nil {
				metrics, err := risk.Analyze(res.CapitalSeries(), riskOptions(cfg))
				if err != nil {
					// short or depleted series carry no meaningful risk figures
					a.log.Warn().Err(err).Msg("risk metrics skipped")
				} else {
					report.Risk = metrics
				}
			}
			return a.writeReport(cmd, report)
		},
	}
	addFormatFlags(cmd)
	cmd.Flags().Bool("risk", false, "Add risk metrics of the capital series")
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [input-file]",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.loadConfig(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration file %s is valid\n", args[0])
			return nil
		},
	}
}

func (a *app) monteCarloCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "montecarlo [input-file]",
		Short: "Run seeded Monte Carlo trials of a plan",
		Long: `Runs the plan many times with independent return draws. Trial i uses
seed base+i, so a run is reproducible from its base seed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(args[0])
			if err != nil {
				return err
			}
			settings := config.MonteCarloSettings{Trials: config.DefaultTrials}
			if cfg.MonteCarlo != nil {
				settings = *cfg.MonteCarlo
			}
			if cmd.Flags().Changed("trials") {
				settings.Trials, _ = cmd.Flags().GetInt("trials")
			}
			if cmd.Flags().Changed("seed") {
				seed, _ := cmd.Flags().GetInt64("seed")
				settings.Seed = &seed
			}
			if cmd.Flags().Changed("workers") {
				settings.Workers, _ = cmd.Flags().GetInt("workers")
			}

			step := max(settings.Trials/10, 1)
			res, err := a.engine.RunMonteCarlo(cmd.Context(), cfg.Simulation, calculation.MonteCarloConfig{
				Trials:  settings.Trials,
				Seed:    settings.Seed,
				Workers: settings.Workers,
				Progress: func(done, total int) {
					if done%step == 0 || done == total {
						a.log.Debug().Int("done", done).Int("total", total).Msg("monte carlo progress")
					}
				},
			})
			if err != nil {
				return err
			}
			report := newReport(cfg, args[0])
			report.MonteCarlo = res
			return a.writeReport(cmd, report)
		},
	}
	addFormatFlags(cmd)
	cmd.Flags().Int("trials", config.DefaultTrials, "Number of trials")
	cmd.Flags().Int64("seed", 0, "Base seed (random when unset)")
	cmd.Flags().Int("workers", 0, "Concurrent trials (0 uses all CPUs)")
	return cmd
}

func (a *app) sensitivityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sensitivity [input-file]",
		Short: "Rank plan inputs by their effect on the outcome",
		Long: `Moves each input down and up by its delta while holding the others fixed
and ranks the inputs by the change of the target metric.

Metrics: final_capital, withdrawal_final_capital, total_withdrawn, total_tax`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(args[0])
			if err != nil {
				return err
			}
			var metric domain.SensitivityMetric
			var params []domain.SensitivityParameter
			if cfg.Sensitivity != nil {
				metric = cfg.Sensitivity.Metric
				params = cfg.Sensitivity.Parameters
			}
			if m, _ := cmd.Flags().GetString("metric"); m != "" {
				metric = domain.SensitivityMetric(m)
			}
			if names, _ := cmd.Flags().GetStringSlice("parameter"); len(names) > 0 {
				params, err = selectParameters(names)
				if err != nil {
					return err
				}
			}

			analysis, err := calculation.NewSensitivityAnalyzer(a.engine).Analyze(cfg.Simulation, metric, params)
			if err != nil {
				return err
			}
			report := newReport(cfg, args[0])
			report.Sensitivity = analysis
			return a.writeReport(cmd, report)
		},
	}
	addFormatFlags(cmd)
	cmd.Flags().String("metric", "", "Target metric (default from the plan)")
	cmd.Flags().StringSlice("parameter", nil, "Restrict to these default parameters")
	return cmd
}

// selectParameters picks default parameters by name.
func selectParameters(names []string) ([]domain.SensitivityParameter, error) {
	byName := map[string]domain.SensitivityParameter{}
	var known []string
	for _, p := range domain.DefaultSensitivityParameters() {
		byName[p.Name] = p
		known = append(known, p.Name)
	}
	out := make([]domain.SensitivityParameter, 0, len(names))
	for _, n := range names {
		p, ok := byName[strings.TrimSpace(n)]
		if !ok {
			return nil, domain.NewConfigurationError("sensitivity", "unknown parameter %q (known: %s)", n, strings.Join(known, ", "))
		}
		out = append(out, p)
	}
	return out, nil
}

func (a *app) sequenceRiskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequence-risk [input-file]",
		Short: "Replay the same returns in best, given and worst order",
		Long: `Reorders the withdrawal-phase returns of a plan and replays its withdrawals
against each ordering. Plans without a withdrawal phase replay the savings-phase
returns against --withdrawal, raised by --inflation each year.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(args[0])
			if err != nil {
				return err
			}
			res, err := a.engine.Simulate(cfg.Simulation)
			if err != nil {
				return err
			}

			var in risk.SequenceInput
			if res.Withdrawal != nil {
				in, err = risk.InputFromWithdrawal(res.Withdrawal)
				if err != nil {
					return err
				}
			} else {
				amount, _ := cmd.Flags().GetFloat64("withdrawal")
				if amount <= 0 {
					return domain.NewValidationError("withdrawal", "plans without a withdrawal phase need --withdrawal")
				}
				inflation, _ := cmd.Flags().GetFloat64("inflation")
				in.StartingCapital = res.FinalCapital()
				in.Returns = res.ReturnHistory.Values()
				in.Withdrawals = risk.InflatedSchedule(decimal.NewFromFloat(amount), decimal.NewFromFloat(inflation), len(in.Returns))
			}

			analysis, err := risk.SequenceRisk(in)
			if err != nil {
				return err
			}
			report := newReport(cfg, args[0])
			report.SequenceRisk = analysis
			return a.writeReport(cmd, report)
		},
	}
	addFormatFlags(cmd)
	cmd.Flags().Float64("withdrawal", 0, "Yearly withdrawal for plans without a withdrawal phase")
	cmd.Flags().Float64("inflation", 0.02, "Yearly increase of --withdrawal")
	return cmd
}

func (a *app) rebalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebalance [input-file]",
		Short: "Compare rebalancing policies on identical return draws",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig(args[0])
			if err != nil {
				return err
			}
			if cfg.Rebalancing == nil {
				return domain.NewConfigurationError("rebalancing", "the plan has no rebalancing section")
			}
			sim, err := rebalancing.NewSimulator(*cfg.Rebalancing)
			if err != nil {
				return err
			}
			cmp, err := sim.Compare(cmd.Context())
			if err != nil {
				return err
			}
			a.log.Info().Str("recommended", string(cmp.Recommended)).Msg("rebalancing compared")
			report := newReport(cfg, args[0])
			report.Rebalancing = cmp
			return a.writeReport(cmd, report)
		},
	}
	addFormatFlags(cmd)
	return cmd
}

func (a *app) compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [input-file]",
		Short: "Compare the withdrawal plan against alternative strategies",
		Long: `Runs the configured withdrawal plan and alternative strategies on the same
savings phase and the same return draws.

Examples:
  zinsplan compare plan.yaml
  zinsplan compare plan.yaml --with four_percent,bucket --format csv
  zinsplan compare plan.yaml --list-alternatives`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list, _ := cmd.Flags().GetBool("list-alternatives"); list {
				// a birth year lists the life-expectancy alternative too
				plan := domain.WithdrawalPlan{BirthYear: 1}
				for _, alt := range compare.DefaultAlternatives(plan) {
					fmt.Fprintf(cmd.OutOrStdout(), "  %-16s %s\n", alt.Name, alt.Description)
				}
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("input file required for comparison (use --list-alternatives to see the built-in alternatives)")
			}

			cfg, err := a.loadConfig(args[0])
			if err != nil {
				return err
			}
			options := compare.CompareOptions{BaseName: cfg.Name}
			if cs := cfg.Compare; cs != nil {
				if cs.BaseName != "" {
					options.BaseName = cs.BaseName
				}
				options.Alternatives = cs.Alternatives
				options.Seed = cs.Seed
			}
			if with, _ := cmd.Flags().GetStringSlice("with"); len(with) > 0 {
				if cfg.Simulation.Withdrawal == nil {
					return domain.NewConfigurationError("compare", "strategy comparison needs a withdrawal plan")
				}
				options.Alternatives, err = selectAlternatives(*cfg.Simulation.Withdrawal, with)
				if err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("seed") {
				seed, _ := cmd.Flags().GetInt64("seed")
				options.Seed = &seed
			}

			compSet, err := compare.NewCompareEngine(a.engine).Compare(cmd.Context(), cfg.Simulation, options)
			if err != nil {
				return fmt.Errorf("comparison failed: %w", err)
			}
			compSet.ConfigPath = args[0]

			format, _ := cmd.Flags().GetString("format")
			var out string
			switch strings.ToLower(format) {
			case "csv":
				out, err = (&compare.CSVFormatter{}).Format(compSet)
			case "json":
				out, err = (&compare.JSONFormatter{Pretty: true}).Format(compSet)
			case "compact":
				out = (&compare.TableFormatter{}).FormatCompact(compSet) + "\n"
			case "table", "console", "":
				out = (&compare.TableFormatter{}).Format(compSet)
			default:
				return fmt.Errorf("unknown output format: %s (valid: table, compact, csv, json)", format)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringP("format", "f", "table", "Output format (table, compact, csv, json)")
	cmd.Flags().StringSlice("with", nil, "Built-in alternatives to compare (default: all, or the plan's compare section)")
	cmd.Flags().Int64("seed", 0, "Seed for random returns (random when unset)")
	cmd.Flags().Bool("list-alternatives", false, "List the built-in alternatives")
	return cmd
}

// selectAlternatives picks built-in alternatives by name.
func selectAlternatives(plan domain.WithdrawalPlan, names []string) ([]compare.Alternative, error) {
	byName := map[string]compare.Alternative{}
	for _, alt := range compare.DefaultAlternatives(plan) {
		byName[alt.Name] = alt
	}
	out := make([]compare.Alternative, 0, len(names))
	for _, n := range names {
		alt, ok := byName[strings.TrimSpace(n)]
		if !ok {
			return nil, domain.NewConfigurationError("compare", "unknown alternative %q", n)
		}
		out = append(out, alt)
	}
	return out, nil
}
