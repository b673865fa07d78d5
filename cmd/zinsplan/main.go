package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"

	"github.com/joho/godotenv"
	"github.com/rgehrsitz/zinsplan/internal/calculation"
	"github.com/rgehrsitz/zinsplan/internal/config"
	"github.com/rgehrsitz/zinsplan/internal/output"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app carries what the commands share: the logger picked from the
// persistent flags and the engine it is attached to.
type app struct {
	log    zerolog.Logger
	engine *calculation.Engine
}

func newRootCmd() *cobra.Command {
	a := &app{log: zerolog.Nop(), engine: calculation.NewEngine()}

	rootCmd := &cobra.Command{
		Use:   "zinsplan",
		Short: "German retirement savings and withdrawal planner",
		Long: `Projects savings plans and one-time investments through the accumulation
phase with German capital gains tax (Vorabpauschale, Teilfreistellung,
Sparerpauschbetrag, loss offsetting), then runs the withdrawal plan and
analyses risk, sensitivity and rebalancing policies.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional
			_ = godotenv.Load()
			levelFlag, _ := cmd.Flags().GetString("log-level")
			a.log = newLogger(cmd.ErrOrStderr(), resolveLogLevel(levelFlag))
			a.engine.SetLogger(zerologLogger{log: a.log})
		},
	}
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); defaults to ZINSPLAN_LOG_LEVEL or warn")

	rootCmd.AddCommand(a.simulateCmd())
	rootCmd.AddCommand(a.validateCmd())
	rootCmd.AddCommand(a.monteCarloCmd())
	rootCmd.AddCommand(a.sensitivityCmd())
	rootCmd.AddCommand(a.sequenceRiskCmd())
	rootCmd.AddCommand(a.rebalanceCmd())
	rootCmd.AddCommand(a.compareCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "zinsplan %s (commit %s, built %s)\n", version, commit, date)
			if info := buildInfo(); info != "" {
				fmt.Fprintln(cmd.OutOrStdout(), info)
			}
		},
	}
}

func buildInfo() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		return bi.Main.Path + " " + bi.GoVersion
	}
	return ""
}

// loadConfig parses and validates the plan file.
func (a *app) loadConfig(path string) (*config.Configuration, error) {
	cfg, err := config.NewInputParser().LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	a.log.Debug().Str("file", path).Str("plan", cfg.Name).Msg("configuration loaded")
	return cfg, nil
}

// addFormatFlags registers the report output flags.
func addFormatFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "console", fmt.Sprintf("Output format %v", output.AvailableFormatterNames()))
	cmd.Flags().Bool("save", false, "Write the report to a timestamped file instead of stdout")
}

// writeReport renders the report with the formatter chosen by the flags.
func (a *app) writeReport(cmd *cobra.Command, report *output.Report) error {
	name, _ := cmd.Flags().GetString("format")
	f := output.GetFormatterByName(name)
	if f == nil {
		return fmt.Errorf("unknown output format: %s (valid: %v)", name, output.AvailableFormatterNames())
	}
	if save, _ := cmd.Flags().GetBool("save"); save {
		filename, err := output.WriteFormatted(f, report, output.FileExtension(f))
		if err != nil {
			return err
		}
		a.log.Info().Str("file", filename).Msg("report written")
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", filename)
		return nil
	}
	data, err := f.Format(report)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		log := newLogger(os.Stderr, zerolog.ErrorLevel)
		log.Fatal().Err(err).Msg("zinsplan failed")
	}
}
