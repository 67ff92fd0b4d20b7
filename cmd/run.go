package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WangZhewei1027/demoprobe/internal/config"
	"github.com/WangZhewei1027/demoprobe/internal/fixtures"
	"github.com/WangZhewei1027/demoprobe/internal/harness"
	"github.com/WangZhewei1027/demoprobe/internal/observability"
	"github.com/WangZhewei1027/demoprobe/internal/suite"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the registered check suites against the embedded demo pages.",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.GetLogger()

		applyRunFlags(cmd, appConfig)
		if err := appConfig.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Catch broken fixture markup before paying for a browser launch.
		if err := fixtures.AuditAll(); err != nil {
			return err
		}

		server, err := fixtures.NewServer(logger, appConfig)
		if err != nil {
			return err
		}
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Fixture server shutdown error", zap.Error(err))
			}
		}()

		manager, err := harness.NewManager(ctx, logger, appConfig)
		if err != nil {
			return fmt.Errorf("failed to launch browser: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := manager.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Browser shutdown error", zap.Error(err))
			}
		}()

		manifest, err := suite.LoadManifest(appConfig.Runner().Manifest)
		if err != nil {
			return err
		}
		suites := manifest.Filter(suite.All())
		if len(suites) == 0 {
			return fmt.Errorf("manifest selected no suites")
		}

		runner := suite.NewRunner(logger, appConfig, manager, server)
		summary, err := runner.Run(ctx, suites)
		if err != nil {
			return err
		}

		printSummary(cmd, summary)
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d checks failed", summary.Failed, summary.Total)
		}
		return nil
	},
}

func printSummary(cmd *cobra.Command, summary suite.Summary) {
	out := cmd.OutOrStdout()
	for _, res := range summary.Results {
		status := "PASS"
		if res.Err != nil {
			status = "FAIL"
		}
		fmt.Fprintf(out, "%s  %s/%s (%s)\n", status, res.Suite, res.Check, res.Duration.Round(time.Millisecond))
		if res.Err != nil {
			fmt.Fprintf(out, "      %v\n", res.Err)
		}
	}
	fmt.Fprintf(out, "%d checks, %d failed\n", summary.Total, summary.Failed)
}

// registerRunFlags declares the run flags on cmd.
func registerRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("headless", true, "run the browser headless")
	cmd.Flags().String("manifest", "", "YAML manifest selecting suites to run")
	cmd.Flags().Int("concurrency", 4, "maximum checks running at once")
}

// applyRunFlags copies flag values into the configuration. Flag defaults never
// override the loaded configuration; only flags the user actually set do.
func applyRunFlags(cmd *cobra.Command, cfg config.Interface) {
	flags := cmd.Flags()
	if flags.Changed("headless") {
		v, _ := flags.GetBool("headless")
		cfg.SetBrowserHeadless(v)
	}
	if flags.Changed("concurrency") {
		n, _ := flags.GetInt("concurrency")
		cfg.SetRunnerConcurrency(n)
	}
	if m, _ := flags.GetString("manifest"); m != "" {
		cfg.SetRunnerManifest(m)
	}
}

func init() {
	registerRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}
