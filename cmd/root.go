// Package cmd defines the courseingest CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/course-ingest/internal/app"
	"github.com/JakeFAU/course-ingest/internal/config"
	"github.com/JakeFAU/course-ingest/internal/logging"
	"github.com/JakeFAU/course-ingest/internal/orchestrator"
	"github.com/JakeFAU/course-ingest/internal/telemetry"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory, replaceable in tests.
var newApp = app.New

// loadConfig is replaceable in tests.
var loadConfig = config.Load

type rootOptions struct {
	configPath string
	start      int
	end        int
	target     string
	dryRun     bool
	skipGov    bool
	skipAlert  bool

	shutdownTracing func(context.Context) error
}

func (o *rootOptions) selection() orchestrator.Selection {
	return orchestrator.Selection{Start: o.start, End: o.end, Target: o.target}
}

// newRootCmd creates the root command. Running it with no subcommand
// executes the full pipeline.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "courseingest",
		Short: "Collects lifelong-learning courses into the course store.",
		Long: `courseingest visits every configured institution site with a headless
browser, extracts courses through a TEXT, IMAGE, CLICK and DETAIL fallback
chain, merges the government open-data feed and stores the result with
update-on-conflict semantics. Courses first seen in the run are announced
on the alert topic.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initApp(cmd, opts)
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			a, ok := cmd.Context().Value(appKey).(*app.App)
			if ok && a != nil {
				a.Close()
			}
			if opts.shutdownTracing != nil {
				if err := opts.shutdownTracing(context.WithoutCancel(cmd.Context())); err != nil && ok && a != nil {
					a.Logger().Warn("flush traces", logging.Err(err))
				}
			}
			if ok && a != nil {
				_ = a.Logger().Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (YAML, TOML or JSON)")
	pf.IntVar(&opts.start, "start", 0, "index of the first site to run (zero-based)")
	pf.IntVar(&opts.end, "end", 0, "index one past the last site to run; 0 runs to the end")
	pf.StringVar(&opts.target, "target", "", "only run sites whose name or region contains this text")
	pf.BoolVar(&opts.dryRun, "dry-run", false, "extract only; store, archive and publish nothing")

	cmd.Flags().BoolVar(&opts.skipGov, "skip-gov", false, "skip the government open-data source")
	pf.BoolVar(&opts.skipAlert, "skip-alert", false, "skip the new-course alert")

	cmd.AddCommand(newSitesCmd(opts), newGovCmd(opts), newFiltersCmd(opts))
	return cmd
}

func initApp(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	tp, err := telemetry.InitTracerProvider(cmd.Context(), cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	opts.shutdownTracing = tp.Shutdown

	a, err := newApp(cmd.Context(), cfg, logger, app.Options{DryRun: opts.dryRun})
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
	return nil
}

func resolveApp(ctx context.Context) (*app.App, error) {
	a, ok := ctx.Value(appKey).(*app.App)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func logSelection(logger *zap.Logger, opts *rootOptions, n int) {
	logger.Info("sites selected",
		zap.Int("count", n),
		zap.Int("start", opts.start),
		zap.Int("end", opts.end),
		zap.String("target", opts.target),
	)
}
