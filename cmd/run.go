package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/course-ingest/internal/app"
	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/logging"
	"github.com/JakeFAU/course-ingest/internal/metrics"
	"github.com/JakeFAU/course-ingest/internal/orchestrator"
)

func runPipeline(cmd *cobra.Command, opts *rootOptions) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	sites, err := selectSites(a.Config().Pipeline.SitesFile, opts)
	if err != nil {
		return err
	}
	logSelection(a.Logger(), opts, len(sites))
	return execute(cmd, a, sites, app.PipelineOptions{
		SkipSites: len(sites) == 0,
		SkipGov:   opts.skipGov,
		SkipAlert: opts.skipAlert,
	})
}

// selectSites loads the site list and applies the selection flags. An
// unmatched --target is an error carrying close-name suggestions.
func selectSites(sitesFile string, opts *rootOptions) ([]course.Site, error) {
	all, err := orchestrator.LoadSites(sitesFile)
	if err != nil {
		return nil, err
	}
	sel := opts.selection()
	sites, err := orchestrator.Select(all, sel)
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 && sel.Target != "" {
		if hints := orchestrator.Suggest(all, sel.Target); len(hints) > 0 {
			return nil, fmt.Errorf("no site matches %q; did you mean %q?", sel.Target, hints)
		}
		return nil, fmt.Errorf("no site matches %q", sel.Target)
	}
	return sites, nil
}

func execute(cmd *cobra.Command, a *app.App, sites []course.Site, popts app.PipelineOptions) error {
	ctx := cmd.Context()
	logger := a.Logger()
	cfg := a.Config()

	orch, closePipeline, err := a.Pipeline(ctx, popts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closePipeline(); cerr != nil {
			logger.Warn("close pipeline", logging.Err(cerr))
		}
	}()

	if cfg.Metrics.Addr != "" {
		srvCtx, stop := context.WithCancel(ctx)
		defer stop()
		go func() {
			if err := metrics.Serve(srvCtx, cfg.Metrics.Addr, metrics.NewRouter(orch.Status), logger); err != nil {
				logger.Warn("metrics server stopped", logging.Err(err))
			}
		}()
	}

	summary, runErr := orch.Run(ctx, sites)
	summary.Render(cmd.OutOrStdout())

	if cfg.Metrics.PushURL != "" {
		if err := metrics.Push(context.WithoutCancel(ctx), cfg.Metrics.PushURL, cfg.Metrics.Job); err != nil {
			logger.Warn("push metrics", logging.Err(err))
		}
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run pipeline: %w", runErr)
	}
	if runErr != nil {
		logger.Warn("run interrupted", zap.Int("sites_done", len(summary.Sites)))
	}
	return nil
}
