// Package app initializes and holds the long-lived services of one ingestion
// run, acting as the dependency container the CLI commands draw from.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/course-ingest/internal/ai"
	"github.com/JakeFAU/course-ingest/internal/alert"
	"github.com/JakeFAU/course-ingest/internal/archive"
	"github.com/JakeFAU/course-ingest/internal/browser"
	"github.com/JakeFAU/course-ingest/internal/clock/system"
	"github.com/JakeFAU/course-ingest/internal/config"
	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/driver"
	"github.com/JakeFAU/course-ingest/internal/extract"
	collyfetcher "github.com/JakeFAU/course-ingest/internal/fetcher/colly"
	"github.com/JakeFAU/course-ingest/internal/gov"
	"github.com/JakeFAU/course-ingest/internal/hash/sha256"
	"github.com/JakeFAU/course-ingest/internal/id/uuid"
	"github.com/JakeFAU/course-ingest/internal/logging"
	"github.com/JakeFAU/course-ingest/internal/orchestrator"
	"github.com/JakeFAU/course-ingest/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/course-ingest/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/course-ingest/internal/publisher/pubsub"
	"github.com/JakeFAU/course-ingest/internal/storage"
)

// Publisher is an alert publisher holding a connection.
type Publisher interface {
	course.Publisher
	Close() error
}

// Options tune what New builds.
type Options struct {
	// DryRun skips the store, archive and publisher entirely.
	DryRun bool
}

// App holds the shared services for the application.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	clock     course.Clock
	runID     string
	dryRun    bool
	store     course.Store
	blobs     storage.BlobStore
	archiver  *archive.Archiver
	publisher Publisher
	closers   []func() error
}

// New builds the services named by cfg. It fails fast when a configured
// backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	a := &App{
		cfg:    cfg,
		logger: logger.With(zap.String("run_id", runID)),
		clock:  system.New(),
		runID:  runID,
		dryRun: opts.DryRun,
	}
	if opts.DryRun {
		a.logger.Info("dry run: nothing will be stored, archived or published")
		return a, nil
	}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openArchive(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.logger.Info("services initialized",
		zap.String("store", cfg.Store.Provider),
		zap.String("archive", cfg.Archive.Provider),
		zap.String("alert", cfg.Alert.Provider),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	store, err := storage.OpenStore(ctx, a.cfg.Store, a.clock)
	if err != nil {
		return fmt.Errorf("open course store: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	return nil
}

func (a *App) openArchive(ctx context.Context) error {
	blobs, err := storage.OpenBlobStore(ctx, a.cfg.Archive)
	if errors.Is(err, storage.ErrNotConfigured) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open archive store: %w", err)
	}
	archiver, err := archive.New(blobs, sha256.New(), a.runID, a.cfg.Archive.Prefix, a.logger)
	if err != nil {
		_ = blobs.Close()
		return fmt.Errorf("init archiver: %w", err)
	}
	a.blobs, a.archiver = blobs, archiver
	a.closers = append(a.closers, blobs.Close)
	return nil
}

func (a *App) openPublisher(ctx context.Context) error {
	switch a.cfg.Alert.Provider {
	case "", "none":
		return nil
	case "memory":
		a.publisher = memorypublisher.New()
	case "pubsub":
		p, err := pubsubpublisher.Dial(ctx, a.cfg.Alert.ProjectID)
		if err != nil {
			return fmt.Errorf("open alert publisher: %w", err)
		}
		a.publisher = p
	default:
		return fmt.Errorf("alert provider %q is not supported", a.cfg.Alert.Provider)
	}
	a.closers = append(a.closers, a.publisher.Close)
	return nil
}

// Logger returns the run-scoped logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// RunID identifies this run in logs, archive paths and alerts.
func (a *App) RunID() string { return a.runID }

// Store returns the course store, or nil on a dry run.
func (a *App) Store() course.Store { return a.store }

// Publisher returns the alert publisher, or nil when alerts are off.
func (a *App) Publisher() Publisher { return a.publisher }

// PipelineOptions select the stages of a run.
type PipelineOptions struct {
	SkipSites bool
	SkipGov   bool
	SkipAlert bool
}

// Pipeline assembles the orchestrator. The returned close function releases
// the browser and must be called once the run is over.
func (a *App) Pipeline(ctx context.Context, opts PipelineOptions) (*orchestrator.Orchestrator, func() error, error) {
	cleanup := func() error { return nil }
	retry := orchestrator.NewExponentialRetryPolicy(a.cfg.Store.UpsertAttempts,
		time.Duration(a.cfg.HTTP.BackoffInitialMs)*time.Millisecond,
		time.Duration(a.cfg.HTTP.BackoffMaxMs)*time.Millisecond)
	o := orchestrator.Options{
		Store:     a.store,
		Retry:     retry,
		SiteDelay: a.cfg.SiteDelay(),
		Clock:     a.clock,
		RunID:     a.runID,
		DryRun:    a.dryRun,
		Logger:    a.logger,
	}

	if !opts.SkipSites {
		drivers, closeBrowser, err := a.drivers()
		if err != nil {
			return nil, nil, err
		}
		o.Drivers, cleanup = drivers, closeBrowser
	}
	if !opts.SkipGov {
		g, err := a.GovClient()
		switch {
		case err == nil:
			o.Gov = g
		case errors.Is(err, storage.ErrNotConfigured):
			a.logger.Info("government source disabled")
		default:
			_ = cleanup()
			return nil, nil, err
		}
	}
	if !opts.SkipAlert && a.publisher != nil && a.store != nil {
		o.Alert = alert.NewJob(a.store, a.publisher, a.cfg.Alert.TopicName, a.runID, a.logger)
	}

	orch, err := orchestrator.New(o)
	if err != nil {
		_ = cleanup()
		return nil, nil, fmt.Errorf("build orchestrator: %w", err)
	}
	return orch, cleanup, nil
}

// GovClient builds the government API client. A disabled source or a missing
// service key yields storage.ErrNotConfigured.
func (a *App) GovClient() (*gov.Client, error) {
	gc := a.cfg.Gov
	if !gc.Enabled {
		return nil, storage.ErrNotConfigured
	}
	if gc.ServiceKey == "" {
		a.logger.Warn("gov.service_key is empty; skipping the government source")
		return nil, storage.ErrNotConfigured
	}
	client, err := gov.New(gov.Config{
		BaseURL:    gc.BaseURL,
		Operation:  gc.Operation,
		ServiceKey: gc.ServiceKey,
		PageSize:   gc.PageSize,
		MaxPages:   gc.MaxPages,
		Region:     gc.Region,
		Timeout:    a.cfg.HTTPTimeout(),
		MaxRetries: a.cfg.HTTP.MaxRetries,
		UserAgent:  a.cfg.HTTP.UserAgent,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init government client: %w", err)
	}
	return client, nil
}

func (a *App) drivers() (map[course.Variant]driver.Driver, func() error, error) {
	extractor, err := ai.New(ai.Config{
		BaseURL:           a.cfg.AI.BaseURL,
		APIKey:            a.cfg.AI.APIKey,
		Model:             a.cfg.AI.Model,
		VisionModel:       a.cfg.AI.VisionModel,
		Timeout:           a.cfg.AITimeout(),
		RequestsPerSecond: a.cfg.AI.RequestsPerSecond,
		MaxRetries:        a.cfg.AI.MaxRetries,
	}, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init ai client: %w", err)
	}

	bcfg := browser.FromConfig(a.cfg.Browser)
	b, err := browser.New(bcfg, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}

	deps := extract.Deps{
		AI: extractor,
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent: a.cfg.Browser.UserAgent,
			Timeout:   a.cfg.HTTPTimeout(),
			Pacer:     ratelimit.New(ratelimit.Config{DefaultRPS: a.cfg.HTTP.HostRPS, DefaultBurst: 1}),
		}),
		Logger: a.logger.Named("extract"),
	}
	if a.archiver != nil {
		deps.Archiver = a.archiver
	}

	opener := driver.OpenerFunc(func(ctx context.Context) (driver.Page, error) {
		p, err := b.NewPage(ctx)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	logger := a.logger.Named("driver")
	drivers := map[course.Variant]driver.Driver{
		course.VariantGeneric: driver.NewGeneric(opener, extract.DefaultChain(deps), bcfg.SelectorTimeout, logger),
		course.VariantPortal:  driver.NewPortal(opener, extract.TextOnlyChain(deps), bcfg.SelectorTimeout, a.cfg.Pipeline.MaxPages, logger),
	}
	return drivers, b.Close, nil
}

// Close shuts every service down in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close service", logging.Err(err))
		}
	}
	a.closers = nil
	if a.archiver != nil {
		written, skipped := a.archiver.Stats()
		a.logger.Info("archive totals", zap.Int64("written", written), zap.Int64("skipped", skipped))
	}
}
