// Package orchestrator runs the ingestion batch: every selected site in turn,
// then the government source, then the new-course alert.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/course-ingest/internal/alert"
	"github.com/JakeFAU/course-ingest/internal/clock/system"
	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/driver"
	"github.com/JakeFAU/course-ingest/internal/gov"
	"github.com/JakeFAU/course-ingest/internal/logging"
	"github.com/JakeFAU/course-ingest/internal/metrics"
)

// Site outcomes, also used as metric labels.
const (
	OutcomeOK         = "ok"
	OutcomeEmpty      = "empty"
	OutcomeError      = "error"
	OutcomePanic      = "panic"
	OutcomeStoreError = "store_error"
	OutcomeDryRun     = "dry_run"
)

var tracer = otel.Tracer("github.com/JakeFAU/course-ingest/internal/orchestrator")

// GovSource is the government open-data ingestion step.
type GovSource interface {
	Ingest(ctx context.Context, store gov.Upserter) (gov.Stats, error)
}

// AlertRunner publishes the new-course trigger.
type AlertRunner interface {
	Run(ctx context.Context, since time.Time) (alert.Result, error)
}

// Options configures an Orchestrator. Drivers is keyed by course.Site
// variant; a site whose variant has no driver fails. Gov and Alert are
// optional.
type Options struct {
	Drivers   map[course.Variant]driver.Driver
	Store     course.Store
	Gov       GovSource
	Alert     AlertRunner
	Pauser    Pauser
	Retry     RetryPolicy
	SiteDelay time.Duration
	Clock     course.Clock
	RunID     string
	DryRun    bool
	Logger    *zap.Logger
}

// Orchestrator drives one ingestion run.
type Orchestrator struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	current string
	done    int
	total   int
}

// New validates opts and fills defaults.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil && !opts.DryRun {
		return nil, errors.New("store is required")
	}
	if opts.Pauser == nil {
		opts.Pauser = TimerPauser{}
	}
	if opts.Retry == nil {
		opts.Retry = NewExponentialRetryPolicy(3, 0, 0)
	}
	if opts.Clock == nil {
		opts.Clock = system.Clock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Orchestrator{opts: opts, logger: opts.Logger.Named("orchestrator").With(zap.String("run_id", opts.RunID))}, nil
}

// Status reports progress for the health endpoint.
func (o *Orchestrator) Status() any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return map[string]any{"run_id": o.opts.RunID, "site": o.current, "done": o.done, "total": o.total}
}

func (o *Orchestrator) progress(site string, done, total int) {
	o.mu.Lock()
	o.current, o.done, o.total = site, done, total
	o.mu.Unlock()
}

// Run processes sites sequentially. A failing site never stops the run; the
// returned error is non-nil only when ctx ends early.
func (o *Orchestrator) Run(ctx context.Context, sites []course.Site) (Summary, error) {
	ctx, span := tracer.Start(ctx, "ingest.run", trace.WithAttributes(
		attribute.String("run_id", o.opts.RunID),
		attribute.Int("sites", len(sites)),
	))
	defer span.End()

	start := o.opts.Clock.Now()
	summary := Summary{RunID: o.opts.RunID, Started: start}
	o.logger.Info("run started", zap.Int("sites", len(sites)), zap.Bool("dry_run", o.opts.DryRun))

	for i, site := range sites {
		if err := ctx.Err(); err != nil {
			summary.Finished = o.opts.Clock.Now()
			return summary, err
		}
		if i > 0 {
			o.opts.Pauser.Pause(ctx, o.opts.SiteDelay)
		}
		o.progress(site.Name, i, len(sites))
		res := o.runSite(ctx, site)
		summary.Sites = append(summary.Sites, res)
		o.logSite(res)
	}
	o.progress("", len(sites), len(sites))

	if o.opts.Gov != nil && ctx.Err() == nil {
		summary.Gov = o.runGov(ctx)
	}
	if o.opts.Alert != nil && !o.opts.DryRun && ctx.Err() == nil {
		summary.Alert = o.runAlert(ctx, start)
	}

	summary.Finished = o.opts.Clock.Now()
	span.SetAttributes(attribute.Int("stored", summary.Stored()), attribute.Int("failed_sites", summary.Failed()))
	metrics.MarkRunCompleted(summary.Finished)
	o.logger.Info("run finished",
		zap.Int("stored", summary.Stored()),
		zap.Int("failed_sites", summary.Failed()),
		zap.Duration("elapsed", summary.Finished.Sub(start)),
	)
	return summary, ctx.Err()
}

func (o *Orchestrator) runSite(ctx context.Context, site course.Site) (res SiteResult) {
	res = SiteResult{Site: site.Name, Variant: site.Variant}
	ctx, span := tracer.Start(ctx, "ingest.site", trace.WithAttributes(
		attribute.String("site", site.Name),
		attribute.String("variant", string(site.Variant)),
	))
	began := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Outcome = OutcomePanic
			res.Err = fmt.Errorf("driver panic: %v", r)
		}
		res.Elapsed = time.Since(began)
		metrics.ObserveSiteRun(site.URL, res.Outcome, res.Elapsed)
		span.SetAttributes(attribute.String("outcome", res.Outcome), attribute.Int("stored", res.Stored))
		if res.Err != nil {
			span.SetStatus(codes.Error, res.Outcome)
		}
		span.End()
	}()

	d, ok := o.opts.Drivers[site.Variant]
	if !ok {
		res.Outcome = OutcomeError
		res.Err = fmt.Errorf("no driver for variant %q", site.Variant)
		return res
	}

	out, err := d.Scrape(ctx, site)
	res.Stage, res.Pages = out.Stage, out.Pages
	courses := course.Dedupe(out.Courses)
	res.Extracted = len(courses)
	if err != nil {
		res.Outcome = OutcomeError
		res.Err = err
		return res
	}
	metrics.ObserveExtracted(site.URL, out.Stage, len(courses))
	if len(courses) == 0 {
		res.Outcome = OutcomeEmpty
		return res
	}
	if o.opts.DryRun {
		res.Outcome = OutcomeDryRun
		return res
	}

	n, err := o.store(ctx, site, courses)
	if err != nil {
		res.Outcome = OutcomeStoreError
		res.Err = err
		metrics.ObserveUpsert("failed", len(courses))
		return res
	}
	res.Stored = n
	res.Outcome = OutcomeOK
	metrics.ObserveUpsert("ok", n)
	return res
}

// store writes one site's courses with retries. Replace sites swap out the
// institution's previous rows; an empty extraction never reaches here, so a
// broken page does not wipe them. Deletion is keyed by the stored
// (normalized) institution names, never the raw site configuration.
func (o *Orchestrator) store(ctx context.Context, site course.Site, courses []course.Course) (int, error) {
	write := func() (int, error) { return o.opts.Store.Upsert(ctx, courses) }
	if site.Replace {
		institutions := replaceSet(site, courses)
		write = func() (int, error) { return o.opts.Store.Replace(ctx, institutions, courses) }
	}
	return o.withRetry(ctx, site.Name, write)
}

func replaceSet(site course.Site, courses []course.Course) []string {
	institutions := course.Institutions(courses)
	if inst := driver.SiteInstitution(site); inst != "" && !slices.Contains(institutions, inst) {
		institutions = append(institutions, inst)
	}
	return institutions
}

func (o *Orchestrator) withRetry(ctx context.Context, label string, write func() (int, error)) (int, error) {
	for attempt := 1; ; attempt++ {
		n, err := write()
		if err == nil {
			return n, nil
		}
		if !o.opts.Retry.ShouldRetry(err, attempt) {
			return 0, fmt.Errorf("store %s after %d attempt(s): %w", label, attempt, err)
		}
		wait := o.opts.Retry.Backoff(attempt)
		o.logger.Warn("store write failed, retrying",
			zap.String("site", label), zap.Int("attempt", attempt), zap.Duration("backoff", wait), logging.Err(err))
		metrics.ObserveUpsertRetry()
		o.opts.Pauser.Pause(ctx, wait)
	}
}

// retryingUpserter routes the government source's writes through the same
// retry policy as site writes.
type retryingUpserter struct {
	o *Orchestrator
}

func (r retryingUpserter) Upsert(ctx context.Context, courses []course.Course) (int, error) {
	if r.o.opts.DryRun {
		return 0, nil
	}
	return r.o.withRetry(ctx, gov.SourceName, func() (int, error) { return r.o.opts.Store.Upsert(ctx, courses) })
}

func (o *Orchestrator) runGov(ctx context.Context) *GovResult {
	ctx, span := tracer.Start(ctx, "ingest.gov")
	defer span.End()
	began := time.Now()
	stats, err := o.opts.Gov.Ingest(ctx, retryingUpserter{o: o})
	span.SetAttributes(attribute.Int("fetched", stats.Fetched), attribute.Int("upserted", stats.Upserted))
	if err != nil {
		span.SetStatus(codes.Error, "government source failed")
	}
	res := &GovResult{Stats: stats, Err: err, Elapsed: time.Since(began)}
	fields := []zap.Field{
		zap.Int("fetched", stats.Fetched),
		zap.Int("in_region", stats.InRegion),
		zap.Int("mapped", stats.Mapped),
		zap.Int("upserted", stats.Upserted),
	}
	if err != nil {
		o.logger.Error("government source failed", append(fields, logging.Err(err))...)
		metrics.ObserveUpsert("failed", stats.Mapped-stats.Upserted)
	} else {
		o.logger.Info("government source done", fields...)
	}
	metrics.ObserveUpsert("ok", stats.Upserted)
	return res
}

func (o *Orchestrator) runAlert(ctx context.Context, since time.Time) *AlertResult {
	r, err := o.opts.Alert.Run(ctx, since)
	if err != nil {
		o.logger.Error("new-course alert failed", logging.Err(err))
	}
	return &AlertResult{Count: r.Count, MessageID: r.MessageID, Err: err}
}

func (o *Orchestrator) logSite(res SiteResult) {
	fields := []zap.Field{
		zap.String("site", res.Site),
		zap.String("outcome", res.Outcome),
		zap.String("stage", res.Stage),
		zap.Int("extracted", res.Extracted),
		zap.Int("stored", res.Stored),
		zap.Duration("elapsed", res.Elapsed),
	}
	if res.Err != nil {
		o.logger.Error("site failed", append(fields, logging.Err(res.Err))...)
		return
	}
	o.logger.Info("site done", fields...)
}
