package extract

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/logging"
)

// Stage names reported by the chain and used as metric labels.
const (
	StageText   = "text"
	StageImage  = "image"
	StageClick  = "click"
	StageDetail = "detail"
	StageNone   = "none"
)

const (
	// MinTextLength is the shortest page text considered text-extractable.
	MinTextLength = 500
	// MinImageArea excludes icons and buttons from the IMAGE stage.
	MinImageArea = 40000
	// MinImageSide rejects banner strips that pass the area threshold.
	MinImageSide = 100
	// MaxClickCandidates bounds the CLICK stage.
	MaxClickCandidates = 5
	// MaxDetailLinks bounds the DETAIL stage.
	MaxDetailLinks = 5
)

// Strategy is one extraction stage. An empty result with a nil error means
// the stage found nothing and the next stage should run.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, page Page) ([]course.Candidate, error)
}

// Result is the outcome of a chain run.
type Result struct {
	Stage      string
	Candidates []course.Candidate
	Elapsed    time.Duration
}

// Chain runs strategies in order and stops at the first non-empty result.
type Chain struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewChain builds a chain from strategies in the order given.
func NewChain(logger *zap.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{strategies: strategies, logger: logger.Named("extract")}
}

// Stages returns the strategy names in order.
func (c *Chain) Stages() []string {
	names := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Run never returns an error: failing stages are logged and treated as empty.
// A panicking stage is recovered the same way so the page stays usable.
func (c *Chain) Run(ctx context.Context, page Page) Result {
	start := time.Now()
	for _, s := range c.strategies {
		if ctx.Err() != nil {
			c.logger.Warn("extraction canceled", zap.String("site", SiteFrom(ctx)), logging.Err(ctx.Err()))
			break
		}
		cands, err := c.attempt(ctx, s, page)
		if err != nil {
			c.logger.Info("extraction stage failed",
				zap.String("site", SiteFrom(ctx)),
				zap.String("stage", s.Name()),
				logging.Err(err),
			)
			continue
		}
		if len(cands) > 0 {
			c.logger.Info("extraction stage succeeded",
				zap.String("site", SiteFrom(ctx)),
				zap.String("stage", s.Name()),
				zap.Int("courses", len(cands)),
			)
			return Result{Stage: s.Name(), Candidates: cands, Elapsed: time.Since(start)}
		}
		c.logger.Debug("extraction stage empty", zap.String("site", SiteFrom(ctx)), zap.String("stage", s.Name()))
	}
	return Result{Stage: StageNone, Elapsed: time.Since(start)}
}

func (c *Chain) attempt(ctx context.Context, s Strategy, page Page) (cands []course.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", s.Name(), r)
		}
	}()
	return s.Attempt(ctx, page)
}

// Deps are the collaborators shared by the strategies.
type Deps struct {
	AI       course.Extractor
	Fetcher  ImageFetcher
	Archiver Archiver
	Logger   *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// DefaultChain wires TEXT, IMAGE, CLICK and DETAIL in that order.
func DefaultChain(d Deps) *Chain {
	text := NewTextStrategy(d)
	image := NewImageStrategy(d)
	click := &ClickStrategy{deps: d, image: image}
	detail := NewDetailStrategy(d, text, image, click)
	return NewChain(d.logger(), text, image, click, detail)
}

// TextOnlyChain runs the TEXT stage alone.
func TextOnlyChain(d Deps) *Chain {
	return NewChain(d.logger(), NewTextStrategy(d))
}

type siteKey struct{}

// WithSite labels ctx with the site name used in logs and archive paths.
func WithSite(ctx context.Context, site string) context.Context {
	return context.WithValue(ctx, siteKey{}, site)
}

// SiteFrom returns the site label set by WithSite.
func SiteFrom(ctx context.Context) string {
	if s, ok := ctx.Value(siteKey{}).(string); ok {
		return s
	}
	return ""
}

func archive(ctx context.Context, d Deps, kind string, data []byte, contentType string) {
	if d.Archiver == nil || len(data) == 0 {
		return
	}
	if _, err := d.Archiver.Archive(ctx, kind, SiteFrom(ctx), data, contentType); err != nil {
		d.logger().Debug("archive failed", zap.String("kind", kind), logging.Err(err))
	}
}
