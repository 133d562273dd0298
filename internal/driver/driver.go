// Package driver owns the per-site page lifecycle: it opens a tab, prepares
// the listing, runs the extraction chain and maps the candidates.
package driver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/extract"
	"github.com/JakeFAU/course-ingest/internal/logging"
)

// Page is the browser surface drivers need on top of extract.Page.
type Page interface {
	extract.Tab
	Navigate(ctx context.Context, url string) error
	WaitAny(ctx context.Context, selectors []string, timeout time.Duration) (string, bool)
	SetSelectValue(ctx context.Context, selector, value string) (bool, error)
	ClickSelector(ctx context.Context, selector string) (bool, error)
	ClickText(ctx context.Context, exact bool, texts ...string) (bool, error)
}

// Opener hands out fresh pages from a shared browser.
type Opener interface {
	OpenPage(ctx context.Context) (Page, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context) (Page, error)

// OpenPage implements Opener.
func (f OpenerFunc) OpenPage(ctx context.Context) (Page, error) { return f(ctx) }

// Result is what a driver produced for one site.
type Result struct {
	Courses []course.Course
	// Stage is the extraction stage that produced candidates, or
	// extract.StageNone.
	Stage string
	Pages int
}

// Driver scrapes one site.
type Driver interface {
	Scrape(ctx context.Context, site course.Site) (Result, error)
}

// DefaultListSelectors are the common list containers waited for after
// navigation.
var DefaultListSelectors = []string{
	"table tbody tr",
	".board_list",
	".bbs_list",
	".program_list",
	".lecture_list",
	"ul.list li",
	".list",
	"#contents",
	"main",
}

// Generic runs the full extraction chain once on the site URL.
type Generic struct {
	opener      Opener
	chain       *extract.Chain
	mapper      Mapper
	waitTimeout time.Duration
	logger      *zap.Logger
}

// NewGeneric builds the generic driver.
func NewGeneric(opener Opener, chain *extract.Chain, waitTimeout time.Duration, logger *zap.Logger) *Generic {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generic{opener: opener, chain: chain, waitTimeout: waitTimeout, logger: logger.Named("driver")}
}

// Scrape implements Driver.
func (g *Generic) Scrape(ctx context.Context, site course.Site) (Result, error) {
	page, err := g.opener.OpenPage(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("open page: %w", err)
	}
	defer closePage(page, g.logger)

	if err := page.Navigate(ctx, site.URL); err != nil {
		return Result{}, err
	}
	waitForList(ctx, page, site, g.waitTimeout, g.logger)

	res := g.chain.Run(extract.WithSite(ctx, site.Name), page)
	courses := g.mapper.Map(site, res.Stage, res.Candidates)
	g.logger.Info("site scraped",
		zap.String("site", site.Name),
		zap.String("stage", res.Stage),
		zap.Int("candidates", len(res.Candidates)),
		zap.Int("courses", len(courses)),
		zap.Duration("elapsed", res.Elapsed),
	)
	return Result{Courses: courses, Stage: res.Stage, Pages: 1}, nil
}

func waitForList(ctx context.Context, page Page, site course.Site, timeout time.Duration, logger *zap.Logger) {
	selectors := site.ListSelectors
	if len(selectors) == 0 {
		selectors = DefaultListSelectors
	}
	if sel, ok := page.WaitAny(ctx, selectors, timeout); ok {
		logger.Debug("list container ready", zap.String("site", site.Name), zap.String("selector", sel))
		return
	}
	logger.Debug("no list container appeared", zap.String("site", site.Name))
}

func closePage(page Page, logger *zap.Logger) {
	if err := page.Close(); err != nil {
		logger.Debug("close page failed", logging.Err(err))
	}
}
