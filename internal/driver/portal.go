package driver

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/extract"
	"github.com/JakeFAU/course-ingest/internal/logging"
)

var (
	pageSizeSelectors = []string{
		"select[name=pageUnit]",
		"select[name=recordCountPerPage]",
		"select[name=pageSize]",
		"select[name=listCount]",
		"select#pageUnit",
		"select.page_size",
	}
	applyTexts = []string{"적용", "검색", "조회", "apply", "search"}
)

// Portal is the driver for the large consolidated portal: configure the
// page size once, then walk numbered pages extracting text only.
type Portal struct {
	opener      Opener
	chain       *extract.Chain
	mapper      Mapper
	waitTimeout time.Duration
	maxPages    int
	logger      *zap.Logger
}

// NewPortal builds the paginated driver. maxPages applies when the site does
// not set its own limit.
func NewPortal(opener Opener, chain *extract.Chain, waitTimeout time.Duration, maxPages int, logger *zap.Logger) *Portal {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPages <= 0 {
		maxPages = 1
	}
	return &Portal{
		opener:      opener,
		chain:       chain,
		waitTimeout: waitTimeout,
		maxPages:    maxPages,
		logger:      logger.Named("portal"),
	}
}

// Scrape implements Driver.
func (p *Portal) Scrape(ctx context.Context, site course.Site) (Result, error) {
	page, err := p.opener.OpenPage(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("open page: %w", err)
	}
	defer closePage(page, p.logger)

	if err := page.Navigate(ctx, site.URL); err != nil {
		return Result{}, err
	}
	waitForList(ctx, page, site, p.waitTimeout, p.logger)
	p.configure(ctx, page, site)

	limit := site.MaxPages
	if limit <= 0 {
		limit = p.maxPages
	}
	siteCtx := extract.WithSite(ctx, site.Name)

	var (
		all   []course.Course
		pages int
		stage = extract.StageNone
	)
	for n := 1; n <= limit; n++ {
		if ctx.Err() != nil {
			break
		}
		pages = n
		res := p.chain.Run(siteCtx, page)
		mapped := p.mapper.Map(site, res.Stage, res.Candidates)
		if len(mapped) > 0 {
			stage = res.Stage
		}
		all = append(all, mapped...)
		p.logger.Info("portal page scraped",
			zap.String("site", site.Name),
			zap.Int("page", n),
			zap.Int("courses", len(mapped)),
		)
		if n == limit {
			break
		}
		moved, err := p.gotoPage(ctx, page, n+1)
		if err != nil {
			p.logger.Info("pagination failed", zap.String("site", site.Name), zap.Int("page", n+1), logging.Err(err))
			break
		}
		if !moved {
			p.logger.Debug("no control for next page", zap.String("site", site.Name), zap.Int("page", n+1))
			break
		}
		if err := page.WaitNetworkIdle(ctx); err != nil {
			p.logger.Debug("network idle wait failed", logging.Err(err))
		}
	}
	return Result{Courses: course.Dedupe(all), Stage: stage, Pages: pages}, nil
}

// configure sets the page-size control and applies it. Every step is
// optional; a portal without the controls is scraped as-is.
func (p *Portal) configure(ctx context.Context, page Page, site course.Site) {
	if site.PageSize == "" {
		return
	}
	set := false
	for _, sel := range pageSizeSelectors {
		ok, err := page.SetSelectValue(ctx, sel, site.PageSize)
		if err != nil {
			p.logger.Debug("set page size failed", zap.String("selector", sel), logging.Err(err))
			continue
		}
		if ok {
			set = true
			break
		}
	}
	if !set {
		p.logger.Info("page size control not found", zap.String("site", site.Name))
		return
	}
	clicked, err := page.ClickText(ctx, false, applyTexts...)
	if err != nil || !clicked {
		p.logger.Info("apply control not found", zap.String("site", site.Name), logging.Err(err))
		return
	}
	if err := page.WaitNetworkIdle(ctx); err != nil {
		p.logger.Debug("network idle wait failed", logging.Err(err))
	}
}

// gotoPage clicks the control for page n: an onclick handler taking n, an
// href ending in the page number, or a link whose text is exactly n.
func (p *Portal) gotoPage(ctx context.Context, page Page, n int) (bool, error) {
	for _, sel := range PageSelectors(n) {
		ok, err := page.ClickSelector(ctx, sel)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return page.ClickText(ctx, true, strconv.Itoa(n))
}

// PageSelectors lists CSS selectors for the "go to page n" control.
func PageSelectors(n int) []string {
	return []string{
		fmt.Sprintf(`a[onclick*="(%d)"]`, n),
		fmt.Sprintf(`a[onclick*="('%d')"]`, n),
		fmt.Sprintf(`a[href$="pageIndex=%d"]`, n),
		fmt.Sprintf(`a[href$="page=%d"]`, n),
	}
}
