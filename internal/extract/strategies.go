package extract

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/logging"
	"github.com/JakeFAU/course-ingest/internal/sanitize"
)

// TextStrategy sends the sanitized main-content text to the AI extractor.
type TextStrategy struct {
	deps Deps
}

// NewTextStrategy returns the TEXT stage.
func NewTextStrategy(d Deps) *TextStrategy { return &TextStrategy{deps: d} }

// Name implements Strategy.
func (s *TextStrategy) Name() string { return StageText }

// Attempt implements Strategy. Pages with less than MinTextLength characters
// of main text are treated as image or script heavy and yield nothing.
func (s *TextStrategy) Attempt(ctx context.Context, page Page) ([]course.Candidate, error) {
	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	loc, _ := page.Location(ctx)
	text := MainText(raw, loc)
	if n := utf8.RuneCountInString(text); n < MinTextLength {
		s.deps.logger().Debug("page text too short", zap.String("site", SiteFrom(ctx)), zap.Int("chars", n))
		return nil, nil
	}
	prompt := sanitize.ForPrompt(text)
	archive(ctx, s.deps, "text", []byte(prompt), "text/plain; charset=utf-8")
	return s.deps.AI.ExtractFromText(ctx, prompt)
}

// ImageStrategy screenshots the largest visible image and sends it to the
// vision extractor.
type ImageStrategy struct {
	deps Deps
}

// NewImageStrategy returns the IMAGE stage.
func NewImageStrategy(d Deps) *ImageStrategy { return &ImageStrategy{deps: d} }

// Name implements Strategy.
func (s *ImageStrategy) Name() string { return StageImage }

// Attempt implements Strategy.
func (s *ImageStrategy) Attempt(ctx context.Context, page Page) ([]course.Candidate, error) {
	boxes, err := page.ImageBoxes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	best, ok := LargestImage(boxes)
	if !ok {
		return nil, nil
	}
	shot, err := page.ScreenshotElement(ctx, best.Selector)
	if err != nil {
		return nil, fmt.Errorf("screenshot image: %w", err)
	}
	return extractImage(ctx, s.deps, shot, "image/png")
}

// LargestImage picks the image with the greatest rendered area that clears
// MinImageArea and MinImageSide.
func LargestImage(boxes []ImageBox) (ImageBox, bool) {
	var best ImageBox
	found := false
	for _, b := range boxes {
		if b.Selector == "" || b.Area() < MinImageArea || b.Width < MinImageSide || b.Height < MinImageSide {
			continue
		}
		if !found || b.Area() > best.Area() {
			best = b
			found = true
		}
	}
	return best, found
}

// ClickStrategy clicks elements that may reveal a poster and extracts from
// whatever appears: a new tab, an in-page modal, or a linked image file.
type ClickStrategy struct {
	deps  Deps
	image *ImageStrategy
}

// NewClickStrategy returns the CLICK stage.
func NewClickStrategy(d Deps) *ClickStrategy {
	return &ClickStrategy{deps: d, image: NewImageStrategy(d)}
}

// Name implements Strategy.
func (s *ClickStrategy) Name() string { return StageClick }

// Attempt implements Strategy. Errors on a single candidate are collected and
// the next candidate is tried.
func (s *ClickStrategy) Attempt(ctx context.Context, page Page) ([]course.Candidate, error) {
	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	loc, _ := page.Location(ctx)

	var errs []error
	for _, el := range ClickCandidates(raw, MaxClickCandidates) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		got, err := s.tryCandidate(ctx, page, loc, el)
		if len(got) > 0 {
			return got, nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", el.Selector, err))
		}
	}
	return nil, errors.Join(errs...)
}

func (s *ClickStrategy) tryCandidate(ctx context.Context, page Page, loc string, el Element) ([]course.Candidate, error) {
	outcome, clickErr := page.Click(ctx, el.Selector)
	var errs []error
	if clickErr != nil {
		errs = append(errs, fmt.Errorf("click: %w", clickErr))
	}

	if outcome.Popup != nil {
		got, err := s.fromPopup(ctx, outcome.Popup)
		if len(got) > 0 {
			return got, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if outcome.Modal != "" {
		shot, err := page.ScreenshotElement(ctx, outcome.Modal)
		if escErr := page.PressEscape(ctx); escErr != nil {
			s.deps.logger().Debug("dismiss modal failed", logging.Err(escErr))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("screenshot modal: %w", err))
		} else {
			got, err := extractImage(ctx, s.deps, shot, "image/png")
			if len(got) > 0 {
				return got, nil
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
	}

	if outcome.Navigated {
		if err := page.Back(ctx); err != nil {
			errs = append(errs, fmt.Errorf("navigate back: %w", err))
		}
	}

	if IsImageURL(el.Href) && s.deps.Fetcher != nil {
		abs := Resolve(loc, el.Href)
		if abs == "" {
			return nil, errors.Join(append(errs, fmt.Errorf("unresolvable image href"))...)
		}
		data, mime, err := s.deps.Fetcher.FetchImage(ctx, abs, loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("fetch image: %w", err))
		} else {
			got, err := extractImage(ctx, s.deps, data, mime)
			if len(got) > 0 {
				return got, nil
			}
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	return nil, errors.Join(errs...)
}

// fromPopup runs IMAGE on the new tab and falls back to a full screenshot.
// The tab is always closed before returning.
func (s *ClickStrategy) fromPopup(ctx context.Context, tab Tab) ([]course.Candidate, error) {
	defer func() {
		if err := tab.Close(); err != nil {
			s.deps.logger().Debug("close popup failed", logging.Err(err))
		}
	}()
	if err := tab.WaitNetworkIdle(ctx); err != nil {
		s.deps.logger().Debug("popup network idle wait failed", logging.Err(err))
	}
	got, err := s.image.Attempt(ctx, tab)
	if len(got) > 0 {
		return got, nil
	}
	shot, serr := tab.ScreenshotFull(ctx)
	if serr != nil {
		return nil, errors.Join(err, fmt.Errorf("screenshot popup: %w", serr))
	}
	return extractImage(ctx, s.deps, shot, "image/png")
}

// DetailStrategy follows "view detail" links and reruns the other stages on
// the detail page.
type DetailStrategy struct {
	deps   Deps
	nested []Strategy
}

// NewDetailStrategy returns the DETAIL stage running nested on each detail
// page.
func NewDetailStrategy(d Deps, nested ...Strategy) *DetailStrategy {
	return &DetailStrategy{deps: d, nested: nested}
}

// Name implements Strategy.
func (s *DetailStrategy) Name() string { return StageDetail }

// Attempt implements Strategy. A link whose click does not change the URL is
// skipped; after an unsuccessful detail page the browser navigates back.
func (s *DetailStrategy) Attempt(ctx context.Context, page Page) ([]course.Candidate, error) {
	raw, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	origin, err := page.Location(ctx)
	if err != nil {
		return nil, fmt.Errorf("read location: %w", err)
	}

	var errs []error
	for _, link := range DetailLinks(raw, MaxDetailLinks) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		outcome, err := page.Click(ctx, link.Selector)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: click: %w", link.Selector, err))
			continue
		}
		if outcome.Popup != nil {
			got := s.runNested(ctx, outcome.Popup)
			if cerr := outcome.Popup.Close(); cerr != nil {
				s.deps.logger().Debug("close detail tab failed", logging.Err(cerr))
			}
			if len(got) > 0 {
				return got, nil
			}
			continue
		}
		if err := page.WaitNetworkIdle(ctx); err != nil {
			s.deps.logger().Debug("detail network idle wait failed", logging.Err(err))
		}
		now, err := page.Location(ctx)
		if err != nil || now == origin {
			continue
		}
		if got := s.runNested(ctx, page); len(got) > 0 {
			return got, nil
		}
		if err := page.Back(ctx); err != nil {
			return nil, errors.Join(append(errs, fmt.Errorf("navigate back: %w", err))...)
		}
		if err := page.WaitNetworkIdle(ctx); err != nil {
			s.deps.logger().Debug("back network idle wait failed", logging.Err(err))
		}
	}
	return nil, errors.Join(errs...)
}

func (s *DetailStrategy) runNested(ctx context.Context, page Page) []course.Candidate {
	for _, st := range s.nested {
		got, err := st.Attempt(ctx, page)
		if err != nil {
			s.deps.logger().Debug("detail stage failed",
				zap.String("site", SiteFrom(ctx)),
				zap.String("stage", st.Name()),
				logging.Err(err),
			)
			continue
		}
		if len(got) > 0 {
			return got
		}
	}
	return nil
}

func extractImage(ctx context.Context, d Deps, data []byte, mime string) ([]course.Candidate, error) {
	if len(data) == 0 {
		return nil, nil
	}
	archive(ctx, d, "image", data, mime)
	return d.AI.ExtractFromImage(ctx, data, mime)
}
