package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/JakeFAU/course-ingest/internal/extract"
	"github.com/JakeFAU/course-ingest/internal/logging"
)

// Page is one browser tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
	logger *zap.Logger
	net    *netTracker
}

var _ extract.Tab = (*Page)(nil)

func newPage(tabCtx context.Context, cancel context.CancelFunc, cfg Config, logger *zap.Logger) *Page {
	p := &Page{ctx: tabCtx, cancel: cancel, cfg: cfg, logger: logger, net: newNetTracker()}
	chromedp.ListenTarget(tabCtx, p.net.observe)
	return p
}

// Close closes the tab.
func (p *Page) Close() error {
	if p == nil || p.cancel == nil {
		return nil
	}
	p.cancel()
	return nil
}

func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if p.ctx.Err() != nil {
		return ErrClosed
	}
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the body element.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.net.touch()
	if err := p.run(ctx, p.cfg.NavTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Location returns the current URL.
func (p *Page) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, p.cfg.SelectorTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// HTML returns the serialized document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.cfg.SelectorTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

// ImageBoxes lists visible images with their rendered sizes. Each image is
// tagged with a data attribute so the returned selector stays unambiguous.
func (p *Page) ImageBoxes(ctx context.Context) ([]extract.ImageBox, error) {
	var raw []struct {
		Selector string  `json:"selector"`
		Src      string  `json:"src"`
		Width    float64 `json:"width"`
		Height   float64 `json:"height"`
	}
	if err := p.run(ctx, p.cfg.SelectorTimeout, chromedp.Evaluate(imageProbeJS, &raw)); err != nil {
		return nil, fmt.Errorf("probe images: %w", err)
	}
	out := make([]extract.ImageBox, 0, len(raw))
	for _, r := range raw {
		out = append(out, extract.ImageBox{Selector: r.Selector, Src: r.Src, Width: r.Width, Height: r.Height})
	}
	return out, nil
}

// ScreenshotElement captures the first element matching selector as PNG.
func (p *Page) ScreenshotElement(ctx context.Context, selector string) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.cfg.SelectorTimeout,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Screenshot(selector, &buf, chromedp.NodeVisible, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", selector, err)
	}
	return buf, nil
}

// ScreenshotFull captures the whole page as PNG.
func (p *Page) ScreenshotFull(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, p.cfg.NavTimeout, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("full screenshot: %w", err)
	}
	return buf, nil
}

// Click clicks selector and reports what changed: a new tab opened by this
// page, a modal that became visible, or a URL change. Dialogs already open
// before the click are not reported.
func (p *Page) Click(ctx context.Context, selector string) (extract.ClickOutcome, error) {
	var outcome extract.ClickOutcome
	before, _ := p.Location(ctx)
	var ignored string
	if err := p.run(ctx, p.cfg.SelectorTimeout, chromedp.Evaluate(modalProbeJS(true), &ignored)); err != nil {
		p.logger.Debug("mark open dialogs failed", logging.Err(err))
	}

	popupCtx, cancelPopup := context.WithTimeout(p.ctx, p.cfg.ClickTimeout+p.cfg.PopupTimeout)
	defer cancelPopup()
	var popups <-chan target.ID
	if c := chromedp.FromContext(p.ctx); c != nil && c.Target != nil {
		self := c.Target.TargetID
		popups = chromedp.WaitNewTarget(popupCtx, func(info *target.Info) bool {
			return info.OpenerID == self && info.Type == "page"
		})
	}

	p.net.touch()
	if err := p.clickSelector(ctx, selector); err != nil {
		return outcome, err
	}

	if popups != nil {
		timer := time.NewTimer(p.cfg.PopupTimeout)
		select {
		case id := <-popups:
			timer.Stop()
			tab, err := p.attach(ctx, id)
			if err != nil {
				p.logger.Debug("attach popup failed", logging.Err(err))
			} else {
				outcome.Popup = tab
				return outcome, nil
			}
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return outcome, ctx.Err()
		}
	}

	var modal string
	if err := p.run(ctx, p.cfg.SelectorTimeout, chromedp.Evaluate(modalProbeJS(false), &modal)); err == nil {
		outcome.Modal = modal
	}
	if after, err := p.Location(ctx); err == nil && before != "" && after != before {
		outcome.Navigated = true
	}
	return outcome, nil
}

// clickSelector performs a real mouse click and falls back to element.click()
// for nodes the mouse cannot reach (zero size, covered by overlays).
func (p *Page) clickSelector(ctx context.Context, selector string) error {
	err := p.run(ctx, p.cfg.ClickTimeout,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err == nil {
		return nil
	}
	var ok bool
	if jsErr := p.run(ctx, p.cfg.ClickTimeout, chromedp.Evaluate(jsClick(selector), &ok)); jsErr != nil {
		return fmt.Errorf("click %s: %w", selector, errors.Join(err, jsErr))
	}
	if !ok {
		return fmt.Errorf("click %s: element not found", selector)
	}
	return nil
}

func (p *Page) attach(ctx context.Context, id target.ID) (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(p.ctx, chromedp.WithTargetID(id))
	tab := newPage(tabCtx, cancel, p.cfg, p.logger)
	if err := tab.run(ctx, p.cfg.NavTimeout, tab.setup(), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		cancel()
		return nil, fmt.Errorf("attach tab %s: %w", id, err)
	}
	return tab, nil
}

// PressEscape sends the Escape key to dismiss dialogs.
func (p *Page) PressEscape(ctx context.Context) error {
	if err := p.run(ctx, p.cfg.ClickTimeout, chromedp.KeyEvent(kb.Escape)); err != nil {
		return fmt.Errorf("press escape: %w", err)
	}
	return nil
}

// WaitNetworkIdle blocks until no request has been in flight for the quiet
// period, or returns ErrNetworkBusy once the idle budget is spent.
func (p *Page) WaitNetworkIdle(ctx context.Context) error {
	return p.net.waitIdle(ctx, p.cfg.NetworkIdle, p.cfg.NetworkIdleQuiet)
}

// Back navigates one entry back in history.
func (p *Page) Back(ctx context.Context) error {
	p.net.touch()
	if err := p.run(ctx, p.cfg.NavTimeout,
		chromedp.NavigateBack(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate back: %w", err)
	}
	return nil
}

// WaitAny polls until one of selectors matches and returns it. A timeout is
// reported as false, not as an error.
func (p *Page) WaitAny(ctx context.Context, selectors []string, timeout time.Duration) (string, bool) {
	if len(selectors) == 0 {
		return "", false
	}
	if timeout <= 0 {
		timeout = p.cfg.SelectorTimeout
	}
	deadline := time.Now().Add(timeout)
	script := firstMatchJS(selectors)
	for {
		var found string
		if err := p.run(ctx, p.cfg.SelectorTimeout, chromedp.Evaluate(script, &found)); err == nil && found != "" {
			return found, true
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return "", false
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// SetSelectValue picks value in the <select> matching selector and fires a
// change event. It reports false when the element is missing.
func (p *Page) SetSelectValue(ctx context.Context, selector, value string) (bool, error) {
	var ok bool
	if err := p.run(ctx, p.cfg.ClickTimeout, chromedp.Evaluate(setSelectJS(selector, value), &ok)); err != nil {
		return false, fmt.Errorf("set %s: %w", selector, err)
	}
	return ok, nil
}

// ClickSelector clicks selector when it exists and reports whether it did.
func (p *Page) ClickSelector(ctx context.Context, selector string) (bool, error) {
	var found string
	if err := p.run(ctx, p.cfg.SelectorTimeout, chromedp.Evaluate(firstMatchJS([]string{selector}), &found)); err != nil {
		return false, fmt.Errorf("probe %s: %w", selector, err)
	}
	if found == "" {
		return false, nil
	}
	p.net.touch()
	if err := p.clickSelector(ctx, selector); err != nil {
		return false, err
	}
	return true, nil
}

// ClickText clicks the first link, button or submit input whose normalized
// text equals (exact) or contains one of texts. It reports whether anything
// was clicked.
func (p *Page) ClickText(ctx context.Context, exact bool, texts ...string) (bool, error) {
	for _, text := range texts {
		var nodes []*cdp.Node
		xpath := textXPath(text, exact)
		if err := p.run(ctx, p.cfg.SelectorTimeout,
			chromedp.Nodes(xpath, &nodes, chromedp.BySearch, chromedp.AtLeast(0)),
		); err != nil {
			return false, fmt.Errorf("find %q: %w", text, err)
		}
		if len(nodes) == 0 {
			continue
		}
		p.net.touch()
		if err := p.run(ctx, p.cfg.ClickTimeout, chromedp.MouseClickNode(nodes[0])); err != nil {
			return false, fmt.Errorf("click %q: %w", text, err)
		}
		return true, nil
	}
	return false, nil
}

func textXPath(text string, exact bool) string {
	lit := xpathLiteral(text)
	match := "contains(normalize-space(.), " + lit + ")"
	valueMatch := "contains(@value, " + lit + ")"
	if exact {
		match = "normalize-space(.)=" + lit
		valueMatch = "@value=" + lit
	}
	return "//a[" + match + "] | //button[" + match + "] | //input[(@type='submit' or @type='button') and " + valueMatch + "]"
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if part != "" {
			quoted = append(quoted, `"`+part+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
