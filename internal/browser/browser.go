// Package browser drives headless Chrome through chromedp and exposes tabs
// that satisfy extract.Page and the portal driver's page surface.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/course-ingest/internal/config"
)

var (
	// ErrClosed is returned when a page is used after the browser shut down.
	ErrClosed = errors.New("browser closed")
	// ErrNetworkBusy means the network never went quiet inside the idle budget.
	ErrNetworkBusy = errors.New("network did not become idle")
)

// Config bounds every wait performed against the browser.
type Config struct {
	Headless         bool
	UserAgent        string
	WindowWidth      int
	WindowHeight     int
	NavTimeout       time.Duration
	SelectorTimeout  time.Duration
	ClickTimeout     time.Duration
	PopupTimeout     time.Duration
	NetworkIdle      time.Duration
	NetworkIdleQuiet time.Duration
}

// FromConfig converts the browser section of the loaded configuration.
func FromConfig(c config.BrowserConfig) Config {
	return Config{
		Headless:         c.Headless,
		UserAgent:        c.UserAgent,
		WindowWidth:      c.WindowWidth,
		WindowHeight:     c.WindowHeight,
		NavTimeout:       time.Duration(c.NavTimeoutSec) * time.Second,
		SelectorTimeout:  time.Duration(c.SelectorTimeoutMs) * time.Millisecond,
		ClickTimeout:     time.Duration(c.ClickTimeoutMs) * time.Millisecond,
		PopupTimeout:     time.Duration(c.PopupTimeoutMs) * time.Millisecond,
		NetworkIdle:      time.Duration(c.NetworkIdleMs) * time.Millisecond,
		NetworkIdleQuiet: time.Duration(c.NetworkIdleQuietMs) * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	def := func(d *time.Duration, v time.Duration) {
		if *d <= 0 {
			*d = v
		}
	}
	def(&c.NavTimeout, 30*time.Second)
	def(&c.SelectorTimeout, 10*time.Second)
	def(&c.ClickTimeout, 5*time.Second)
	def(&c.PopupTimeout, 3*time.Second)
	def(&c.NetworkIdle, 8*time.Second)
	def(&c.NetworkIdleQuiet, 500*time.Millisecond)
	if c.WindowWidth <= 0 {
		c.WindowWidth = 1366
	}
	if c.WindowHeight <= 0 {
		c.WindowHeight = 2000
	}
	return c
}

// Browser owns one Chrome process for the whole run. Sites open and close
// their own pages; only the orchestrator closes the browser.
type Browser struct {
	cfg             Config
	logger          *zap.Logger
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
}

// New starts Chrome and verifies it responds.
func New(cfg Config, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	return &Browser{
		cfg:             cfg,
		logger:          logger.Named("browser"),
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (b *Browser) Close() error {
	if b == nil {
		return nil
	}
	b.browserCancel()
	b.allocatorCancel()
	return nil
}

// NewPage opens a new tab. The caller must Close it on every exit path.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	if b == nil || b.browserCtx.Err() != nil {
		return nil, ErrClosed
	}
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	p := newPage(tabCtx, cancel, b.cfg, b.logger)
	if err := p.run(ctx, b.cfg.NavTimeout, p.setup()); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return p, nil
}

func (p *Page) setup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if p.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(p.cfg.UserAgent).WithAcceptLanguage("ko-KR,ko;q=0.9").Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// forwardCancel cancels the chromedp run when the caller's context ends.
// Runs are derived from the tab context, not the caller's.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
