// Package extract implements the ordered fallback chain that pulls course
// candidates out of a loaded page: TEXT, then IMAGE, then CLICK, then DETAIL.
package extract

import (
	"context"
	"errors"
)

// Page is the browser surface the strategies need. internal/browser provides
// the chromedp implementation; tests use fakes.
type Page interface {
	Location(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	ImageBoxes(ctx context.Context) ([]ImageBox, error)
	ScreenshotElement(ctx context.Context, selector string) ([]byte, error)
	ScreenshotFull(ctx context.Context) ([]byte, error)
	Click(ctx context.Context, selector string) (ClickOutcome, error)
	PressEscape(ctx context.Context) error
	WaitNetworkIdle(ctx context.Context) error
	Back(ctx context.Context) error
}

// Tab is a Page the caller owns and must close.
type Tab interface {
	Page
	Close() error
}

// ImageBox is a rendered image and its on-screen size in CSS pixels.
type ImageBox struct {
	Selector string
	Src      string
	Width    float64
	Height   float64
}

// Area returns the rendered area in square pixels.
func (b ImageBox) Area() float64 {
	return b.Width * b.Height
}

// ClickOutcome describes what a click changed.
type ClickOutcome struct {
	// Popup is a new tab opened by the click. The receiver must close it.
	Popup Tab
	// Modal is the selector of a dialog or lightbox that became visible.
	Modal string
	// Navigated reports that the page itself moved to a new URL.
	Navigated bool
}

// ErrNoImage is returned when no image passes the size threshold.
var ErrNoImage = errors.New("no qualifying image")

// ImageFetcher downloads an image referenced by an anchor.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url, referer string) ([]byte, string, error)
}

// Archiver stores extraction inputs for later audit. Implementations must not
// fail the extraction; errors are only logged.
type Archiver interface {
	Archive(ctx context.Context, kind, site string, data []byte, contentType string) (string, error)
}
