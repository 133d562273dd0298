// Package collyfetcher downloads poster images linked from course pages using
// gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// ErrNotImage is returned when the response body is not an image.
var ErrNotImage = errors.New("response is not an image")

// Pacer delays a request to url until it may be sent.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// Config controls collector behavior. Pacer is optional.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int
	Pacer     Pacer
}

// Fetcher implements extract.ImageFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type imageResult struct {
	body        []byte
	contentType string
	status      int
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true

	transport := &decodingTransport{base: newHTTPTransport()}
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
	}
}

// FetchImage downloads url sending referer, and returns the body and its
// image MIME type.
func (f *Fetcher) FetchImage(ctx context.Context, url, referer string) ([]byte, string, error) {
	var (
		result   imageResult
		fetchErr error
	)
	if f.cfg.Pacer != nil {
		if err := f.cfg.Pacer.Wait(ctx, url); err != nil {
			return nil, "", err
		}
	}
	collector := f.buildCollector()
	f.configureCollectorHooks(collector, referer, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return nil, "", err
	}
	mime, ok := imageType(result.contentType, result.body)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrNotImage, mime)
	}
	return result.body, mime, nil
}

func (f *Fetcher) buildCollector() *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	collector.AllowURLRevisit = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	if f.cfg.MaxBytes > 0 {
		collector.MaxBodySize = f.cfg.MaxBytes
	}
	collector.WithTransport(f.transport)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	referer string,
	result *imageResult,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		if referer != "" {
			r.Headers.Set("Referer", referer)
		}
		r.Headers.Set("Accept", "image/avif,image/webp,image/png,image/jpeg,image/*;q=0.8,*/*;q=0.5")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = imageResult{
			body:        append([]byte(nil), r.Body...),
			contentType: r.Headers.Get("Content-Type"),
			status:      r.StatusCode,
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("image fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("image visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("image response failed: %w", *fetchErr)
		}
		return nil
	}
}

// imageType trusts an image/* Content-Type and sniffs the body otherwise.
func imageType(header string, body []byte) (string, bool) {
	if len(body) == 0 {
		return "empty", false
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(header, ";", 2)[0]))
	if strings.HasPrefix(ct, "image/") {
		return ct, true
	}
	sniffed := http.DetectContentType(body)
	return sniffed, strings.HasPrefix(sniffed, "image/")
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
