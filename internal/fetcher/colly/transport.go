package collyfetcher

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// decodingTransport advertises br and gzip and decodes the body itself, so
// responses from CDNs that only compress with brotli still reach colly as
// plain bytes.
type decodingTransport struct {
	base http.RoundTripper
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.Header.Set("Accept-Encoding", "br, gzip")

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	var decoded io.Reader
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		decoded = brotli.NewReader(resp.Body)
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("open gzip body: %w", err)
		}
		decoded = gz
	default:
		return resp, nil
	}

	resp.Body = &decodedBody{Reader: decoded, raw: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return resp, nil
}

type decodedBody struct {
	io.Reader
	raw io.ReadCloser
}

func (b *decodedBody) Close() error {
	if c, ok := b.Reader.(io.Closer); ok {
		_ = c.Close()
	}
	return b.raw.Close()
}
