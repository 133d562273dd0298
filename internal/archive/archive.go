// Package archive writes extraction inputs (prompt text, screenshots,
// fetched posters) to a blob store under a per-run, content-addressed path:
//
//	{prefix}/{run_id}/{site}/{kind}/{sha256}.{ext}
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"go.uber.org/zap"

	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/logging"
)

var extensions = map[string]string{
	"text/plain": "txt",
	"text/html":  "html",
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Archiver implements extract.Archiver.
type Archiver struct {
	store  course.BlobStore
	hasher course.Hasher
	runID  string
	prefix string
	logger *zap.Logger

	mu   sync.Mutex
	seen map[string]string

	written atomic.Int64
	skipped atomic.Int64
}

// New builds an Archiver for one run.
func New(store course.BlobStore, hasher course.Hasher, runID, prefix string, logger *zap.Logger) (*Archiver, error) {
	if store == nil || hasher == nil {
		return nil, fmt.Errorf("archive store and hasher are required")
	}
	if strings.TrimSpace(runID) == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		store:  store,
		hasher: hasher,
		runID:  runID,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.Named("archive"),
		seen:   make(map[string]string),
	}, nil
}

// Archive stores data and returns its URI. Identical content archived twice
// for the same site and kind in one run is written once.
func (a *Archiver) Archive(ctx context.Context, kind, site string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("archive %s: empty payload", kind)
	}
	digest, err := a.hasher.Hash(data)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", kind, err)
	}
	p := a.Path(site, kind, digest, contentType)

	a.mu.Lock()
	uri, ok := a.seen[p]
	a.mu.Unlock()
	if ok {
		a.skipped.Add(1)
		return uri, nil
	}

	uri, err = a.store.PutObject(ctx, p, contentType, bytes.NewReader(data))
	if err != nil {
		a.logger.Warn("archive write failed", zap.String("path", p), logging.Err(err))
		return "", fmt.Errorf("archive %s: %w", kind, err)
	}
	a.mu.Lock()
	a.seen[p] = uri
	a.mu.Unlock()
	a.written.Add(1)
	a.logger.Debug("artifact archived", zap.String("uri", uri), zap.Int("bytes", len(data)))
	return uri, nil
}

// Path builds the object path for an artifact.
func (a *Archiver) Path(site, kind, digest, contentType string) string {
	parts := []string{a.runID, Slug(site), Slug(kind), digest + "." + Extension(contentType)}
	if a.prefix != "" {
		parts = append([]string{a.prefix}, parts...)
	}
	return path.Join(parts...)
}

// Stats reports artifacts written and duplicates skipped.
func (a *Archiver) Stats() (written, skipped int64) {
	return a.written.Load(), a.skipped.Load()
}

// Extension maps a MIME type (parameters ignored) to a file extension.
func Extension(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	if ext, ok := extensions[strings.ToLower(strings.TrimSpace(base))]; ok {
		return ext
	}
	return "bin"
}

// Slug turns a display name into one path segment. Hangul is kept; anything
// that is not a letter or digit collapses to a single dash.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "unknown"
	}
	return out
}
