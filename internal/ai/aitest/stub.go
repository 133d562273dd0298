// Package aitest provides a deterministic course.Extractor for tests.
package aitest

import (
	"context"
	"sync"

	"github.com/JakeFAU/course-ingest/internal/course"
)

// Stub records every call and answers from the configured functions.
type Stub struct {
	TextFunc  func(text string) ([]course.Candidate, error)
	ImageFunc func(image []byte, mimeType string) ([]course.Candidate, error)

	mu     sync.Mutex
	texts  []string
	images [][]byte
}

// ExtractFromText implements course.Extractor.
func (s *Stub) ExtractFromText(_ context.Context, text string) ([]course.Candidate, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.TextFunc == nil {
		return nil, nil
	}
	return s.TextFunc(text)
}

// ExtractFromImage implements course.Extractor.
func (s *Stub) ExtractFromImage(_ context.Context, image []byte, mimeType string) ([]course.Candidate, error) {
	s.mu.Lock()
	s.images = append(s.images, append([]byte(nil), image...))
	s.mu.Unlock()
	if s.ImageFunc == nil {
		return nil, nil
	}
	return s.ImageFunc(image, mimeType)
}

// Texts returns the text inputs seen so far.
func (s *Stub) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

// Images returns the image inputs seen so far.
func (s *Stub) Images() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.images...)
}
