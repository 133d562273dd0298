package course

import (
	"context"
	"io"
	"time"
)

// Store persists canonical courses with update-on-conflict semantics keyed
// on (institution, title).
type Store interface {
	Upsert(ctx context.Context, courses []Course) (int, error)
	// Replace deletes every course of the given institutions and inserts
	// courses in one transaction.
	Replace(ctx context.Context, institutions []string, courses []Course) (int, error)
	CreatedSince(ctx context.Context, since time.Time) ([]Course, error)
	DistinctLocations(ctx context.Context) ([]Location, error)
	Close() error
}

// Extractor turns page text or an image into raw course candidates.
type Extractor interface {
	ExtractFromText(ctx context.Context, text string) ([]Candidate, error)
	ExtractFromImage(ctx context.Context, image []byte, mimeType string) ([]Candidate, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}
