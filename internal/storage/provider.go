// Package storage opens the configured course store and artifact store.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/course-ingest/internal/config"
	"github.com/JakeFAU/course-ingest/internal/course"
	"github.com/JakeFAU/course-ingest/internal/storage/gcs"
	"github.com/JakeFAU/course-ingest/internal/storage/local"
	"github.com/JakeFAU/course-ingest/internal/storage/memory"
	"github.com/JakeFAU/course-ingest/internal/storage/postgres"
	"github.com/JakeFAU/course-ingest/internal/storage/sqlite"
	"github.com/JakeFAU/course-ingest/internal/storage/supabase"
)

// ErrNotConfigured is returned when the selected provider is "none".
var ErrNotConfigured = errors.New("storage provider not configured")

// OpenStore builds the course store named by cfg.Provider.
func OpenStore(ctx context.Context, cfg config.StoreConfig, clock course.Clock) (course.Store, error) {
	switch cfg.Provider {
	case "", "memory":
		return memory.NewCourseStore(clock), nil
	case "postgres":
		return nonNil(postgres.New(ctx, postgres.Config{DSN: cfg.DSN, Table: cfg.Table}))
	case "supabase":
		return nonNil(supabase.New(supabase.Config{URL: cfg.SupabaseURL, Key: cfg.SupabaseKey, Table: cfg.Table}))
	case "sqlite":
		return nonNil(sqlite.Open(ctx, cfg.SQLitePath, clock))
	case "none":
		return nil, ErrNotConfigured
	default:
		return nil, fmt.Errorf("store provider %q is not supported", cfg.Provider)
	}
}

// nonNil keeps a typed nil pointer from escaping as a non-nil interface.
func nonNil[T course.Store](s T, err error) (course.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// BlobStore is an artifact store that may hold a connection.
type BlobStore interface {
	course.BlobStore
	Close() error
}

type nopCloser struct{ course.BlobStore }

func (nopCloser) Close() error { return nil }

// OpenBlobStore builds the artifact store named by cfg.Provider. "none"
// yields ErrNotConfigured.
func OpenBlobStore(ctx context.Context, cfg config.ArchiveConfig) (BlobStore, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, ErrNotConfigured
	case "memory":
		return nopCloser{memory.NewBlobStore()}, nil
	case "local":
		s, err := local.New(local.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, err
		}
		return nopCloser{s}, nil
	case "gcs":
		s, err := gcs.Dial(ctx, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("archive provider %q is not supported", cfg.Provider)
	}
}
