package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/course-ingest/internal/config"
	"github.com/JakeFAU/course-ingest/internal/storage/memory"
	"github.com/JakeFAU/course-ingest/internal/storage/sqlite"
)

func TestOpenStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := OpenStore(ctx, config.StoreConfig{Provider: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.CourseStore{}, s)

	s, err = OpenStore(ctx, config.StoreConfig{Provider: "sqlite", SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.CourseStore{}, s)
	require.NoError(t, s.Close())

	_, err = OpenStore(ctx, config.StoreConfig{Provider: "none"}, nil)
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = OpenStore(ctx, config.StoreConfig{Provider: "mongo"}, nil)
	require.Error(t, err)

	_, err = OpenStore(ctx, config.StoreConfig{Provider: "postgres"}, nil)
	require.Error(t, err)
}

func TestOpenBlobStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := OpenBlobStore(ctx, config.ArchiveConfig{Provider: "none"})
	require.ErrorIs(t, err, ErrNotConfigured)

	b, err := OpenBlobStore(ctx, config.ArchiveConfig{Provider: "local", LocalDir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b, err = OpenBlobStore(ctx, config.ArchiveConfig{Provider: "memory"})
	require.NoError(t, err)
	require.NotNil(t, b)

	_, err = OpenBlobStore(ctx, config.ArchiveConfig{Provider: "s3"})
	require.Error(t, err)
}
