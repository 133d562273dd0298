package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/course-ingest/internal/config"
	"github.com/JakeFAU/course-ingest/internal/course"
	memorypublisher "github.com/JakeFAU/course-ingest/internal/publisher/memory"
	"github.com/JakeFAU/course-ingest/internal/storage"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Store.Provider = "memory"
	cfg.Archive.Provider = "memory"
	cfg.Alert.Provider = "memory"
	cfg.Gov.Enabled = false
	return cfg
}

func TestNewWiresConfiguredServices(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(t), nil, Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.NotEmpty(t, a.RunID())
	assert.NotNil(t, a.Store())
	assert.NotNil(t, a.archiver)
	assert.IsType(t, &memorypublisher.Publisher{}, a.Publisher())
}

func TestNewDryRunOpensNothing(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(t), nil, Options{DryRun: true})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Store())
	assert.Nil(t, a.Publisher())
	assert.Nil(t, a.archiver)
}

func TestNewFailsOnUnknownProvider(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Alert.Provider = "carrier-pigeon"
	_, err := New(context.Background(), cfg, nil, Options{})
	require.Error(t, err)
}

func TestGovClient(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, nil, Options{DryRun: true})
	require.NoError(t, err)
	_, err = a.GovClient()
	require.ErrorIs(t, err, storage.ErrNotConfigured)

	cfg.Gov.Enabled = true
	cfg.Gov.ServiceKey = ""
	a, err = New(context.Background(), cfg, nil, Options{DryRun: true})
	require.NoError(t, err)
	_, err = a.GovClient()
	require.ErrorIs(t, err, storage.ErrNotConfigured)

	cfg.Gov.ServiceKey = "key"
	a, err = New(context.Background(), cfg, nil, Options{DryRun: true})
	require.NoError(t, err)
	client, err := a.GovClient()
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestPipelineWithoutSitesRunsAlert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil, Options{})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Store().Upsert(ctx, []course.Course{
		course.ApplyDefaults(course.Course{Title: "서예", Institution: "정독도서관", Region: "종로구"}),
	})
	require.NoError(t, err)

	orch, done, err := a.Pipeline(ctx, PipelineOptions{SkipSites: true, SkipGov: true})
	require.NoError(t, err)
	defer func() { require.NoError(t, done()) }()

	time.Sleep(5 * time.Millisecond)
	sum, err := orch.Run(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, sum.Alert)
	assert.Zero(t, sum.Alert.Count)
	assert.Nil(t, sum.Gov)

	pub, ok := a.Publisher().(*memorypublisher.Publisher)
	require.True(t, ok)
	assert.Empty(t, pub.Messages())
}

func TestPipelineSkipAlert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil, Options{})
	require.NoError(t, err)
	defer a.Close()

	orch, done, err := a.Pipeline(ctx, PipelineOptions{SkipSites: true, SkipGov: true, SkipAlert: true})
	require.NoError(t, err)
	defer func() { require.NoError(t, done()) }()

	sum, err := orch.Run(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, sum.Alert)
}
