package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitPacesSameHost(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 20, DefaultBurst: 1})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Wait(ctx, "https://lib.example/poster.jpg"))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestWaitIsPerHost(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Wait(ctx, "https://a.example/x.png"))
	require.NoError(t, l.Wait(ctx, "https://b.example/x.png"))
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.01, DefaultBurst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://a.example/1.png"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://a.example/2.png"))
}

func TestUnlimitedByDefault(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(context.Background(), "https://a.example/"))
	}
}

func TestHost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "lib.example", Host("https://LIB.example:8443/a"))
	assert.Equal(t, "unknown", Host("::"))
	assert.Equal(t, "unknown", Host("/relative"))
}
