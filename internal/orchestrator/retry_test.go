package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "net" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return false }

func TestShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3, 0, 0)
	boom := errors.New("connection reset")
	assert.False(t, p.ShouldRetry(nil, 1))
	assert.True(t, p.ShouldRetry(boom, 1))
	assert.True(t, p.ShouldRetry(boom, 2))
	assert.False(t, p.ShouldRetry(boom, 3))
	assert.False(t, p.ShouldRetry(context.Canceled, 1))
	assert.False(t, p.ShouldRetry(context.DeadlineExceeded, 1))
	assert.True(t, p.ShouldRetry(timeoutErr{timeout: true}, 1))
	assert.False(t, p.ShouldRetry(timeoutErr{}, 1))
}

func TestNewExponentialRetryPolicyDefaultsAttempts(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(0, 0, 0)
	assert.Equal(t, 3, p.maxAttempts)
}

func TestBackoffBounds(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(10, 0, 0)
	for attempt := 1; attempt <= 8; attempt++ {
		d := p.Backoff(attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 5*time.Second)
	}
	first := p.Backoff(1)
	assert.GreaterOrEqual(t, first, 125*time.Millisecond)
	assert.LessOrEqual(t, first, 250*time.Millisecond)
}

func TestTimerPauserStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	TimerPauser{}.Pause(ctx, time.Minute)
	assert.Less(t, time.Since(start), time.Second)

	TimerPauser{}.Pause(context.Background(), 0)
}
