package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

// netTracker counts in-flight requests from network domain events.
type netTracker struct {
	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	last     time.Time
	now      func() time.Time
}

func newNetTracker() *netTracker {
	return &netTracker{inflight: map[network.RequestID]struct{}{}, last: time.Now(), now: time.Now}
}

func (t *netTracker) observe(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.start(e.RequestID)
	case *network.EventLoadingFinished:
		t.finish(e.RequestID)
	case *network.EventLoadingFailed:
		t.finish(e.RequestID)
	}
}

func (t *netTracker) start(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[id] = struct{}{}
	t.last = t.now()
}

func (t *netTracker) finish(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, id)
	t.last = t.now()
}

// touch marks activity so a wait that starts right after an action does not
// report idle before the first request is issued.
func (t *netTracker) touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = t.now()
}

func (t *netTracker) idle(quiet time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight) == 0 && t.now().Sub(t.last) >= quiet
}

func (t *netTracker) waitIdle(ctx context.Context, budget, quiet time.Duration) error {
	deadline := time.NewTimer(budget)
	defer deadline.Stop()
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		if t.idle(quiet) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrNetworkBusy
		case <-tick.C:
		}
	}
}
