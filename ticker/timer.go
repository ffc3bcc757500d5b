package ticker

import (
	"fmt"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Ticker = (*Timer)(nil)

// Timer is the foreground ticker backend: each scheduled callback runs
// on its own goroutine off a time.Ticker. It only fires while the
// process is running normally; hosts that suspend timers in the
// background should use the Cron backend instead.
type Timer struct {
	mu    sync.Mutex
	next  Handle
	stops map[Handle]chan struct{}
	wg    sync.WaitGroup
}

// NewTimer creates a Timer backend.
func NewTimer() *Timer {
	return &Timer{
		stops: make(map[Handle]chan struct{}),
	}
}

// Schedule implements Ticker.
func (t *Timer) Schedule(interval time.Duration, fn func()) (Handle, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("ticker: invalid interval %v", interval)
	}

	t.mu.Lock()
	t.next++
	h := t.next
	stop := make(chan struct{})
	t.stops[h] = stop
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		tick := time.NewTicker(interval)
		defer tick.Stop()

		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				fn()
			}
		}
	}()

	return h, nil
}

// Cancel implements Ticker.
func (t *Timer) Cancel(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if stop, ok := t.stops[h]; ok {
		close(stop)
		delete(t.stops, h)
	}
}

// Close cancels every outstanding handle and waits for the callback
// goroutines to exit.
func (t *Timer) Close() {
	t.mu.Lock()
	for h, stop := range t.stops {
		close(stop)
		delete(t.stops, h)
	}
	t.mu.Unlock()

	t.wg.Wait()
}
