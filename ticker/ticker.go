// Package ticker defines the injected periodic-callback capability
// that drives the scheduler, with two adapters: Timer, a plain
// in-process time.Ticker loop, and Cron, layered on a cron runner the
// way OS-level periodic background jobs are.
//
// The contract is deliberately loose: a backend must deliver at least
// one invocation per interval, not necessarily exactly once or exactly
// on time.
package ticker

import "time"

// Handle identifies one scheduled periodic callback.
type Handle int

// Ticker is the periodic-callback capability.
// Implementations must be safe for concurrent use.
type Ticker interface {
	// Schedule invokes fn repeatedly, at least once per interval,
	// until the returned handle is cancelled.
	Schedule(interval time.Duration, fn func()) (Handle, error)

	// Cancel stops the callback identified by h. Cancelling an
	// unknown or already-cancelled handle is a no-op.
	Cancel(h Handle)
}
