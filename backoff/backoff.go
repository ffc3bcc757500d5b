// Package backoff provides pluggable poll-delay strategies. The driver
// uses one to stretch the gap between ticks while every lane sits
// empty, so an idle scheduler stops burning its wakeup budget.
// All strategies are safe for concurrent use (they are stateless).
package backoff

import (
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before the next idle poll.
type Strategy interface {
	// Delay returns how long to wait before poll n (1-indexed).
	// Poll 1 is the first poll after the lanes drained.
	Delay(attempt int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always returns the same delay regardless of how long the
// lanes have been empty.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Stepped
// ──────────────────────────────────────────────────

// Stepped walks an explicit ladder of delays, one rung per empty poll,
// and holds at the last rung. Useful when the settle curve should be
// tuned to a host's wakeup budget rather than left to a formula.
type Stepped struct {
	Steps []time.Duration
}

// NewStepped creates a backoff strategy from an explicit delay ladder.
func NewStepped(steps ...time.Duration) *Stepped {
	return &Stepped{Steps: steps}
}

// Delay returns the ladder rung for the given poll, holding at the
// final rung once the ladder is exhausted. An empty ladder yields 0.
func (s *Stepped) Delay(attempt int) time.Duration {
	if len(s.Steps) == 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(s.Steps) {
		attempt = len(s.Steps)
	}
	return s.Steps[attempt-1]
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the delay each empty poll, saturating at Max.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential backoff strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

// Delay returns Initial doubled attempt-1 times, capped at Max.
func (e *Exponential) Delay(attempt int) time.Duration {
	d := e.Initial
	for n := 1; n < attempt; n++ {
		next := d * 2
		// Saturate rather than overflow on long idle stretches.
		if next <= 0 {
			break
		}
		d = next
		if e.Max > 0 && d >= e.Max {
			return e.Max
		}
	}
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter draws each delay uniformly from [0, ceiling],
// where the ceiling doubles per empty poll up to Max. Jitter keeps
// many schedulers sharing one storage backend from polling in
// lockstep.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential backoff with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

// Delay returns a random duration in [0, ceiling] for this poll.
func (e *ExponentialWithJitter) Delay(attempt int) time.Duration {
	base := Exponential{Initial: e.Initial, Max: e.Max}
	ceiling := base.Delay(attempt)
	if ceiling <= 0 {
		return 0
	}
	return rand.N(ceiling + 1)
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the default idle backoff used by the driver:
// Exponential with 1s initial and 30s max, so a freshly drained
// scheduler still notices new work quickly but a long-idle one settles
// at a slow poll.
func DefaultStrategy() Strategy {
	return NewExponential(1*time.Second, 30*time.Second)
}
