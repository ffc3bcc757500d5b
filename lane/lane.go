// Package lane implements the lane registry: the mapping from lane key
// to per-lane queue state, with lazy creation, capacity admission, and
// the idle/running state machine that guarantees at most one slot from
// a lane executes at a time.
package lane

import (
	"golang.org/x/time/rate"

	"github.com/slotline/slotline/slot"
)

// Status is the execution state of a lane.
type Status string

const (
	// StatusIdle means no slot from this lane is executing.
	StatusIdle Status = "idle"
	// StatusRunning means exactly one slot from this lane is executing.
	StatusRunning Status = "running"
)

// Config defines per-lane admission behaviour.
type Config struct {
	// Name is the lane key.
	Name string

	// SlotSize caps the lane: running worker plus queued slots may not
	// exceed it. Zero means unbounded.
	SlotSize int

	// RateLimit is the maximum sustained claims per second for this
	// lane. Zero disables rate limiting. Rate-limited lanes simply
	// skip the tick; queued slots are not rejected.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// Queue tracks the state of a single lane. All access goes through the
// Registry, which holds the lock.
type Queue struct {
	status   Status
	slots    []*slot.Slot
	running  *slot.Slot
	slotSize int
	limiter  *rate.Limiter
}

func newQueue(cfg Config) *Queue {
	q := &Queue{
		status:   StatusIdle,
		slotSize: cfg.SlotSize,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		q.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return q
}

// filled reports whether the lane is at capacity. The running worker
// counts against the cap; unbounded lanes are never full.
func (q *Queue) filled() bool {
	if q.slotSize <= 0 {
		return false
	}
	occupied := len(q.slots)
	if q.running != nil {
		occupied++
	}
	return occupied >= q.slotSize
}
