package lane

import (
	"sync"

	"github.com/slotline/slotline"
	"github.com/slotline/slotline/slot"
)

// Registry is the mapping from lane key to queue state. Lanes are
// created lazily on first reference and live for the registry's
// lifetime. Safe for concurrent use; a single lock serializes all
// queue mutations, while worker execution happens outside it.
type Registry struct {
	mu      sync.Mutex
	lanes   map[string]*Queue
	configs map[string]Config
}

// NewRegistry creates a Registry with the given lane configurations.
// Lanes not listed are unbounded and unlimited.
func NewRegistry(configs ...Config) *Registry {
	r := &Registry{
		lanes:   make(map[string]*Queue),
		configs: make(map[string]Config, len(configs)),
	}
	for _, cfg := range configs {
		r.configs[cfg.Name] = cfg
	}
	return r
}

// getQueue returns the queue for key, creating it on first reference.
// Callers must hold r.mu.
func (r *Registry) getQueue(key string) *Queue {
	q, ok := r.lanes[key]
	if !ok {
		q = newQueue(r.configs[key])
		r.lanes[key] = q
	}
	return q
}

// Enqueue appends s to the tail of the lane's queue.
// Returns ErrThrottled without mutating state when the lane is at
// capacity.
func (r *Registry) Enqueue(key string, s *slot.Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.getQueue(key)
	if q.filled() {
		return slotline.ErrThrottled
	}
	q.slots = append(q.slots, s)
	return nil
}

// Filled reports whether the lane is at capacity.
func (r *Registry) Filled(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getQueue(key).filled()
}

// Dequeue removes and returns the head of the lane's queue.
// Returns ErrLaneEmpty when nothing is queued. The execution driver is
// the normal caller, and only claims from idle lanes; external callers
// using Dequeue directly take on that responsibility.
func (r *Registry) Dequeue(key string) (*slot.Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.getQueue(key)
	if len(q.slots) == 0 {
		return nil, slotline.ErrLaneEmpty
	}
	s := q.slots[0]
	q.slots = q.slots[1:]
	return s, nil
}

// Claim atomically dequeues the head slot of an idle lane and marks
// the lane running. Returns false when the lane is already running,
// has nothing queued, or is rate-limited this tick.
func (r *Registry) Claim(key string) (*slot.Slot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.getQueue(key)
	if q.status != StatusIdle || len(q.slots) == 0 {
		return nil, false
	}
	if q.limiter != nil && !q.limiter.Allow() {
		return nil, false
	}

	s := q.slots[0]
	q.slots = q.slots[1:]
	q.running = s
	q.status = StatusRunning
	return s, true
}

// Finish marks the lane idle and clears its running worker. It is the
// unconditional completion path after a claimed slot settles.
func (r *Registry) Finish(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.getQueue(key)
	q.running = nil
	q.status = StatusIdle
}

// Running returns the slot currently executing on the lane, or nil.
func (r *Registry) Running(key string) *slot.Slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getQueue(key).running
}

// Status returns the lane's current state.
func (r *Registry) Status(key string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getQueue(key).status
}

// Stats returns the number of queued slots and whether a worker is
// running for the lane.
func (r *Registry) Stats(key string) (queued int, running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.getQueue(key)
	return len(q.slots), q.running != nil
}

// Keys returns all lane keys referenced so far.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.lanes))
	for key := range r.lanes {
		keys = append(keys, key)
	}
	return keys
}

// Drained reports whether every lane is idle with an empty queue.
// The driver uses this to park the ticker.
func (r *Registry) Drained() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, q := range r.lanes {
		if q.running != nil || len(q.slots) > 0 {
			return false
		}
	}
	return true
}
