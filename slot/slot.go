// Package slot defines the unit of work scheduled by slotline: a Slot
// carrying a Worker capability, plus the worker-kind registry used to
// rehydrate persisted slots after a process restart.
package slot

import (
	"context"
	"time"

	"github.com/slotline/slotline/id"
)

// Worker is the executable behaviour of a slot.
type Worker interface {
	// Perform runs the work. It may block for a long time; the driver
	// awaits its outcome without blocking other lanes.
	Perform(ctx context.Context) error

	// Terminate asks a running worker to stop. It is advisory: the
	// driver's completion path still runs once Perform settles.
	Terminate(ctx context.Context) error
}

// WorkerFunc adapts a plain function to the Worker interface.
// Terminate is a no-op; use a full Worker implementation when the
// work needs cooperative cancellation beyond context.
type WorkerFunc func(ctx context.Context) error

// Perform implements Worker.
func (f WorkerFunc) Perform(ctx context.Context) error { return f(ctx) }

// Terminate implements Worker as a no-op.
func (WorkerFunc) Terminate(_ context.Context) error { return nil }

// CompletionFunc is invoked with the slot after a successful execution.
type CompletionFunc func(ctx context.Context, s *Slot)

// Slot is one unit of enqueued work. The scheduler treats it as
// immutable apart from its position in a lane's queue.
//
// Kind and Payload are the durable identity of the work: they are what
// gets persisted, and what the worker registry uses to rebuild a live
// Worker after a restart. A slot enqueued with only a live Worker and
// no Kind cannot be rehydrated if the process dies mid-queue.
type Slot struct {
	ID         id.SlotID     `json:"id"`
	Kind       string        `json:"kind,omitempty"`
	Payload    []byte        `json:"payload,omitempty"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
	Timeout    time.Duration `json:"timeout,omitempty"`

	Worker     Worker         `json:"-"`
	OnComplete CompletionFunc `json:"-"`
}

// Option configures a Slot.
type Option func(*Slot)

// WithOnComplete sets the completion callback, invoked after the slot
// executes successfully.
func WithOnComplete(fn CompletionFunc) Option {
	return func(s *Slot) { s.OnComplete = fn }
}

// WithKind tags a live-worker slot with a durable kind and payload so
// it can be rehydrated from persistence.
func WithKind(kind string, payload []byte) Option {
	return func(s *Slot) {
		s.Kind = kind
		s.Payload = payload
	}
}

// WithTimeout sets a per-slot execution deadline, enforced by the
// timeout middleware when installed. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Slot) { s.Timeout = d }
}

// New creates a slot around a live worker.
func New(w Worker, opts ...Option) *Slot {
	s := &Slot{
		ID:         id.NewSlotID(),
		EnqueuedAt: time.Now().UTC(),
		Worker:     w,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ForKind creates a durable slot identified by a registered worker
// kind. The live worker is resolved from the registry at enqueue or
// recovery time.
func ForKind(kind string, payload []byte, opts ...Option) *Slot {
	s := &Slot{
		ID:         id.NewSlotID(),
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
