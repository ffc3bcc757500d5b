// Package event provides the per-lane lifecycle event bus. The driver
// publishes run, success, fail, and done events as each slot executes;
// callers subscribe per (lane, kind) and remove listeners by handle.
package event

import (
	"context"
	"log/slog"
	"sync"

	"github.com/slotline/slotline/id"
	"github.com/slotline/slotline/slot"
)

// Kind is a lifecycle event kind.
type Kind string

const (
	// KindRun fires just before a claimed slot's worker performs.
	KindRun Kind = "run"
	// KindSuccess fires after the worker performs without error.
	KindSuccess Kind = "success"
	// KindFail fires instead of success when the worker errors.
	KindFail Kind = "fail"
	// KindDone fires unconditionally after the lane returns to idle.
	KindDone Kind = "done"
)

// Kinds lists every event kind, in lifecycle order.
func Kinds() []Kind {
	return []Kind{KindRun, KindSuccess, KindFail, KindDone}
}

// Listener receives the slot an event refers to. Listeners run
// synchronously, in registration order, on the publishing lane's
// execution path; a panicking listener is logged and does not break
// sibling listeners.
type Listener func(ctx context.Context, s *slot.Slot)

// Subscription is the handle returned by Subscribe. Removal is by
// handle, not function identity, so the same function can be
// registered independently more than once and each registration
// removed on its own.
type Subscription struct {
	ID   id.ListenerID
	Lane string
	Kind Kind
}

type entry struct {
	id id.ListenerID
	fn Listener
}

// Bus is the per-lane, per-kind listener registry.
// Safe for concurrent use.
type Bus struct {
	mu        sync.Mutex
	logger    *slog.Logger
	listeners map[string]map[Kind][]entry
}

// NewBus creates an empty event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger:    logger,
		listeners: make(map[string]map[Kind][]entry),
	}
}

// Subscribe registers fn for the given lane and event kind and returns
// its removal handle.
func (b *Bus) Subscribe(laneKey string, kind Kind, fn Listener) Subscription {
	sub := Subscription{
		ID:   id.NewListenerID(),
		Lane: laneKey,
		Kind: kind,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	kinds, ok := b.listeners[laneKey]
	if !ok {
		kinds = make(map[Kind][]entry)
		b.listeners[laneKey] = kinds
	}
	kinds[kind] = append(kinds[kind], entry{id: sub.ID, fn: fn})
	return sub
}

// Unsubscribe removes the listener identified by sub. Removing a
// listener that was never added, or was already removed, is a no-op.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kinds, ok := b.listeners[sub.Lane]
	if !ok {
		return
	}
	entries := kinds[sub.Kind]
	for i, e := range entries {
		if e.id == sub.ID {
			kinds[sub.Kind] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// Publish invokes every listener registered for (laneKey, kind) in
// registration order, synchronously, with the affected slot.
func (b *Bus) Publish(ctx context.Context, laneKey string, kind Kind, s *slot.Slot) {
	b.mu.Lock()
	var entries []entry
	if kinds, ok := b.listeners[laneKey]; ok {
		entries = append(entries, kinds[kind]...)
	}
	b.mu.Unlock()

	for _, e := range entries {
		b.invoke(ctx, laneKey, kind, s, e)
	}
}

// invoke isolates a single listener call so one panicking listener
// cannot break its siblings or the driver.
func (b *Bus) invoke(ctx context.Context, laneKey string, kind Kind, s *slot.Slot, e entry) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked",
				slog.String("lane", laneKey),
				slog.String("kind", string(kind)),
				slog.String("listener_id", e.id.String()),
				slog.Any("panic", r),
			)
		}
	}()
	e.fn(ctx, s)
}

// Count returns the number of listeners registered for the lane and
// kind.
func (b *Bus) Count(laneKey string, kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if kinds, ok := b.listeners[laneKey]; ok {
		return len(kinds[kind])
	}
	return 0
}
