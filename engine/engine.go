// Package engine assembles a Scheduler's capabilities — lane registry,
// event bus, persistence keeper, and execution driver — into a running
// instance. It sits on top of every other package so that the leaf
// packages stay free of each other.
//
//	s, _ := slotline.New(
//		slotline.WithStorage(memory.New()),
//		slotline.WithInterval(time.Second),
//	)
//	eng, _ := engine.Build(s,
//		engine.WithLanes(lane.Config{Name: "mail", SlotSize: 100}),
//	)
//	eng.Start(ctx)
//	defer eng.Stop(ctx)
//
//	eng.Enqueue(ctx, "mail", slot.New(sendWelcome))
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slotline/slotline"
	"github.com/slotline/slotline/backoff"
	"github.com/slotline/slotline/driver"
	"github.com/slotline/slotline/event"
	"github.com/slotline/slotline/lane"
	"github.com/slotline/slotline/middleware"
	"github.com/slotline/slotline/persist"
	"github.com/slotline/slotline/slot"
	"github.com/slotline/slotline/ticker"
)

// Engine is a fully wired scheduler instance.
type Engine struct {
	scheduler *slotline.Scheduler
	config    slotline.Config
	logger    *slog.Logger

	registry *lane.Registry
	workers  *slot.Registry
	bus      *event.Bus
	keeper   *persist.Keeper
	driver   *driver.Driver

	// ownTicker is set when Build created the ticker itself, in which
	// case Stop closes it.
	ownTicker *ticker.Timer

	laneConfigs []lane.Config
	mws         []middleware.Middleware
	idle        backoff.Strategy

	mu        sync.Mutex
	started   bool
	recovered bool
}

// Option configures the engine at Build time.
type Option func(*Engine) error

// WithLanes declares lane configurations up front. Lanes not declared
// here are still created lazily on first enqueue, with no capacity or
// rate bound.
func WithLanes(configs ...lane.Config) Option {
	return func(e *Engine) error {
		e.laneConfigs = append(e.laneConfigs, configs...)
		return nil
	}
}

// WithMiddleware appends middleware to the chain wrapped around every
// worker execution. Middleware runs in registration order, inside the
// engine's own recovery layer.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) error {
		e.mws = append(e.mws, mws...)
		return nil
	}
}

// WithIdleBackoff stretches the driver's polling cadence while every
// lane is empty. Mutually redundant with ParkWhenIdle, which wins.
func WithIdleBackoff(s backoff.Strategy) Option {
	return func(e *Engine) error {
		e.idle = s
		return nil
	}
}

// WithWorkers supplies a pre-populated worker kind registry, typically
// shared between the process that enqueues and the one that recovers.
func WithWorkers(r *slot.Registry) Option {
	return func(e *Engine) error {
		e.workers = r
		return nil
	}
}

// Build wires the scheduler into a runnable Engine. The engine is
// inert until Start.
func Build(s *slotline.Scheduler, opts ...Option) (*Engine, error) {
	e := &Engine{
		scheduler: s,
		config:    s.Config(),
		logger:    s.Logger(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	if e.workers == nil {
		e.workers = slot.NewRegistry()
	}
	e.registry = lane.NewRegistry(e.laneConfigs...)
	e.bus = event.NewBus(e.logger)
	e.keeper = persist.New(s.Storage(), e.registry, e.config.StorageKey, e.logger)

	tick := s.Ticker()
	if tick == nil {
		e.ownTicker = ticker.NewTimer()
		tick = e.ownTicker
	}

	// Recovery outermost so a panicking middleware cannot take the
	// driver down; per-slot timeout innermost so user middleware sees
	// the deadline-bearing context.
	chain := make([]middleware.Middleware, 0, len(e.mws)+2)
	chain = append(chain, middleware.Recover(e.logger))
	chain = append(chain, e.mws...)
	chain = append(chain, middleware.Timeout(e.logger))

	driverOpts := []driver.Option{
		driver.WithInterval(e.config.Interval),
		driver.WithMiddleware(middleware.Chain(chain...)),
	}
	if e.config.ParkWhenIdle {
		driverOpts = append(driverOpts, driver.WithParkWhenIdle())
	} else if e.idle != nil {
		driverOpts = append(driverOpts, driver.WithIdleBackoff(e.idle))
	}
	e.driver = driver.New(e.registry, e.bus, e.keeper, tick, e.logger, driverOpts...)

	return e, nil
}

// Scheduler returns the scheduler this engine was built from.
func (e *Engine) Scheduler() *slotline.Scheduler { return e.scheduler }

// Workers returns the worker kind registry used for rehydration.
func (e *Engine) Workers() *slot.Registry { return e.workers }

// RegisterWorker registers a factory for a worker kind. Kinds must be
// registered before Start so recovery can rehydrate persisted slots.
func (e *Engine) RegisterWorker(kind string, f slot.Factory) error {
	return e.workers.Register(kind, f)
}

// recoverLocked restores the persisted checkpoint into the lane
// registry, merging around slots already enqueued in this process.
// It runs at most once per engine — before Start, or before the first
// operation that would overwrite the checkpoint, whichever comes
// first. Callers must hold e.mu.
func (e *Engine) recoverLocked(ctx context.Context) error {
	if e.recovered {
		return nil
	}
	if err := e.keeper.Load(ctx, e.workers.Resolve); err != nil {
		return fmt.Errorf("%w: %w", slotline.ErrNotRecovered, err)
	}
	e.recovered = true
	return nil
}

func (e *Engine) ensureRecovered(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recoverLocked(ctx)
}

// Start recovers persisted lane state and begins periodic execution.
// Slots enqueued before Start sit in their lanes — live workers
// intact — until the first tick.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return slotline.ErrAlreadyStarted
	}

	if err := e.recoverLocked(ctx); err != nil {
		return err
	}
	if err := e.driver.Start(ctx); err != nil {
		return err
	}
	e.started = true

	e.logger.Info("engine started",
		slog.Int("lanes", len(e.registry.Keys())),
		slog.Duration("interval", e.config.Interval),
	)
	return nil
}

// Stop halts the driver and waits for in-flight slots, bounded by the
// configured shutdown timeout when ctx carries no deadline of its own.
// Queued slots stay persisted for the next Start.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return slotline.ErrNotStarted
	}
	e.started = false
	e.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok && e.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.ShutdownTimeout)
		defer cancel()
	}

	err := e.driver.Stop(ctx)
	if e.ownTicker != nil {
		e.ownTicker.Close()
	}
	e.logger.Info("engine stopped")
	return err
}

// Enqueue appends a slot to the tail of the named lane. Returns
// ErrThrottled when the lane is at capacity, leaving all state
// untouched. A slot built with ForKind has its worker resolved from
// the kind registry here; a slot with neither worker nor kind is
// rejected with ErrNoWorker.
//
// Enqueueing before Start triggers recovery first, so the checkpoint
// this call writes includes any durable work a previous process left
// behind. Register worker kinds before the first enqueue.
func (e *Engine) Enqueue(ctx context.Context, laneKey string, s *slot.Slot) error {
	if s.Worker == nil {
		if s.Kind == "" {
			return slotline.ErrNoWorker
		}
		w, err := e.workers.Resolve(s.Kind, s.Payload)
		if err != nil {
			return err
		}
		s.Worker = w
	}

	if err := e.ensureRecovered(ctx); err != nil {
		return err
	}
	if err := e.registry.Enqueue(laneKey, s); err != nil {
		return err
	}
	e.keeper.Save(ctx)
	e.driver.Wake()

	e.trace("slot enqueued",
		slog.String("lane", laneKey),
		slog.String("slot_id", s.ID.String()),
		slog.String("kind", s.Kind),
	)
	return nil
}

// Dequeue removes and returns the head slot of the named lane without
// running it. Returns ErrLaneEmpty when nothing is queued.
func (e *Engine) Dequeue(ctx context.Context, laneKey string) (*slot.Slot, error) {
	if err := e.ensureRecovered(ctx); err != nil {
		return nil, err
	}
	s, err := e.registry.Dequeue(laneKey)
	if err != nil {
		return nil, err
	}
	e.keeper.Save(ctx)

	e.trace("slot dequeued",
		slog.String("lane", laneKey),
		slog.String("slot_id", s.ID.String()),
	)
	return s, nil
}

// TerminateRunningWorker asks the lane's currently running worker to
// stop. Termination is advisory: the worker decides how (and whether)
// to honor it. A lane with no running worker is a no-op.
func (e *Engine) TerminateRunningWorker(ctx context.Context, laneKey string) error {
	s := e.registry.Running(laneKey)
	if s == nil || s.Worker == nil {
		return nil
	}

	e.trace("terminating running worker",
		slog.String("lane", laneKey),
		slog.String("slot_id", s.ID.String()),
	)
	return s.Worker.Terminate(ctx)
}

// AddEventListener subscribes fn to one event kind on one lane and
// returns the handle used to remove it.
func (e *Engine) AddEventListener(laneKey string, kind event.Kind, fn event.Listener) event.Subscription {
	sub := e.bus.Subscribe(laneKey, kind, fn)

	e.trace("event listener added",
		slog.String("lane", laneKey),
		slog.String("kind", string(kind)),
		slog.String("listener_id", sub.ID.String()),
	)
	return sub
}

// RemoveEventListener removes a previously added listener. Removing a
// handle that is unknown or already removed is a no-op.
func (e *Engine) RemoveEventListener(sub event.Subscription) {
	e.bus.Unsubscribe(sub)
}

// Lanes returns the keys of every lane referenced so far.
func (e *Engine) Lanes() []string {
	return e.registry.Keys()
}

// Stats returns the queue depth and running state of a lane.
func (e *Engine) Stats(laneKey string) (queued int, running bool) {
	return e.registry.Stats(laneKey)
}

// trace logs at debug level when the scheduler was built with
// WithDebug. The gate keeps attribute construction off the hot path
// for production configurations.
func (e *Engine) trace(msg string, attrs ...slog.Attr) {
	if !e.config.Debug {
		return
	}
	e.logger.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}
