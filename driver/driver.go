// Package driver implements the execution driver: the periodic routine
// that claims the head slot of every idle lane, runs its worker through
// the middleware chain, publishes lifecycle events, and checkpoints
// queue state around each transition.
//
// Lanes are processed independently within a tick — a slow worker on
// one lane never blocks another — while each lane's idle/running state
// machine keeps its own executions strictly serialized.
package driver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/slotline/slotline"
	"github.com/slotline/slotline/backoff"
	"github.com/slotline/slotline/event"
	"github.com/slotline/slotline/lane"
	"github.com/slotline/slotline/middleware"
	"github.com/slotline/slotline/persist"
	"github.com/slotline/slotline/slot"
	"github.com/slotline/slotline/ticker"
)

// Driver runs the periodic execution loop.
type Driver struct {
	registry *lane.Registry
	bus      *event.Bus
	keeper   *persist.Keeper
	tick     ticker.Ticker
	mw       middleware.Middleware
	logger   *slog.Logger

	interval     time.Duration
	parkWhenIdle bool
	idle         backoff.Strategy

	mu          sync.Mutex
	running     bool
	parked      bool
	handle      ticker.Handle
	curInterval time.Duration
	idlePolls   int

	// wg tracks in-flight slot executions across all lanes.
	wg sync.WaitGroup
}

// Option configures a Driver.
type Option func(*Driver)

// WithInterval sets the base tick interval.
func WithInterval(d time.Duration) Option {
	return func(dr *Driver) { dr.interval = d }
}

// WithMiddleware sets the middleware chain wrapped around every
// worker's Perform call.
func WithMiddleware(mw middleware.Middleware) Option {
	return func(dr *Driver) { dr.mw = mw }
}

// WithParkWhenIdle makes the driver cancel its ticker once every lane
// has drained. Wake restarts it.
func WithParkWhenIdle() Option {
	return func(dr *Driver) { dr.parkWhenIdle = true }
}

// WithIdleBackoff stretches the gap between ticks while every lane is
// empty, snapping back to the base interval as soon as work appears.
// Ignored when the driver parks instead.
func WithIdleBackoff(s backoff.Strategy) Option {
	return func(dr *Driver) { dr.idle = s }
}

// New creates a Driver.
func New(
	registry *lane.Registry,
	bus *event.Bus,
	keeper *persist.Keeper,
	tick ticker.Ticker,
	logger *slog.Logger,
	opts ...Option,
) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Driver{
		registry: registry,
		bus:      bus,
		keeper:   keeper,
		tick:     tick,
		mw:       middleware.Chain(),
		logger:   logger,
		interval: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start schedules the periodic tick. It returns immediately.
func (d *Driver) Start(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return slotline.ErrAlreadyStarted
	}
	if err := d.schedule(d.interval); err != nil {
		return err
	}
	d.running = true
	d.parked = false
	d.idlePolls = 0

	d.logger.Info("driver started",
		slog.Duration("interval", d.interval),
		slog.Bool("park_when_idle", d.parkWhenIdle),
	)
	return nil
}

// schedule registers the tick callback at the given cadence.
// Callers must hold d.mu.
func (d *Driver) schedule(interval time.Duration) error {
	h, err := d.tick.Schedule(interval, func() {
		d.Tick(context.Background())
	})
	if err != nil {
		return err
	}
	d.handle = h
	d.curInterval = interval
	return nil
}

// Stop cancels the ticker and waits for in-flight slots to settle.
// If the context has a deadline, waiting stops when time runs out;
// abandoned workers keep running but their completion is no longer
// observed by callers of Stop.
func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	if !d.parked {
		d.tick.Cancel(d.handle)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("driver stopped gracefully")
	case <-ctx.Done():
		d.logger.Warn("driver shutdown timed out with slots in flight")
	}
	return nil
}

// Wake restarts a parked ticker, or snaps a backoff-stretched cadence
// back to the base interval. The enqueue path calls it so new work is
// noticed promptly.
func (d *Driver) Wake() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	d.idlePolls = 0

	switch {
	case d.parked:
		if err := d.schedule(d.interval); err != nil {
			d.logger.Error("wake reschedule failed", slog.String("error", err.Error()))
			return
		}
		d.parked = false
		d.logger.Debug("driver woken from park")
	case d.curInterval != d.interval:
		d.reschedule(d.interval)
	}
}

// reschedule swaps the ticker cadence. Callers must hold d.mu.
func (d *Driver) reschedule(interval time.Duration) {
	d.tick.Cancel(d.handle)
	if err := d.schedule(interval); err != nil {
		d.logger.Error("reschedule failed", slog.String("error", err.Error()))
	}
}

// Tick processes every lane once: idle lanes with queued work get
// their head slot claimed and executed on its own goroutine. The tick
// itself never blocks on a worker.
func (d *Driver) Tick(ctx context.Context) {
	claimed := 0
	for _, key := range d.registry.Keys() {
		s, ok := d.registry.Claim(key)
		if !ok {
			continue
		}
		claimed++

		// Checkpoint the dequeue-and-run-start transition before the
		// worker performs, so a crash mid-run is repaired on restart.
		d.keeper.Save(ctx)

		d.wg.Add(1)
		go d.run(ctx, key, s)
	}

	if claimed == 0 && d.registry.Drained() {
		d.onDrained()
		return
	}

	d.mu.Lock()
	d.idlePolls = 0
	if d.running && d.curInterval != d.interval {
		d.reschedule(d.interval)
	}
	d.mu.Unlock()
}

// onDrained parks or stretches the ticker after an empty tick.
func (d *Driver) onDrained() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running || d.parked {
		return
	}

	if d.parkWhenIdle {
		d.tick.Cancel(d.handle)
		d.parked = true
		d.logger.Debug("all lanes drained, driver parked")
		return
	}

	if d.idle != nil {
		d.idlePolls++
		if delay := d.idle.Delay(d.idlePolls); delay > d.curInterval {
			d.reschedule(delay)
			d.logger.Debug("all lanes drained, polling stretched",
				slog.Duration("delay", delay),
			)
		}
	}
}

// run executes one claimed slot to completion and returns its lane to
// idle. Worker failures are contained here: they are logged, surface
// as a fail event, and never propagate.
func (d *Driver) run(ctx context.Context, key string, s *slot.Slot) {
	defer d.wg.Done()

	d.bus.Publish(ctx, key, event.KindRun, s)

	err := d.mw(ctx, key, s, func(ctx context.Context) error {
		if s.Worker == nil {
			return slotline.ErrNoWorker
		}
		return s.Worker.Perform(ctx)
	})

	if err != nil {
		d.logger.Error("slot execution failed",
			slog.String("lane", key),
			slog.String("slot_id", s.ID.String()),
			slog.String("error", err.Error()),
		)
		d.bus.Publish(ctx, key, event.KindFail, s)
	} else {
		d.bus.Publish(ctx, key, event.KindSuccess, s)
		d.complete(ctx, key, s)
	}

	// Done publishes while the claim is still held: releasing the lane
	// first would let an overlapping tick claim the next slot and emit
	// its run event ahead of this done.
	d.bus.Publish(ctx, key, event.KindDone, s)
	d.registry.Finish(key)
	d.keeper.Save(ctx)
}

// complete invokes the slot's completion callback, isolating panics
// the same way event listeners are isolated.
func (d *Driver) complete(ctx context.Context, key string, s *slot.Slot) {
	if s.OnComplete == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("completion callback panicked",
				slog.String("lane", key),
				slog.String("slot_id", s.ID.String()),
				slog.Any("panic", r),
			)
		}
	}()
	s.OnComplete(ctx, s)
}
