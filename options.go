package slotline

import (
	"log/slog"
	"time"

	"github.com/slotline/slotline/storage"
	"github.com/slotline/slotline/ticker"
)

// Option configures a Scheduler.
type Option func(*Scheduler) error

// Scheduler is the central handle for a slotline instance. It carries
// configuration, the logger, and the injected storage and ticker
// capabilities. The engine package wires the lane registry, event bus,
// and execution driver on top of it.
//
// Multiple independent Scheduler instances may coexist in one process;
// no state is shared between them.
type Scheduler struct {
	config  Config
	logger  *slog.Logger
	storage storage.Storage
	ticker  ticker.Ticker
}

// New creates a new Scheduler with the given options.
func New(opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Logger returns the scheduler's logger.
func (s *Scheduler) Logger() *slog.Logger { return s.logger }

// Storage returns the scheduler's storage backend, or nil if none is
// configured.
func (s *Scheduler) Storage() storage.Storage { return s.storage }

// Ticker returns the scheduler's periodic ticker backend, or nil if
// none is configured.
func (s *Scheduler) Ticker() ticker.Ticker { return s.ticker }

// Config returns a copy of the scheduler's configuration.
func (s *Scheduler) Config() Config { return s.config }

// WithInterval sets how often the driver polls lanes for work.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) error {
		s.config.Interval = d
		return nil
	}
}

// WithShutdownTimeout sets the maximum time to wait for in-flight
// slots during graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Scheduler) error {
		s.config.ShutdownTimeout = d
		return nil
	}
}

// WithParkWhenIdle cancels the ticker once every lane has drained and
// restarts it on the next enqueue.
func WithParkWhenIdle() Option {
	return func(s *Scheduler) error {
		s.config.ParkWhenIdle = true
		return nil
	}
}

// WithStorageKey sets the storage key the lane snapshot is persisted
// under. Use distinct keys when several schedulers share one backend.
func WithStorageKey(key string) Option {
	return func(s *Scheduler) error {
		s.config.StorageKey = key
		return nil
	}
}

// WithDebug enables debug-level tracing of every scheduler operation.
func WithDebug() Option {
	return func(s *Scheduler) error {
		s.config.Debug = true
		return nil
	}
}

// WithLogger sets the structured logger for the scheduler.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) error {
		s.logger = l
		return nil
	}
}

// WithStorage sets the persistence backend for queue state.
func WithStorage(st storage.Storage) Option {
	return func(s *Scheduler) error {
		s.storage = st
		return nil
	}
}

// WithTicker sets the periodic ticker backend that drives execution.
func WithTicker(t ticker.Ticker) Option {
	return func(s *Scheduler) error {
		s.ticker = t
		return nil
	}
}
