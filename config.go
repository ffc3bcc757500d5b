package slotline

import "time"

// Config holds configuration for the Scheduler.
type Config struct {
	// Interval is how often the driver ticks and polls lanes for work.
	Interval time.Duration

	// ShutdownTimeout is the maximum time to wait for in-flight slots
	// during graceful shutdown.
	ShutdownTimeout time.Duration

	// ParkWhenIdle cancels the ticker once every lane has drained and
	// restarts it on the next enqueue. Conserves background execution
	// budget on hosts that meter periodic wakeups.
	ParkWhenIdle bool

	// StorageKey is the single storage key the lane snapshot is
	// persisted under.
	StorageKey string

	// Debug enables debug-level tracing of every scheduler operation.
	Debug bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:        3 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		ParkWhenIdle:    false,
		StorageKey:      "slotline:lanes",
		Debug:           false,
	}
}
