package ticker

import (
	"fmt"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Compile-time interface check.
var _ Ticker = (*Cron)(nil)

// Cron is the background-job ticker backend, layered on a cron runner
// via "@every" descriptors. Cron schedules have second granularity:
// intervals under one second are rounded up by the runner.
type Cron struct {
	c *cronlib.Cron
}

// NewCron creates a Cron backend and starts its runner.
func NewCron() *Cron {
	c := cronlib.New()
	c.Start()
	return &Cron{c: c}
}

// Schedule implements Ticker.
func (t *Cron) Schedule(interval time.Duration, fn func()) (Handle, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("ticker: invalid interval %v", interval)
	}

	entryID, err := t.c.AddFunc(fmt.Sprintf("@every %s", interval), fn)
	if err != nil {
		return 0, fmt.Errorf("ticker: schedule: %w", err)
	}
	return Handle(entryID), nil
}

// Cancel implements Ticker.
func (t *Cron) Cancel(h Handle) {
	t.c.Remove(cronlib.EntryID(h))
}

// Close stops the cron runner. Running callbacks complete; no new
// ones fire.
func (t *Cron) Close() {
	t.c.Stop()
}
