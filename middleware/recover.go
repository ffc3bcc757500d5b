package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/slotline/slotline/slot"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to errors and logged with a stack trace,
// so a panicking worker surfaces as a fail event instead of crashing
// the driver.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, laneKey string, s *slot.Slot, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("worker panicked",
					slog.String("lane", laneKey),
					slog.String("slot_id", s.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in lane %s: %v", laneKey, r)
			}
		}()
		return next(ctx)
	}
}
