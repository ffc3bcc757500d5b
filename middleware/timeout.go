package middleware

import (
	"context"
	"log/slog"

	"github.com/slotline/slotline/slot"
)

// Timeout returns middleware that enforces a per-slot execution
// deadline. If the slot has a non-zero Timeout, a context.WithTimeout
// wraps the worker call. The scheduler itself never imposes a
// deadline; slots without one run until their worker settles.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, laneKey string, s *slot.Slot, next Handler) error {
		if s.Timeout > 0 {
			logger.Debug("slot timeout set",
				slog.String("lane", laneKey),
				slog.String("slot_id", s.ID.String()),
				slog.Duration("timeout", s.Timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
