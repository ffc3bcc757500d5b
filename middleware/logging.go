package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/slotline/slotline/slot"
)

// Logging returns middleware that logs slot start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, laneKey string, s *slot.Slot, next Handler) error {
		logger.Info("slot started",
			slog.String("lane", laneKey),
			slog.String("slot_id", s.ID.String()),
			slog.String("kind", s.Kind),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("slot failed",
				slog.String("lane", laneKey),
				slog.String("slot_id", s.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("slot completed",
				slog.String("lane", laneKey),
				slog.String("slot_id", s.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
