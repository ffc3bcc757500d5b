// Package persist checkpoints the lane registry to a storage backend
// and restores it on startup. The full registry is serialized under
// one storage key after every queue mutation; on load, lanes that were
// mid-execution are repaired so the interrupted slot is retried.
package persist

import (
	"context"
	"log/slog"

	"github.com/slotline/slotline"
	"github.com/slotline/slotline/lane"
	"github.com/slotline/slotline/storage"
)

// Keeper couples a lane registry with a storage backend.
type Keeper struct {
	storage  storage.Storage
	registry *lane.Registry
	key      string
	logger   *slog.Logger
}

// New creates a Keeper. storage may be nil, in which case Save and
// Load are no-ops and the scheduler runs purely in memory.
func New(st storage.Storage, registry *lane.Registry, key string, logger *slog.Logger) *Keeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Keeper{
		storage:  st,
		registry: registry,
		key:      key,
		logger:   logger,
	}
}

// Save checkpoints the registry. Persistence failures are non-fatal to
// in-memory scheduling: they are logged and swallowed, with recovery
// guarantees void until the next successful save.
func (k *Keeper) Save(ctx context.Context) {
	if k.storage == nil {
		return
	}

	data, err := k.registry.MarshalState()
	if err != nil {
		k.logger.Error("state checkpoint failed", slog.String("error", err.Error()))
		return
	}
	if err := k.storage.Set(ctx, k.key, string(data)); err != nil {
		k.logger.Warn("state checkpoint write failed, recovery void for this cycle",
			slog.String("key", k.key),
			slog.String("error", err.Error()),
		)
	}
}

// Load restores the registry from storage, repairing lanes that were
// mid-execution and rehydrating workers via resolve. Slots that cannot
// be rehydrated are dropped with a warning. A missing checkpoint is
// not an error.
func (k *Keeper) Load(ctx context.Context, resolve lane.ResolveFunc) error {
	if k.storage == nil {
		return nil
	}

	data, ok, err := k.storage.Get(ctx, k.key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	dropped, err := k.registry.RestoreState([]byte(data), resolve)
	if err != nil {
		return err
	}
	if dropped > 0 {
		k.logger.Warn("dropped unrecoverable slots during restore",
			slog.Int("dropped", dropped),
		)
	}
	return nil
}

// Clear removes the checkpoint from storage. Unlike Save and Load,
// which quietly no-op without a backend, Clear reports the absence:
// the caller is explicitly asking to discard durable state.
func (k *Keeper) Clear(ctx context.Context) error {
	if k.storage == nil {
		return slotline.ErrNoStorage
	}
	return k.storage.Remove(ctx, k.key)
}
