package slot

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/slotline/slotline"
)

// Factory builds a live Worker from a persisted payload.
type Factory func(payload []byte) (Worker, error)

// Registry maps worker kinds to factories. It is what makes persisted
// slots survive a restart: only metadata is stored, and the registry
// re-supplies the live behaviour. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty worker registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for the given kind.
// Returns ErrKindExists if the kind is already registered.
func (r *Registry) Register(kind string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[kind]; ok {
		return fmt.Errorf("%w: %q", slotline.ErrKindExists, kind)
	}
	r.factories[kind] = f
	return nil
}

// Resolve builds a live worker for the given kind and payload.
// Returns ErrUnknownKind if no factory is registered.
func (r *Registry) Resolve(kind string, payload []byte) (Worker, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", slotline.ErrUnknownKind, kind)
	}
	return f(payload)
}

// Kinds returns all registered worker kinds.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	return kinds
}

// RegisterTyped registers a factory whose payload is JSON-unmarshalled
// into T before the typed builder runs.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterTyped[T any](r *Registry, kind string, build func(T) Worker) error {
	return r.Register(kind, func(payload []byte) (Worker, error) {
		var t T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t); err != nil {
				return nil, fmt.Errorf("unmarshal payload for kind %q: %w", kind, err)
			}
		}
		return build(t), nil
	})
}
