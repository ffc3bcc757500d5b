package lane

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/slotline/slotline/id"
	"github.com/slotline/slotline/slot"
)

// slotRecord is the durable form of a slot: metadata only. Live
// workers and completion callbacks cannot be serialized; they are
// re-supplied by kind at restore time.
type slotRecord struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind,omitempty"`
	Payload    []byte    `json:"payload,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type laneRecord struct {
	Status  Status       `json:"status"`
	Running *slotRecord  `json:"running,omitempty"`
	Slots   []slotRecord `json:"slots"`
}

type snapshot struct {
	Lanes map[string]laneRecord `json:"lanes"`
}

func record(s *slot.Slot) slotRecord {
	return slotRecord{
		ID:         s.ID.String(),
		Kind:       s.Kind,
		Payload:    s.Payload,
		EnqueuedAt: s.EnqueuedAt,
	}
}

// ResolveFunc rebuilds a live worker for a persisted slot.
type ResolveFunc func(kind string, payload []byte) (slot.Worker, error)

// MarshalState serializes the full registry — every lane's status,
// running worker, and queued slots — into one JSON document.
func (r *Registry) MarshalState() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := snapshot{Lanes: make(map[string]laneRecord, len(r.lanes))}
	for key, q := range r.lanes {
		rec := laneRecord{
			Status: q.status,
			Slots:  make([]slotRecord, 0, len(q.slots)),
		}
		if q.running != nil {
			running := record(q.running)
			rec.Running = &running
		}
		for _, s := range q.slots {
			rec.Slots = append(rec.Slots, record(s))
		}
		snap.Lanes[key] = rec
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("lane: marshal state: %w", err)
	}
	return data, nil
}

// RestoreState merges the persisted snapshot into the registry,
// repairing any lane that was mid-execution when the process last
// stopped: its running slot is reinserted at the head of the queue,
// the running worker cleared, and the status reset to idle, so an
// interrupted slot is retried from the beginning.
//
// Merging, not replacing: slots already live in memory — enqueued
// before restore, in this process — stay exactly as they are, live
// workers included. A snapshot record whose ID matches an in-memory
// slot is the persisted shadow of that slot and is skipped. Records
// with no in-memory counterpart were enqueued by an earlier process,
// so they are rehydrated via resolve and placed ahead of the in-memory
// slots, preserving enqueue order across the restart.
//
// Records that cannot be rehydrated — no kind, or an unresolvable
// kind — are dropped; the count is returned so the caller can log it.
func (r *Registry) RestoreState(data []byte, resolve ResolveFunc) (dropped int, err error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return 0, fmt.Errorf("lane: unmarshal state: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, rec := range snap.Lanes {
		q := r.getQueue(key)

		live := make(map[string]bool, len(q.slots)+1)
		for _, s := range q.slots {
			live[s.ID.String()] = true
		}
		if q.running != nil {
			live[q.running.ID.String()] = true
		}

		records := rec.Slots
		// Repair: the interrupted slot goes back to the head.
		if rec.Running != nil {
			records = append([]slotRecord{*rec.Running}, records...)
		}

		var restored []*slot.Slot
		for _, sr := range records {
			if live[sr.ID] {
				continue
			}
			s, ok := rehydrate(sr, resolve)
			if !ok {
				dropped++
				continue
			}
			restored = append(restored, s)
		}
		q.slots = append(restored, q.slots...)
	}
	return dropped, nil
}

func rehydrate(sr slotRecord, resolve ResolveFunc) (*slot.Slot, bool) {
	if sr.Kind == "" || resolve == nil {
		return nil, false
	}
	w, err := resolve(sr.Kind, sr.Payload)
	if err != nil {
		return nil, false
	}

	slotID, err := id.ParseSlotID(sr.ID)
	if err != nil {
		slotID = id.NewSlotID()
	}
	return &slot.Slot{
		ID:         slotID,
		Kind:       sr.Kind,
		Payload:    sr.Payload,
		EnqueuedAt: sr.EnqueuedAt,
		Worker:     w,
	}, true
}
