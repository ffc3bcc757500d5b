package lane_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slotline/slotline"
	"github.com/slotline/slotline/lane"
	"github.com/slotline/slotline/slot"
)

func noopWorker() slot.Worker {
	return slot.WorkerFunc(func(_ context.Context) error { return nil })
}

// ---------------------------------------------------------------------------
// Lazy creation and admission
// ---------------------------------------------------------------------------

func TestRegistry_LazyLaneCreation(t *testing.T) {
	r := lane.NewRegistry()

	// First reference to an unknown key creates an idle, empty lane.
	if r.Status("fresh") != lane.StatusIdle {
		t.Errorf("Status = %q, want %q", r.Status("fresh"), lane.StatusIdle)
	}
	queued, running := r.Stats("fresh")
	if queued != 0 || running {
		t.Errorf("Stats = (%d, %v), want (0, false)", queued, running)
	}
	if r.Filled("fresh") {
		t.Error("unbounded lane should never be full")
	}
}

func TestRegistry_Throttle(t *testing.T) {
	r := lane.NewRegistry(lane.Config{Name: "bounded", SlotSize: 2})

	for i := range 2 {
		if err := r.Enqueue("bounded", slot.New(noopWorker())); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	// The third enqueue is rejected and queue contents are unchanged.
	err := r.Enqueue("bounded", slot.New(noopWorker()))
	if !errors.Is(err, slotline.ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	queued, _ := r.Stats("bounded")
	if queued != 2 {
		t.Errorf("queued = %d after rejected enqueue, want 2", queued)
	}
}

func TestRegistry_RunningWorkerCountsAgainstCapacity(t *testing.T) {
	r := lane.NewRegistry(lane.Config{Name: "bounded", SlotSize: 2})

	if err := r.Enqueue("bounded", slot.New(noopWorker())); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, ok := r.Claim("bounded"); !ok {
		t.Fatal("expected claim to succeed")
	}

	// One running + one queued = full at SlotSize 2.
	if err := r.Enqueue("bounded", slot.New(noopWorker())); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := r.Enqueue("bounded", slot.New(noopWorker())); !errors.Is(err, slotline.ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// FIFO and dequeue
// ---------------------------------------------------------------------------

func TestRegistry_DequeueRoundTrip(t *testing.T) {
	r := lane.NewRegistry()
	s := slot.New(noopWorker())

	if err := r.Enqueue("sync", s); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	got, err := r.Dequeue("sync")
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got != s {
		t.Error("dequeued slot is not the enqueued slot")
	}

	if _, err := r.Dequeue("sync"); !errors.Is(err, slotline.ErrLaneEmpty) {
		t.Errorf("expected ErrLaneEmpty, got %v", err)
	}
}

func TestRegistry_FIFOOrder(t *testing.T) {
	r := lane.NewRegistry()

	first := slot.New(noopWorker())
	second := slot.New(noopWorker())
	third := slot.New(noopWorker())
	for _, s := range []*slot.Slot{first, second, third} {
		if err := r.Enqueue("sync", s); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	for i, want := range []*slot.Slot{first, second, third} {
		got, err := r.Dequeue("sync")
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if got != want {
			t.Errorf("dequeue %d returned the wrong slot", i)
		}
	}
}

// ---------------------------------------------------------------------------
// Claim / Finish state machine
// ---------------------------------------------------------------------------

func TestRegistry_ClaimMutualExclusion(t *testing.T) {
	r := lane.NewRegistry()

	if err := r.Enqueue("sync", slot.New(noopWorker())); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := r.Enqueue("sync", slot.New(noopWorker())); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	claimed, ok := r.Claim("sync")
	if !ok {
		t.Fatal("expected first claim to succeed")
	}
	if r.Status("sync") != lane.StatusRunning {
		t.Errorf("Status = %q, want %q", r.Status("sync"), lane.StatusRunning)
	}
	if r.Running("sync") != claimed {
		t.Error("Running should return the claimed slot")
	}

	// The claimed slot left the queue, and the lane refuses a second
	// claim until Finish.
	queued, _ := r.Stats("sync")
	if queued != 1 {
		t.Errorf("queued = %d, want 1", queued)
	}
	if _, ok := r.Claim("sync"); ok {
		t.Fatal("second claim must fail while lane is running")
	}

	r.Finish("sync")
	if r.Status("sync") != lane.StatusIdle {
		t.Errorf("Status after Finish = %q, want %q", r.Status("sync"), lane.StatusIdle)
	}
	if r.Running("sync") != nil {
		t.Error("Running should be nil after Finish")
	}
	if _, ok := r.Claim("sync"); !ok {
		t.Error("claim should succeed again after Finish")
	}
}

func TestRegistry_ClaimEmptyLane(t *testing.T) {
	r := lane.NewRegistry()
	if _, ok := r.Claim("empty"); ok {
		t.Error("claim on an empty lane should fail")
	}
}

func TestRegistry_RateLimitSkipsClaim(t *testing.T) {
	r := lane.NewRegistry(lane.Config{Name: "limited", RateLimit: 1, RateBurst: 1})

	for range 2 {
		if err := r.Enqueue("limited", slot.New(noopWorker())); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	if _, ok := r.Claim("limited"); !ok {
		t.Fatal("first claim should pass the burst")
	}
	r.Finish("limited")

	// Token bucket is empty; the claim is skipped, not rejected.
	if _, ok := r.Claim("limited"); ok {
		t.Fatal("second claim should be rate-limited")
	}
	queued, _ := r.Stats("limited")
	if queued != 1 {
		t.Errorf("queued = %d, want 1 (rate limit must not drop slots)", queued)
	}
}

// ---------------------------------------------------------------------------
// Drained
// ---------------------------------------------------------------------------

func TestRegistry_Drained(t *testing.T) {
	r := lane.NewRegistry()
	if !r.Drained() {
		t.Error("empty registry should be drained")
	}

	if err := r.Enqueue("sync", slot.New(noopWorker())); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if r.Drained() {
		t.Error("registry with queued work is not drained")
	}

	if _, ok := r.Claim("sync"); !ok {
		t.Fatal("claim failed")
	}
	if r.Drained() {
		t.Error("registry with a running worker is not drained")
	}

	r.Finish("sync")
	if !r.Drained() {
		t.Error("registry should be drained after the last slot finishes")
	}
}

// ---------------------------------------------------------------------------
// Snapshot / restore
// ---------------------------------------------------------------------------

func resolveNoop(kind string, _ []byte) (slot.Worker, error) {
	return noopWorker(), nil
}

func TestRegistry_RestoreRepairsRunningLane(t *testing.T) {
	r := lane.NewRegistry()

	interrupted := slot.ForKind("sync-doc", []byte(`{"doc":1}`))
	queuedSlot := slot.ForKind("sync-doc", []byte(`{"doc":2}`))
	interrupted.Worker = noopWorker()
	queuedSlot.Worker = noopWorker()

	if err := r.Enqueue("X", interrupted); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := r.Enqueue("X", queuedSlot); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, ok := r.Claim("X"); !ok {
		t.Fatal("claim failed")
	}

	// Snapshot taken mid-run, as a crash would leave it.
	data, err := r.MarshalState()
	if err != nil {
		t.Fatalf("MarshalState: %v", err)
	}

	restored := lane.NewRegistry()
	dropped, err := restored.RestoreState(data, resolveNoop)
	if err != nil {
		t.Fatalf("RestoreState: %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}

	// The interrupted slot is back at the head, lane idle.
	if restored.Status("X") != lane.StatusIdle {
		t.Errorf("Status = %q, want %q", restored.Status("X"), lane.StatusIdle)
	}
	if restored.Running("X") != nil {
		t.Error("restored lane must have no running worker")
	}
	queued, _ := restored.Stats("X")
	if queued != 2 {
		t.Fatalf("queued = %d, want 2", queued)
	}
	head, err := restored.Dequeue("X")
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if head.ID != interrupted.ID {
		t.Errorf("head = %s, want the interrupted slot %s", head.ID, interrupted.ID)
	}
}

func TestRegistry_RestoreDropsUnresolvableSlots(t *testing.T) {
	r := lane.NewRegistry()

	// A live-worker slot with no kind cannot survive a restart.
	if err := r.Enqueue("X", slot.New(noopWorker())); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := r.Enqueue("X", slot.ForKind("known", nil)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	data, err := r.MarshalState()
	if err != nil {
		t.Fatalf("MarshalState: %v", err)
	}

	restored := lane.NewRegistry()
	dropped, err := restored.RestoreState(data, func(kind string, payload []byte) (slot.Worker, error) {
		if kind != "known" {
			return nil, errors.New("unknown kind")
		}
		return noopWorker(), nil
	})
	if err != nil {
		t.Fatalf("RestoreState: %v", err)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	queued, _ := restored.Stats("X")
	if queued != 1 {
		t.Errorf("queued = %d, want 1", queued)
	}
}

func TestRegistry_RestoreKeepsLiveSlots(t *testing.T) {
	r := lane.NewRegistry()

	// A live-worker slot with no kind, checkpointed and then restored
	// in the same process. Its snapshot record matches it by ID, so the
	// in-memory slot — live worker and all — must survive untouched.
	s := slot.New(noopWorker())
	if err := r.Enqueue("X", s); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	data, err := r.MarshalState()
	if err != nil {
		t.Fatalf("MarshalState: %v", err)
	}

	dropped, err := r.RestoreState(data, nil)
	if err != nil {
		t.Fatalf("RestoreState: %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0 (slot is live in memory)", dropped)
	}

	queued, _ := r.Stats("X")
	if queued != 1 {
		t.Fatalf("queued = %d, want 1", queued)
	}
	got, err := r.Dequeue("X")
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got != s {
		t.Error("restore replaced the live slot instead of keeping it")
	}
	if got.Worker == nil {
		t.Error("live worker lost across restore")
	}
}

func TestRegistry_RestoreMergesPersistedAheadOfLive(t *testing.T) {
	// A previous process checkpointed one durable slot.
	previous := lane.NewRegistry()
	if err := previous.Enqueue("X", slot.ForKind("k", []byte("old"))); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	data, err := previous.MarshalState()
	if err != nil {
		t.Fatalf("MarshalState: %v", err)
	}

	// The new process enqueues fresh work before restoring.
	r := lane.NewRegistry()
	fresh := slot.New(noopWorker())
	if err := r.Enqueue("X", fresh); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	dropped, err := r.RestoreState(data, resolveNoop)
	if err != nil {
		t.Fatalf("RestoreState: %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}

	// Persisted work was enqueued first, so it runs first.
	queued, _ := r.Stats("X")
	if queued != 2 {
		t.Fatalf("queued = %d, want 2", queued)
	}
	head, err := r.Dequeue("X")
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if head.Kind != "k" {
		t.Errorf("head kind = %q, want the persisted slot first", head.Kind)
	}
	next, err := r.Dequeue("X")
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if next != fresh {
		t.Error("live slot lost during merge")
	}
}

func TestRegistry_RestorePreservesConfigs(t *testing.T) {
	cfg := lane.Config{Name: "bounded", SlotSize: 1}

	r := lane.NewRegistry(cfg)
	if err := r.Enqueue("bounded", slot.ForKind("k", nil)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	data, err := r.MarshalState()
	if err != nil {
		t.Fatalf("MarshalState: %v", err)
	}

	restored := lane.NewRegistry(cfg)
	if _, err := restored.RestoreState(data, resolveNoop); err != nil {
		t.Fatalf("RestoreState: %v", err)
	}

	// Capacity still applies after restore.
	err = restored.Enqueue("bounded", slot.ForKind("k", nil))
	if !errors.Is(err, slotline.ErrThrottled) {
		t.Errorf("expected ErrThrottled after restore, got %v", err)
	}
}

func TestRegistry_RestoreRejectsGarbage(t *testing.T) {
	r := lane.NewRegistry()
	if _, err := r.RestoreState([]byte("{corrupt"), resolveNoop); err == nil {
		t.Error("expected error restoring corrupt state")
	}
}

func TestRegistry_SnapshotTimestampsSurvive(t *testing.T) {
	r := lane.NewRegistry()
	s := slot.ForKind("k", nil)
	s.EnqueuedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := r.Enqueue("X", s); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	data, err := r.MarshalState()
	if err != nil {
		t.Fatalf("MarshalState: %v", err)
	}
	restored := lane.NewRegistry()
	if _, err := restored.RestoreState(data, resolveNoop); err != nil {
		t.Fatalf("RestoreState: %v", err)
	}
	got, err := restored.Dequeue("X")
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if !got.EnqueuedAt.Equal(s.EnqueuedAt) {
		t.Errorf("EnqueuedAt = %v, want %v", got.EnqueuedAt, s.EnqueuedAt)
	}
}
