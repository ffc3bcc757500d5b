// Package slotline provides an in-process, multi-lane slot scheduler
// for Go. Callers enqueue units of work ("slots") under named lanes,
// and a periodic driver runs at most one slot per lane at a time,
// subject to a per-lane capacity limit.
//
// Slotline is designed as a library, not a service. Import it,
// configure a storage backend, register worker kinds, and enqueue
// slots as ordinary Go values.
//
// # Quick Start
//
//	s, err := slotline.New(
//	    slotline.WithInterval(3 * time.Second),
//	    slotline.WithStorage(memory.New()),
//	)
//
// Wire the subsystems with the engine package:
//
//	eng, err := engine.Build(s,
//	    engine.WithLanes(lane.Config{Name: "sync", SlotSize: 8}),
//	)
//	eng.Start(ctx)
//
// # Architecture
//
// Each lane is an independent FIFO queue with its own idle/running
// state machine. Lanes execute concurrently with respect to each
// other; within a lane, executions are strictly serialized. Queue
// state is persisted to a pluggable Storage backend after every
// mutation, and lanes interrupted mid-run are repaired on startup so
// the in-flight slot is retried rather than lost.
//
// Entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package slotline
