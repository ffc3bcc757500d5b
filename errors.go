package slotline

import "errors"

var (
	// Admission errors.
	ErrThrottled = errors.New("slotline: lane at capacity")
	ErrLaneEmpty = errors.New("slotline: lane has no queued slots")

	// Storage errors.
	ErrNoStorage = errors.New("slotline: no storage configured")

	// Worker errors.
	ErrNoWorker     = errors.New("slotline: slot has no worker")
	ErrUnknownKind  = errors.New("slotline: no factory registered for worker kind")
	ErrKindExists   = errors.New("slotline: worker kind already registered")
	ErrNotRecovered = errors.New("slotline: persisted lane state could not be recovered")

	// Lifecycle errors.
	ErrNotStarted     = errors.New("slotline: scheduler not started")
	ErrAlreadyStarted = errors.New("slotline: scheduler already started")
)
