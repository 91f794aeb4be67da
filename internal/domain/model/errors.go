package model

import "errors"

// Sentinel errors for the reconciliation subsystem.
// Callers should test with errors.Is after unwrapping.
var (
	// ErrInvalidInput indicates a caller bug: negative tolerance,
	// non-finite amounts or malformed records passed into the engine.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfigWrite indicates the tolerance configuration could not
	// be persisted. Fatal to the write operation only.
	ErrConfigWrite = errors.New("config write failed")

	// ErrPersistence indicates a failed batch commit. The whole batch
	// is rolled back; no partial reconciliation state is left visible.
	ErrPersistence = errors.New("persistence failed")

	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition indicates a state change the state machine
	// does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")
)
