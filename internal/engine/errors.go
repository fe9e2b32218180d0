package engine

import "errors"

// Error taxonomy for engine operations. Callers match with errors.Is;
// every failure is reported to the immediate caller, never retried.
var (
	// ErrStepNotFound is returned when an operation references an unknown step id.
	ErrStepNotFound = errors.New("step not found")

	// ErrInvalidTransition is returned when a step operation is attempted
	// from a lifecycle state that forbids it.
	ErrInvalidTransition = errors.New("invalid step transition")

	// ErrInvalidState is returned when an engine-level operation is invalid
	// for the current instance status.
	ErrInvalidState = errors.New("invalid engine state")

	// ErrCyclicDependency is returned at construction when the step
	// dependency graph is not acyclic.
	ErrCyclicDependency = errors.New("cyclic step dependency")
)
