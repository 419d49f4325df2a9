package domain

import "errors"

// Error kinds recoverable at the intention-loop level. Plans surface
// these; the revision loop pops or retries accordingly.
var (
	// ErrPathNotFound means A* exhausted the open set without reaching
	// the goal, or a precondition (walkable, unoccupied endpoints) failed.
	ErrPathNotFound = errors.New("path not found")

	// ErrMoveFailed means the actuator refused a move, typically because
	// the target tile became occupied mid-step.
	ErrMoveFailed = errors.New("move failed")

	// ErrStopped is raised when a plan observes its cooperative stop flag.
	ErrStopped = errors.New("stopped")

	// ErrStateMismatch means a plan precondition was violated by a belief
	// update after the plan was committed.
	ErrStateMismatch = errors.New("plan state mismatch")

	// ErrNoApplicablePlan means the predicate has no matching plan in the
	// library.
	ErrNoApplicablePlan = errors.New("no plan satisfied the intention")

	// ErrTransport wraps actuator or network failures.
	ErrTransport = errors.New("transport failure")
)
