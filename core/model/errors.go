package model

import "errors"

// Sentinel errors shared across the registry, forecast intake and planner.
// Callers are expected to classify failures with errors.Is.
var (
	// ErrInvalidInput reports a request that fails validation before any
	// state is touched.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound reports a vehicle index outside the configured fleet.
	ErrNotFound = errors.New("vehicle not found")

	// ErrInfeasible reports that no dispatch satisfies the constraint set.
	ErrInfeasible = errors.New("no feasible dispatch")

	// ErrTimedOut reports that an operation gave up waiting, either on the
	// planner gate or on the solver deadline.
	ErrTimedOut = errors.New("timed out")

	// ErrSolver reports an internal solver failure that is neither
	// infeasibility nor a timeout.
	ErrSolver = errors.New("solver failure")
)
