package events

import "github.com/kilianp07/evopt/core/model"

// PlanRequested is published when an optimization request is accepted.
type PlanRequested struct {
	Vehicles int
	Steps    int
}

// PlanCompleted is published when a run produced a dispatch plan.
type PlanCompleted struct {
	Plan model.DispatchPlan
}

// PlanFailed is published when a run ends without a usable plan.
// Status carries the mapped outcome, e.g. infeasible or timed out.
type PlanFailed struct {
	Status model.Status
	Err    error
}
