package metrics

import (
	"time"

	"github.com/kilianp07/evopt/core/model"
)

// PlanResult represents the outcome of a single optimization run.
type PlanResult struct {
	PlanID    string
	Status    model.Status
	Steps     int
	Vehicles  int
	Objective float64
	Cost      float64
	SolveTime time.Duration
	Nodes     int
	Err       string
	Time      time.Time
}

// MetricsSink records plan results for observability purposes.
type MetricsSink interface {
	RecordPlanResult(res PlanResult) error
}

// VehicleStateEvent is a snapshot of a vehicle.
type VehicleStateEvent struct {
	Vehicle   model.Vehicle
	Context   string
	Component string
	Time      time.Time
}

// VehicleStateRecorder records vehicle state snapshots.
type VehicleStateRecorder interface {
	RecordVehicleState(ev VehicleStateEvent) error
}

// SolverEvent captures the raw solver statistics of a run, including runs
// that produced no plan.
type SolverEvent struct {
	PlanID    string
	Nodes     int
	SolveTime time.Duration
	Time      time.Time
}

// SolverRecorder records solver statistics.
type SolverRecorder interface {
	RecordSolver(ev SolverEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlanResult(PlanResult) error { return nil }

func (NopSink) RecordVehicleState(VehicleStateEvent) error { return nil }

func (NopSink) RecordSolver(SolverEvent) error { return nil }
