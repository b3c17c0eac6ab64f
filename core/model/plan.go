package model

import "time"

// Status classifies the outcome of one optimization run.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusTimedOut   Status = "timed_out"
	StatusError      Status = "error"
)

// VehiclePlan carries the dispatch decided for one vehicle. ChargePowerW has
// one entry per timestep. SoC has Steps+1 entries: index 0 is the state
// before the first step, index Steps the projected end-of-plan state.
type VehiclePlan struct {
	Index        int       `json:"index"`
	ChargePowerW []float64 `json:"charge_power_w"`
	SoC          []float64 `json:"soc"`
	EnergyWh     float64   `json:"energy_wh"`
}

// DeferrablePlan is the power schedule decided for one shiftable load.
type DeferrablePlan struct {
	Name   string    `json:"name"`
	PowerW []float64 `json:"power_w"`
}

// DispatchPlan is the full result of one optimization run across the plant
// and the fleet. Power series are in W and hold one entry per timestep.
type DispatchPlan struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`
	Status      Status    `json:"status"`
	Horizon     Horizon   `json:"horizon"`

	// Objective is the solver objective, including tie-break penalties.
	// Cost is the plain energy bill over the horizon in currency units.
	Objective float64 `json:"objective"`
	Cost      float64 `json:"cost"`

	GridImportW []float64 `json:"grid_import_w"`
	GridExportW []float64 `json:"grid_export_w"`

	BatteryChargeW    []float64 `json:"battery_charge_w,omitempty"`
	BatteryDischargeW []float64 `json:"battery_discharge_w,omitempty"`
	BatterySoC        []float64 `json:"battery_soc,omitempty"`

	Deferrables []DeferrablePlan `json:"deferrable_loads,omitempty"`
	Vehicles    []VehiclePlan    `json:"vehicles"`

	// Committed reports whether vehicle SoC was advanced to the projected
	// end-of-plan values after the run.
	Committed bool `json:"committed"`

	SolveTime time.Duration `json:"solve_time_ns"`
	Nodes     int           `json:"nodes"`
}
