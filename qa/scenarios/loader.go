// Package scenarios runs YAML-defined optimization scenarios through the
// full planning pipeline and checks the outcome against declared
// expectations. Scenario files live next to the package and are picked up by
// a glob in the tests.
package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/evopt/core/forecast"
	"github.com/kilianp07/evopt/core/model"
	"github.com/kilianp07/evopt/core/optim"
)

// HorizonDef is the planning window of a scenario.
type HorizonDef struct {
	Steps     int     `yaml:"steps"`
	StepHours float64 `yaml:"step_hours"`
}

// StepRange is an inclusive range of timesteps.
type StepRange struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// VehicleDef describes one fleet vehicle. Availability defaults to plugged in
// for the whole horizon, minus the listed ranges.
type VehicleDef struct {
	BatteryCapacityWh   float64 `yaml:"battery_capacity_wh"`
	ChargerEfficiency   float64 `yaml:"charger_efficiency"`
	NominalPowerW       float64 `yaml:"nominal_power_w"`
	MinimumPowerW       float64 `yaml:"minimum_power_w"`
	ConsumptionKWhPerKm float64 `yaml:"consumption_kwh_per_km"`
	SoC                 float64 `yaml:"soc"`

	UnavailableSteps    []StepRange     `yaml:"unavailable_steps,omitempty"`
	RangeRequirementsKm map[int]float64 `yaml:"range_requirements_km,omitempty"`
}

// Spec returns the registry spec for the vehicle. Sequences are applied
// separately through the registry setters.
func (v VehicleDef) Spec() model.Vehicle {
	return model.Vehicle{
		BatteryCapacityWh:   v.BatteryCapacityWh,
		ChargerEfficiency:   v.ChargerEfficiency,
		NominalPowerW:       v.NominalPowerW,
		MinimumPowerW:       v.MinimumPowerW,
		ConsumptionKWhPerKm: v.ConsumptionKWhPerKm,
		SoC:                 v.SoC,
	}
}

func (v VehicleDef) availability(steps int) []bool {
	seq := make([]bool, steps)
	for t := range seq {
		seq[t] = true
	}
	for _, r := range v.UnavailableSteps {
		for t := r.From; t <= r.To && t < steps; t++ {
			if t >= 0 {
				seq[t] = false
			}
		}
	}
	return seq
}

func (v VehicleDef) requirements(steps int) []float64 {
	seq := make([]float64, steps)
	for t, km := range v.RangeRequirementsKm {
		if t >= 0 && t < steps {
			seq[t] = km
		}
	}
	return seq
}

// BatteryDef describes the stationary battery. A zero capacity leaves the
// plant without one.
type BatteryDef struct {
	CapacityWh    float64 `yaml:"capacity_wh"`
	MaxChargeW    float64 `yaml:"max_charge_w"`
	MaxDischargeW float64 `yaml:"max_discharge_w"`
	ChargeEff     float64 `yaml:"charge_eff"`
	DischargeEff  float64 `yaml:"discharge_eff"`
	SoCMin        float64 `yaml:"soc_min"`
	SoCMax        float64 `yaml:"soc_max"`
	SoCInit       float64 `yaml:"soc_init"`
}

// DeferrableDef describes one shiftable load.
type DeferrableDef struct {
	Name      string  `yaml:"name"`
	PowerW    float64 `yaml:"power_w"`
	EnergyWh  float64 `yaml:"energy_wh"`
	StartStep int     `yaml:"start_step"`
	EndStep   int     `yaml:"end_step"`
}

// PlantDef describes the site the fleet charges at.
type PlantDef struct {
	MaxImportW  float64         `yaml:"max_import_w"`
	MaxExportW  float64         `yaml:"max_export_w"`
	Battery     BatteryDef      `yaml:"battery,omitempty"`
	Deferrables []DeferrableDef `yaml:"deferrable_loads,omitempty"`
}

// Plant converts the definition into the optimizer's plant description.
func (p PlantDef) Plant() optim.Plant {
	out := optim.Plant{
		Grid: model.Grid{MaxImportW: p.MaxImportW, MaxExportW: p.MaxExportW},
		Battery: model.Battery{
			CapacityWh:    p.Battery.CapacityWh,
			MaxChargeW:    p.Battery.MaxChargeW,
			MaxDischargeW: p.Battery.MaxDischargeW,
			ChargeEff:     p.Battery.ChargeEff,
			DischargeEff:  p.Battery.DischargeEff,
			SoCMin:        p.Battery.SoCMin,
			SoCMax:        p.Battery.SoCMax,
			SoCInit:       p.Battery.SoCInit,
		},
	}
	for _, d := range p.Deferrables {
		out.Deferrables = append(out.Deferrables, model.DeferrableLoad{
			Name:      d.Name,
			PowerW:    d.PowerW,
			EnergyWh:  d.EnergyWh,
			StartStep: d.StartStep,
			EndStep:   d.EndStep,
		})
	}
	return out
}

// DefaultsDef is the fallback value for each forecast series the scenario
// input leaves out.
type DefaultsDef struct {
	PVW       float64 `yaml:"pv_w"`
	LoadW     float64 `yaml:"load_w"`
	BuyPrice  float64 `yaml:"buy_price"`
	SellPrice float64 `yaml:"sell_price"`
}

// Defaults converts the definition into forecast defaults.
func (d DefaultsDef) Defaults() forecast.Defaults {
	return forecast.Defaults{
		PVW:       d.PVW,
		LoadW:     d.LoadW,
		BuyPrice:  d.BuyPrice,
		SellPrice: d.SellPrice,
	}
}

// InputDef carries the explicit forecast series of one scenario. Omitted
// series fall back to the declared defaults.
type InputDef struct {
	PVW       []float64 `yaml:"pv_w,omitempty"`
	LoadW     []float64 `yaml:"load_w,omitempty"`
	BuyPrice  []float64 `yaml:"buy_price,omitempty"`
	SellPrice []float64 `yaml:"sell_price,omitempty"`
}

// Input converts the definition into an optimization request.
func (in InputDef) Input() forecast.Input {
	return forecast.Input{
		PVW:       in.PVW,
		LoadW:     in.LoadW,
		BuyPrice:  in.BuyPrice,
		SellPrice: in.SellPrice,
	}
}

// Expected declares the outcome a scenario must produce. Status is required;
// the remaining checks apply only to optimal plans.
type Expected struct {
	Status        string `yaml:"status"`
	ErrorContains string `yaml:"error_contains,omitempty"`

	// Vehicles is the number of vehicle series the plan must carry.
	Vehicles *int `yaml:"vehicles,omitempty"`
	// MaxCost bounds the energy bill of the plan from above.
	MaxCost *float64 `yaml:"max_cost,omitempty"`
	// FinalSoCMin maps a vehicle index to the minimum projected end state
	// of charge.
	FinalSoCMin map[int]float64 `yaml:"final_soc_min,omitempty"`
	// ChargeWithin restricts nonzero vehicle charging to a step window.
	ChargeWithin *StepRange `yaml:"charge_within,omitempty"`
}

// Scenario is one self-contained optimization case.
type Scenario struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Horizon     HorizonDef   `yaml:"horizon"`
	Defaults    DefaultsDef  `yaml:"defaults,omitempty"`
	Vehicles    []VehicleDef `yaml:"vehicles"`
	Plant       PlantDef     `yaml:"plant"`
	Input       InputDef     `yaml:"input,omitempty"`
	Expected    Expected     `yaml:"expected"`
}

// Load reads and decodes a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := sc.validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if sc.Name == "" {
		return fmt.Errorf("missing name")
	}
	if sc.Horizon.Steps <= 0 || sc.Horizon.StepHours <= 0 {
		return fmt.Errorf("horizon must have positive steps and step_hours")
	}
	switch model.Status(sc.Expected.Status) {
	case model.StatusOptimal, model.StatusInfeasible, model.StatusUnbounded,
		model.StatusTimedOut, model.StatusError:
	default:
		return fmt.Errorf("unknown expected status %q", sc.Expected.Status)
	}
	return nil
}
