package config

import (
	"fmt"

	"github.com/kilianp07/evopt/core/model"
)

// VehicleConfig describes one EV charging slot in configuration. The initial
// state of charge is given as a percentage to match the update API.
type VehicleConfig struct {
	BatteryCapacityWh   float64 `json:"battery_capacity_wh"`
	ChargerEfficiency   float64 `json:"charger_efficiency"`
	NominalPowerW       float64 `json:"nominal_power_w"`
	MinimumPowerW       float64 `json:"minimum_power_w"`
	ConsumptionKWhPerKm float64 `json:"consumption_kwh_per_km"`
	InitialSoCPercent   float64 `json:"initial_soc_percent"`
}

// Vehicle converts the config entry to a registry spec.
func (vc VehicleConfig) Vehicle(index int) model.Vehicle {
	return model.Vehicle{
		Index:               index,
		BatteryCapacityWh:   vc.BatteryCapacityWh,
		ChargerEfficiency:   vc.ChargerEfficiency,
		NominalPowerW:       vc.NominalPowerW,
		MinimumPowerW:       vc.MinimumPowerW,
		ConsumptionKWhPerKm: vc.ConsumptionKWhPerKm,
		SoC:                 vc.InitialSoCPercent / 100,
	}
}

// Validate checks the entry.
func (vc VehicleConfig) Validate(index int) error {
	if vc.InitialSoCPercent < 0 || vc.InitialSoCPercent > 100 {
		return fmt.Errorf("%w: vehicle %d: initial_soc_percent must be in [0,100], got %g",
			model.ErrInvalidInput, index, vc.InitialSoCPercent)
	}
	return vc.Vehicle(index).Validate()
}
