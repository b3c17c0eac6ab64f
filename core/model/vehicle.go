package model

import "fmt"

// Vehicle describes one EV charging slot: static charging characteristics
// from configuration plus the mutable state tracked by the registry. SoC is
// a fraction in [0,1]. Availability and RangeRequirementKm are per-timestep
// series whose length always equals the configured horizon.
type Vehicle struct {
	Index int

	BatteryCapacityWh   float64
	ChargerEfficiency   float64
	NominalPowerW       float64
	MinimumPowerW       float64
	ConsumptionKWhPerKm float64

	SoC                float64
	Availability       []bool
	RangeRequirementKm []float64
}

// Validate checks the static charging characteristics.
func (v Vehicle) Validate() error {
	if v.BatteryCapacityWh <= 0 {
		return fmt.Errorf("%w: vehicle %d: battery capacity must be positive, got %g", ErrInvalidInput, v.Index, v.BatteryCapacityWh)
	}
	if v.ChargerEfficiency <= 0 || v.ChargerEfficiency > 1 {
		return fmt.Errorf("%w: vehicle %d: charger efficiency must be in (0,1], got %g", ErrInvalidInput, v.Index, v.ChargerEfficiency)
	}
	if v.NominalPowerW <= 0 {
		return fmt.Errorf("%w: vehicle %d: nominal charging power must be positive, got %g", ErrInvalidInput, v.Index, v.NominalPowerW)
	}
	if v.MinimumPowerW < 0 || v.MinimumPowerW > v.NominalPowerW {
		return fmt.Errorf("%w: vehicle %d: minimum charging power must be in [0, nominal], got %g", ErrInvalidInput, v.Index, v.MinimumPowerW)
	}
	if v.ConsumptionKWhPerKm <= 0 {
		return fmt.Errorf("%w: vehicle %d: consumption must be positive, got %g", ErrInvalidInput, v.Index, v.ConsumptionKWhPerKm)
	}
	return nil
}

// EnergyForKm converts a driving distance to the battery energy it consumes,
// in Wh.
func (v Vehicle) EnergyForKm(km float64) float64 {
	return km * v.ConsumptionKWhPerKm * 1000
}

// KmForEnergy converts stored energy in Wh to driving range in km.
func (v Vehicle) KmForEnergy(wh float64) float64 {
	return wh / (v.ConsumptionKWhPerKm * 1000)
}

// EnergyWh returns the energy currently stored in the battery, in Wh.
func (v Vehicle) EnergyWh() float64 {
	return v.SoC * v.BatteryCapacityWh
}

// RangeKm returns the driving range available at the current SoC.
func (v Vehicle) RangeKm() float64 {
	return v.KmForEnergy(v.EnergyWh())
}

// SoCDelta returns the change in state of charge caused by charging at
// powerW for dtHours, accounting for charger losses.
func (v Vehicle) SoCDelta(powerW, dtHours float64) float64 {
	return powerW * dtHours * v.ChargerEfficiency / v.BatteryCapacityWh
}

// SoCFloorForKm returns the minimum state of charge that keeps km of range
// available. The result may exceed 1 when the requirement is beyond the
// physical range of the battery; the optimization then reports infeasibility
// instead of silently capping the requirement.
func (v Vehicle) SoCFloorForKm(km float64) float64 {
	req := v.EnergyForKm(km) / v.BatteryCapacityWh
	if req < 0 {
		return 0
	}
	return req
}

// Clone returns a deep copy, detaching the per-timestep series so callers
// can hold a snapshot while the registry keeps mutating.
func (v Vehicle) Clone() Vehicle {
	c := v
	if v.Availability != nil {
		c.Availability = make([]bool, len(v.Availability))
		copy(c.Availability, v.Availability)
	}
	if v.RangeRequirementKm != nil {
		c.RangeRequirementKm = make([]float64, len(v.RangeRequirementKm))
		copy(c.RangeRequirementKm, v.RangeRequirementKm)
	}
	return c
}
