package model

import "fmt"

// Battery describes the stationary home battery. A zero-capacity battery
// means the plant has none and the related variables are omitted from the
// optimization model.
type Battery struct {
	CapacityWh      float64 `json:"capacity_wh"`
	MaxChargeW      float64 `json:"max_charge_w"`
	MaxDischargeW   float64 `json:"max_discharge_w"`
	ChargeEff       float64 `json:"charge_eff"`
	DischargeEff    float64 `json:"discharge_eff"`
	SoCMin          float64 `json:"soc_min"`
	SoCMax          float64 `json:"soc_max"`
	SoCInit         float64 `json:"soc_init"`
	SoCFinal        float64 `json:"soc_final"`
	EnforceSoCFinal bool    `json:"enforce_soc_final"`
}

// Enabled reports whether the plant has a stationary battery.
func (b Battery) Enabled() bool { return b.CapacityWh > 0 }

// Validate checks the battery parameters. A disabled battery is valid.
func (b Battery) Validate() error {
	if !b.Enabled() {
		return nil
	}
	if b.MaxChargeW <= 0 || b.MaxDischargeW <= 0 {
		return fmt.Errorf("%w: battery power limits must be positive", ErrInvalidInput)
	}
	if b.ChargeEff <= 0 || b.ChargeEff > 1 || b.DischargeEff <= 0 || b.DischargeEff > 1 {
		return fmt.Errorf("%w: battery efficiencies must be in (0,1]", ErrInvalidInput)
	}
	if b.SoCMin < 0 || b.SoCMax > 1 || b.SoCMin > b.SoCMax {
		return fmt.Errorf("%w: battery soc bounds must satisfy 0 <= soc_min <= soc_max <= 1", ErrInvalidInput)
	}
	if b.SoCInit < b.SoCMin || b.SoCInit > b.SoCMax {
		return fmt.Errorf("%w: battery soc_init outside [soc_min, soc_max]", ErrInvalidInput)
	}
	if b.EnforceSoCFinal && (b.SoCFinal < b.SoCMin || b.SoCFinal > b.SoCMax) {
		return fmt.Errorf("%w: battery soc_final outside [soc_min, soc_max]", ErrInvalidInput)
	}
	return nil
}

// Grid describes the connection limits at the point of common coupling.
type Grid struct {
	MaxImportW float64 `json:"max_import_w"`
	MaxExportW float64 `json:"max_export_w"`
}

// Validate checks the grid limits.
func (g Grid) Validate() error {
	if g.MaxImportW <= 0 {
		return fmt.Errorf("%w: grid max_import_w must be positive", ErrInvalidInput)
	}
	if g.MaxExportW < 0 {
		return fmt.Errorf("%w: grid max_export_w must not be negative", ErrInvalidInput)
	}
	return nil
}

// DeferrableLoad is a shiftable household load that must consume a fixed
// amount of energy inside an operating window of the horizon.
type DeferrableLoad struct {
	Name      string  `json:"name"`
	EnergyWh  float64 `json:"energy_wh"`
	PowerW    float64 `json:"power_w"`
	StartStep int     `json:"start_step"`
	EndStep   int     `json:"end_step"`
}

// Validate checks the load definition against the horizon.
func (d DeferrableLoad) Validate(h Horizon) error {
	if d.EnergyWh < 0 {
		return fmt.Errorf("%w: deferrable %q: energy_wh must not be negative", ErrInvalidInput, d.Name)
	}
	if d.PowerW <= 0 {
		return fmt.Errorf("%w: deferrable %q: power_w must be positive", ErrInvalidInput, d.Name)
	}
	if d.StartStep < 0 || d.EndStep > h.Steps || d.StartStep >= d.EndStep {
		return fmt.Errorf("%w: deferrable %q: window [%d,%d) outside horizon of %d steps",
			ErrInvalidInput, d.Name, d.StartStep, d.EndStep, h.Steps)
	}
	window := float64(d.EndStep-d.StartStep) * h.StepHours
	if d.EnergyWh > d.PowerW*window {
		return fmt.Errorf("%w: deferrable %q: energy_wh %g exceeds window capacity %g",
			ErrInvalidInput, d.Name, d.EnergyWh, d.PowerW*window)
	}
	return nil
}
