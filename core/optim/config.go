package optim

import (
	"fmt"

	"github.com/kilianp07/evopt/core/model"
)

// Grid exclusivity modes. Penalty mode discourages simultaneous import and
// export through a small cost term; binary mode forbids it with an indicator
// variable per timestep.
const (
	ExclusivityPenalty = "penalty"
	ExclusivityBinary  = "binary"
)

// Params tune how the dispatch model is assembled.
type Params struct {
	// EVChargePenalty is a small cost in currency per kWh on vehicle
	// charging that breaks ties toward minimal charging once all hard
	// constraints are met.
	EVChargePenalty float64 `json:"ev_charge_penalty"`
	// GridExclusivity selects how simultaneous import and export is
	// prevented: "penalty" or "binary".
	GridExclusivity string `json:"grid_exclusivity"`
	// GridExclusivityPenalty is the currency per kWh cost applied to grid
	// flows in penalty mode.
	GridExclusivityPenalty float64 `json:"grid_exclusivity_penalty"`
	// HoldRangeUntilDeparture extends each range requirement from its step
	// forward while the vehicle stays plugged in, instead of binding only
	// at the step itself.
	HoldRangeUntilDeparture bool `json:"hold_range_until_departure"`
}

// SetDefaults applies sane defaults.
func (p *Params) SetDefaults() {
	if p.EVChargePenalty == 0 {
		p.EVChargePenalty = 0.001
	}
	if p.GridExclusivity == "" {
		p.GridExclusivity = ExclusivityPenalty
	}
	if p.GridExclusivityPenalty == 0 {
		p.GridExclusivityPenalty = 0.001
	}
}

// Validate checks the parameter combination.
func (p Params) Validate() error {
	if p.GridExclusivity != ExclusivityPenalty && p.GridExclusivity != ExclusivityBinary {
		return fmt.Errorf("%w: unknown grid exclusivity mode %q", model.ErrInvalidInput, p.GridExclusivity)
	}
	if p.EVChargePenalty < 0 || p.GridExclusivityPenalty < 0 {
		return fmt.Errorf("%w: penalties must not be negative", model.ErrInvalidInput)
	}
	return nil
}
