package config

import (
	"fmt"

	"github.com/kilianp07/evopt/core/forecast"
	"github.com/kilianp07/evopt/core/model"
)

// ForecastConfig sets the fallback values and the accepted step-duration
// range for optimization requests.
type ForecastConfig struct {
	Defaults     forecast.Defaults `json:"defaults"`
	MinStepHours float64           `json:"min_step_hours"`
	MaxStepHours float64           `json:"max_step_hours"`
}

// SetDefaults applies sane defaults.
func (c *ForecastConfig) SetDefaults() {
	if c.MinStepHours == 0 {
		c.MinStepHours = 0.25
	}
	if c.MaxStepHours == 0 {
		c.MaxStepHours = 2
	}
}

// Validate checks the step bounds.
func (c ForecastConfig) Validate() error {
	if c.MinStepHours <= 0 || c.MaxStepHours < c.MinStepHours {
		return fmt.Errorf("%w: forecast step bounds must satisfy 0 < min <= max, got [%g, %g]",
			model.ErrInvalidInput, c.MinStepHours, c.MaxStepHours)
	}
	return nil
}
