package model

import "fmt"

// Horizon is the discrete planning window shared by every forecast series
// and every per-vehicle sequence of one optimization run.
type Horizon struct {
	// Steps is the number of timesteps in the window.
	Steps int `json:"steps"`
	// StepHours is the duration of one timestep in hours.
	StepHours float64 `json:"step_hours"`
}

// Validate checks the horizon parameters.
func (h Horizon) Validate() error {
	if h.Steps <= 0 {
		return fmt.Errorf("%w: horizon steps must be positive, got %d", ErrInvalidInput, h.Steps)
	}
	if h.StepHours <= 0 {
		return fmt.Errorf("%w: horizon step_hours must be positive, got %g", ErrInvalidInput, h.StepHours)
	}
	return nil
}

// Hours returns the total span of the window in hours.
func (h Horizon) Hours() float64 {
	return float64(h.Steps) * h.StepHours
}
