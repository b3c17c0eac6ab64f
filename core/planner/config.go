package planner

import (
	"fmt"

	"github.com/kilianp07/evopt/core/optim"
)

// Config bounds the planner's runs and selects its commit policy.
type Config struct {
	// RequestTimeoutSeconds caps how long a request waits for an in-flight
	// run to finish before giving up.
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`
	// SolveTimeLimitSeconds caps the solver wall clock per run.
	SolveTimeLimitSeconds int `json:"solve_time_limit_seconds"`
	// MaxNodes caps the branch and bound tree per run.
	MaxNodes int `json:"max_nodes"`
	// DryRun keeps plans informational: vehicle state is never advanced to
	// the projected end-of-plan values.
	DryRun bool `json:"dry_run"`
	// ReplanIntervalSeconds re-runs the optimization on a fixed cadence
	// with the configured forecast defaults. Zero disables the cadence.
	ReplanIntervalSeconds int `json:"replan_interval_seconds"`
	// Optimizer tunes the model formulation.
	Optimizer optim.Params `json:"optimizer"`
}

// SetDefaults fills unset fields with sane values.
func (c *Config) SetDefaults() {
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = 30
	}
	if c.SolveTimeLimitSeconds == 0 {
		c.SolveTimeLimitSeconds = 60
	}
	if c.MaxNodes == 0 {
		c.MaxNodes = 10000
	}
	c.Optimizer.SetDefaults()
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("request_timeout_seconds must not be negative")
	}
	if c.SolveTimeLimitSeconds < 0 {
		return fmt.Errorf("solve_time_limit_seconds must not be negative")
	}
	if c.MaxNodes < 0 {
		return fmt.Errorf("max_nodes must not be negative")
	}
	if c.ReplanIntervalSeconds < 0 {
		return fmt.Errorf("replan_interval_seconds must not be negative")
	}
	return c.Optimizer.Validate()
}
