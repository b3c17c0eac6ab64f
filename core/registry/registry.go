// Package registry owns the fleet state: static vehicle characteristics
// from configuration and the mutable runtime state (state of charge,
// availability, range requirements) that feeds each optimization run.
package registry

import (
	"fmt"
	"math"
	"sync"

	"github.com/kilianp07/evopt/core/logger"
	"github.com/kilianp07/evopt/core/model"
)

// Registry is the process-wide store of vehicle state. Construction of the
// runtime instances is lazy: the first access materializes every configured
// vehicle with a neutral state (fully available, no range requirement) and
// the same instances then live for the process lifetime. All accessors
// return deep copies so callers never alias internal state.
type Registry struct {
	specs   []model.Vehicle
	horizon model.Horizon
	log     logger.Logger

	once     sync.Once
	mu       sync.RWMutex
	vehicles []model.Vehicle
}

// New prepares a registry for the given fleet. Specs carry the static
// characteristics plus the initial state of charge; they are validated
// eagerly so configuration mistakes surface at startup.
func New(specs []model.Vehicle, horizon model.Horizon, log logger.Logger) (*Registry, error) {
	if err := horizon.Validate(); err != nil {
		return nil, err
	}
	for i, s := range specs {
		s.Index = i
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if s.SoC < 0 || s.SoC > 1 {
			return nil, fmt.Errorf("%w: vehicle %d: initial soc must be in [0,1], got %g", model.ErrInvalidInput, i, s.SoC)
		}
	}
	return &Registry{specs: specs, horizon: horizon, log: log}, nil
}

func (r *Registry) ensure() {
	r.once.Do(func() {
		r.vehicles = make([]model.Vehicle, len(r.specs))
		for i, s := range r.specs {
			v := s.Clone()
			v.Index = i
			v.Availability = make([]bool, r.horizon.Steps)
			for t := range v.Availability {
				v.Availability[t] = true
			}
			v.RangeRequirementKm = make([]float64, r.horizon.Steps)
			r.vehicles[i] = v
		}
		r.log.Debugf("registry initialized with %d vehicles over %d steps", len(r.vehicles), r.horizon.Steps)
	})
}

// Count returns the configured number of vehicles.
func (r *Registry) Count() int {
	return len(r.specs)
}

// Horizon returns the planning window the registry validates sequences
// against.
func (r *Registry) Horizon() model.Horizon {
	return r.horizon
}

// Get returns a copy of the vehicle at index.
func (r *Registry) Get(index int) (model.Vehicle, error) {
	if err := r.check(index); err != nil {
		return model.Vehicle{}, err
	}
	r.ensure()
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vehicles[index].Clone(), nil
}

// Snapshot returns a consistent copy of the whole fleet, taken under a
// single lock acquisition so an optimization run never observes a half
// applied update.
func (r *Registry) Snapshot() []model.Vehicle {
	r.ensure()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Vehicle, len(r.vehicles))
	for i, v := range r.vehicles {
		out[i] = v.Clone()
	}
	return out
}

// SetSoC sets the state of charge of one vehicle from a percentage in
// [0,100]. Out-of-range or non-finite values are rejected and leave the
// stored value untouched.
func (r *Registry) SetSoC(index int, percent float64) error {
	if err := r.check(index); err != nil {
		return err
	}
	if math.IsNaN(percent) || math.IsInf(percent, 0) || percent < 0 || percent > 100 {
		return fmt.Errorf("%w: soc percent must be in [0,100], got %g", model.ErrInvalidInput, percent)
	}
	r.ensure()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicles[index].SoC = percent / 100
	r.log.Debugf("vehicle %d soc set to %.2f%%", index, percent)
	return nil
}

// SetAvailability replaces the availability sequence of one vehicle. The
// sequence length must equal the horizon length.
func (r *Registry) SetAvailability(index int, seq []bool) error {
	if err := r.check(index); err != nil {
		return err
	}
	if len(seq) != r.horizon.Steps {
		return fmt.Errorf("%w: availability length %d does not match horizon of %d steps",
			model.ErrInvalidInput, len(seq), r.horizon.Steps)
	}
	cp := make([]bool, len(seq))
	copy(cp, seq)
	r.ensure()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicles[index].Availability = cp
	r.log.Debugf("vehicle %d availability updated", index)
	return nil
}

// SetRangeRequirements replaces the per-step minimum range sequence of one
// vehicle, in km. Elements must be finite and non-negative and the length
// must equal the horizon length.
func (r *Registry) SetRangeRequirements(index int, seq []float64) error {
	if err := r.check(index); err != nil {
		return err
	}
	if len(seq) != r.horizon.Steps {
		return fmt.Errorf("%w: range requirement length %d does not match horizon of %d steps",
			model.ErrInvalidInput, len(seq), r.horizon.Steps)
	}
	for t, km := range seq {
		if math.IsNaN(km) || math.IsInf(km, 0) || km < 0 {
			return fmt.Errorf("%w: range requirement at step %d must be finite and non-negative, got %g",
				model.ErrInvalidInput, t, km)
		}
	}
	cp := make([]float64, len(seq))
	copy(cp, seq)
	r.ensure()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicles[index].RangeRequirementKm = cp
	r.log.Debugf("vehicle %d range requirements updated", index)
	return nil
}

// CommitSoC advances the stored state of charge to a solved end-of-plan
// value, as a fraction in [0,1]. Only the result extraction path uses it.
func (r *Registry) CommitSoC(index int, soc float64) error {
	if err := r.check(index); err != nil {
		return err
	}
	if math.IsNaN(soc) || soc < 0 || soc > 1 {
		return fmt.Errorf("%w: committed soc must be in [0,1], got %g", model.ErrInvalidInput, soc)
	}
	r.ensure()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vehicles[index].SoC = soc
	r.log.Debugf("vehicle %d soc committed to %.4f", index, soc)
	return nil
}

func (r *Registry) check(index int) error {
	if index < 0 || index >= len(r.specs) {
		return fmt.Errorf("%w: index %d with %d vehicles configured", model.ErrNotFound, index, len(r.specs))
	}
	return nil
}
