// Package forecast validates and normalizes externally supplied time series
// into the uniform shape the model builder consumes.
package forecast

import (
	"fmt"
	"math"

	"github.com/kilianp07/evopt/core/logger"
	"github.com/kilianp07/evopt/core/model"
)

// Input carries the raw series of one optimization request. Power series are
// in W, prices in currency per kWh. A nil series means "use the configured
// default"; a non-nil series must match the horizon length exactly.
type Input struct {
	// StepHours optionally overrides the configured step duration. Zero
	// keeps the configured value.
	StepHours float64   `json:"step_hours,omitempty"`
	PVW       []float64 `json:"pv_w,omitempty"`
	LoadW     []float64 `json:"load_w,omitempty"`
	BuyPrice  []float64 `json:"buy_price,omitempty"`
	SellPrice []float64 `json:"sell_price,omitempty"`
}

// Defaults enumerates the fallback value applied to each series a request
// leaves out. The set of defaultable series is fixed here and surfaced in
// configuration rather than scattered through the build path.
type Defaults struct {
	PVW       float64 `json:"pv_w"`
	LoadW     float64 `json:"load_w"`
	BuyPrice  float64 `json:"buy_price"`
	SellPrice float64 `json:"sell_price"`
}

// Bundle is a validated, horizon-aligned set of forecast series.
type Bundle struct {
	Horizon   model.Horizon
	PVW       []float64
	LoadW     []float64
	BuyPrice  []float64
	SellPrice []float64
}

// ResidualW returns the fixed load left after local production at step t.
// Negative values mean surplus production.
func (b Bundle) ResidualW(t int) float64 {
	return b.LoadW[t] - b.PVW[t]
}

// Builder normalizes raw inputs against the configured horizon, bounds and
// defaults.
type Builder struct {
	horizon      model.Horizon
	defaults     Defaults
	minStepHours float64
	maxStepHours float64
	log          logger.Logger
}

// NewBuilder returns a Builder for the given horizon. StepHours overrides in
// requests are accepted only inside [minStepHours, maxStepHours].
func NewBuilder(h model.Horizon, d Defaults, minStepHours, maxStepHours float64, log logger.Logger) (*Builder, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if minStepHours <= 0 || maxStepHours < minStepHours {
		return nil, fmt.Errorf("%w: step bounds must satisfy 0 < min <= max, got [%g, %g]",
			model.ErrInvalidInput, minStepHours, maxStepHours)
	}
	if h.StepHours < minStepHours || h.StepHours > maxStepHours {
		return nil, fmt.Errorf("%w: configured step_hours %g outside bounds [%g, %g]",
			model.ErrInvalidInput, h.StepHours, minStepHours, maxStepHours)
	}
	return &Builder{horizon: h, defaults: d, minStepHours: minStepHours, maxStepHours: maxStepHours, log: log}, nil
}

// Build validates the input and returns a Bundle aligned to the configured
// horizon. Missing series are filled from the defaults.
func (b *Builder) Build(in Input) (Bundle, error) {
	h := b.horizon
	if in.StepHours != 0 {
		if math.IsNaN(in.StepHours) || in.StepHours < b.minStepHours || in.StepHours > b.maxStepHours {
			return Bundle{}, fmt.Errorf("%w: step_hours %g outside bounds [%g, %g]",
				model.ErrInvalidInput, in.StepHours, b.minStepHours, b.maxStepHours)
		}
		h.StepHours = in.StepHours
	}

	pv, err := b.series("pv_w", in.PVW, b.defaults.PVW, false)
	if err != nil {
		return Bundle{}, err
	}
	load, err := b.series("load_w", in.LoadW, b.defaults.LoadW, false)
	if err != nil {
		return Bundle{}, err
	}
	buy, err := b.series("buy_price", in.BuyPrice, b.defaults.BuyPrice, true)
	if err != nil {
		return Bundle{}, err
	}
	sell, err := b.series("sell_price", in.SellPrice, b.defaults.SellPrice, true)
	if err != nil {
		return Bundle{}, err
	}

	b.log.Debugf("forecast bundle built: %d steps of %gh", h.Steps, h.StepHours)
	return Bundle{Horizon: h, PVW: pv, LoadW: load, BuyPrice: buy, SellPrice: sell}, nil
}

// series validates one raw series or expands its default. Prices may be
// negative, power series may not.
func (b *Builder) series(name string, raw []float64, def float64, allowNegative bool) ([]float64, error) {
	if raw == nil {
		out := make([]float64, b.horizon.Steps)
		for i := range out {
			out[i] = def
		}
		return out, nil
	}
	if len(raw) != b.horizon.Steps {
		return nil, fmt.Errorf("%w: %s length %d does not match horizon of %d steps",
			model.ErrInvalidInput, name, len(raw), b.horizon.Steps)
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %s has non-finite value at step %d", model.ErrInvalidInput, name, i)
		}
		if !allowNegative && v < 0 {
			return nil, fmt.Errorf("%w: %s must be non-negative, got %g at step %d", model.ErrInvalidInput, name, v, i)
		}
		out[i] = v
	}
	return out, nil
}
