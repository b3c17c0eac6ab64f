// Package optim assembles the mixed-integer dispatch model from registry
// state and forecasts, and reads solved models back into dispatch plans.
package optim

import (
	"fmt"

	"github.com/kilianp07/evopt/core/forecast"
	"github.com/kilianp07/evopt/core/logger"
	"github.com/kilianp07/evopt/core/milp"
	"github.com/kilianp07/evopt/core/model"
)

// Plant groups the stationary entities dispatch is planned for.
type Plant struct {
	Grid        model.Grid             `json:"grid"`
	Battery     model.Battery          `json:"battery"`
	Deferrables []model.DeferrableLoad `json:"deferrable_loads"`
}

// Validate checks every plant entity against the horizon.
func (p Plant) Validate(h model.Horizon) error {
	if err := p.Grid.Validate(); err != nil {
		return err
	}
	if err := p.Battery.Validate(); err != nil {
		return err
	}
	for _, d := range p.Deferrables {
		if err := d.Validate(h); err != nil {
			return err
		}
	}
	return nil
}

// Builder turns a forecast bundle, the plant and a fleet snapshot into a
// solvable problem.
type Builder struct {
	params Params
	log    logger.Logger
}

// NewBuilder validates the parameters and returns a Builder.
func NewBuilder(params Params, log logger.Logger) (*Builder, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Builder{params: params, log: log}, nil
}

// Build constructs the decision variables, constraints and objective for one
// optimization run. Vehicle state must be a snapshot; Build never mutates it.
// Requirements that no charging plan can meet are rejected as infeasible
// here, with a cause, instead of surfacing as a bare solver status.
func (b *Builder) Build(bundle forecast.Bundle, plant Plant, vehicles []model.Vehicle) (*milp.Problem, *Layout, error) {
	h := bundle.Horizon
	if err := h.Validate(); err != nil {
		return nil, nil, err
	}
	if err := plant.Validate(h); err != nil {
		return nil, nil, err
	}
	for _, v := range vehicles {
		if err := v.Validate(); err != nil {
			return nil, nil, err
		}
		if len(v.Availability) != h.Steps || len(v.RangeRequirementKm) != h.Steps {
			return nil, nil, fmt.Errorf("%w: vehicle %d sequences sized %d/%d, horizon has %d steps",
				model.ErrInvalidInput, v.Index, len(v.Availability), len(v.RangeRequirementKm), h.Steps)
		}
		if v.SoC < 0 || v.SoC > 1 {
			return nil, nil, fmt.Errorf("%w: vehicle %d soc %g outside [0,1]", model.ErrInvalidInput, v.Index, v.SoC)
		}
		if err := checkRangeAchievable(v, h); err != nil {
			return nil, nil, err
		}
	}

	T := h.Steps
	dt := h.StepHours
	kwh := dt / 1000
	p := milp.NewProblem()
	lay := newLayout(T, len(plant.Deferrables), len(vehicles))

	exclPen := 0.0
	if b.params.GridExclusivity == ExclusivityPenalty {
		exclPen = b.params.GridExclusivityPenalty
	}

	for t := 0; t < T; t++ {
		lay.GridImport[t] = p.AddVar(0, plant.Grid.MaxImportW, (bundle.BuyPrice[t]+exclPen)*kwh)
		lay.GridExport[t] = p.AddVar(0, plant.Grid.MaxExportW, (-bundle.SellPrice[t]+exclPen)*kwh)
	}
	if b.params.GridExclusivity == ExclusivityBinary {
		lay.GridExcl = make([]int, T)
		for t := 0; t < T; t++ {
			exc := p.AddBinary(0)
			lay.GridExcl[t] = exc
			p.AddLE(map[int]float64{lay.GridImport[t]: 1, exc: -plant.Grid.MaxImportW}, 0)
			p.AddLE(map[int]float64{lay.GridExport[t]: 1, exc: plant.Grid.MaxExportW}, plant.Grid.MaxExportW)
		}
	}

	if plant.Battery.Enabled() {
		b.addBattery(p, lay, plant.Battery, T, dt)
	}

	for j, d := range plant.Deferrables {
		coeffs := make(map[int]float64, d.EndStep-d.StartStep)
		for t := d.StartStep; t < d.EndStep; t++ {
			v := p.AddVar(0, d.PowerW, 0)
			lay.Deferrable[j][t] = v
			coeffs[v] = dt
		}
		p.AddEQ(coeffs, d.EnergyWh)
	}

	for i, v := range vehicles {
		b.addVehicle(p, lay, i, v, T, dt, kwh)
	}

	for t := 0; t < T; t++ {
		coeffs := map[int]float64{
			lay.GridImport[t]: 1,
			lay.GridExport[t]: -1,
		}
		if lay.HasBattery() {
			coeffs[lay.BattCharge[t]] = -1
			coeffs[lay.BattDischarge[t]] = 1
		}
		for j := range plant.Deferrables {
			if idx := lay.Deferrable[j][t]; idx >= 0 {
				coeffs[idx] = -1
			}
		}
		for i := range vehicles {
			coeffs[lay.EVPower[i][t]] = -1
		}
		p.AddEQ(coeffs, bundle.ResidualW(t))
	}

	b.log.Debugw("dispatch model built", map[string]any{
		"steps":     T,
		"vehicles":  len(vehicles),
		"variables": p.NumVars(),
		"binaries":  p.NumBinaries(),
		"rows":      p.NumRows(),
	})
	return p, lay, nil
}

func (b *Builder) addBattery(p *milp.Problem, lay *Layout, bt model.Battery, T int, dt float64) {
	lay.BattCharge = make([]int, T)
	lay.BattDischarge = make([]int, T)
	lay.BattSoC = make([]int, T+1)

	for t := 0; t < T; t++ {
		lay.BattCharge[t] = p.AddVar(0, bt.MaxChargeW, 0)
		lay.BattDischarge[t] = p.AddVar(0, bt.MaxDischargeW, 0)
	}
	for t := 0; t <= T; t++ {
		lay.BattSoC[t] = p.AddVar(bt.SoCMin, bt.SoCMax, 0)
	}
	p.SetBounds(lay.BattSoC[0], bt.SoCInit, bt.SoCInit)
	if bt.EnforceSoCFinal {
		p.SetBounds(lay.BattSoC[T], bt.SoCFinal, bt.SoCMax)
	}

	chg := bt.ChargeEff * dt / bt.CapacityWh
	dis := dt / (bt.DischargeEff * bt.CapacityWh)
	for t := 0; t < T; t++ {
		p.AddEQ(map[int]float64{
			lay.BattSoC[t+1]:     1,
			lay.BattSoC[t]:       -1,
			lay.BattCharge[t]:    -chg,
			lay.BattDischarge[t]: dis,
		}, 0)
	}
}

func (b *Builder) addVehicle(p *milp.Problem, lay *Layout, i int, v model.Vehicle, T int, dt, kwh float64) {
	for t := 0; t < T; t++ {
		ub := v.NominalPowerW
		if !v.Availability[t] {
			ub = 0
		}
		lay.EVPower[i][t] = p.AddVar(0, ub, b.params.EVChargePenalty*kwh)
	}
	for t := 0; t <= T; t++ {
		lay.EVSoC[i][t] = p.AddVar(0, 1, 0)
	}
	p.SetBounds(lay.EVSoC[i][0], v.SoC, v.SoC)

	for t, km := range v.RangeRequirementKm {
		if km <= 0 {
			continue
		}
		floor := v.SoCFloorForKm(km)
		end := t
		if b.params.HoldRangeUntilDeparture {
			for end < T && v.Availability[end] {
				end++
			}
		}
		for s := t; s <= end; s++ {
			lb, ub := p.Bounds(lay.EVSoC[i][s])
			if floor > lb {
				p.SetBounds(lay.EVSoC[i][s], floor, ub)
			}
		}
	}

	socPerW := dt * v.ChargerEfficiency / v.BatteryCapacityWh
	for t := 0; t < T; t++ {
		p.AddEQ(map[int]float64{
			lay.EVSoC[i][t+1]: 1,
			lay.EVSoC[i][t]:   -1,
			lay.EVPower[i][t]: -socPerW,
		}, 0)
	}

	if v.MinimumPowerW <= 0 {
		return
	}
	for t := 0; t < T; t++ {
		if !v.Availability[t] {
			continue
		}
		a := p.AddBinary(0)
		lay.EVActive[i][t] = a
		p.AddLE(map[int]float64{lay.EVPower[i][t]: 1, a: -v.NominalPowerW}, 0)
		p.AddGE(map[int]float64{lay.EVPower[i][t]: 1, a: -v.MinimumPowerW}, 0)
	}
}

// checkRangeAchievable tracks the best possible state of charge at each step
// boundary, charging at nominal power whenever the vehicle is plugged in,
// and rejects any range requirement above it.
func checkRangeAchievable(v model.Vehicle, h model.Horizon) error {
	achievable := v.SoC
	for t := 0; t < h.Steps; t++ {
		if km := v.RangeRequirementKm[t]; km > 0 {
			floor := v.SoCFloorForKm(km)
			if floor > achievable+1e-9 {
				return fmt.Errorf("%w: vehicle %d needs %g km at step %d but can reach at most %.1f km given its availability and charging power",
					model.ErrInfeasible, v.Index, km, t, v.KmForEnergy(achievable*v.BatteryCapacityWh))
			}
		}
		if v.Availability[t] {
			achievable += v.SoCDelta(v.NominalPowerW, h.StepHours)
			if achievable > 1 {
				achievable = 1
			}
		}
	}
	return nil
}
