package optim

import (
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/evopt/core/forecast"
	"github.com/kilianp07/evopt/core/milp"
	"github.com/kilianp07/evopt/core/model"
)

// Extract reads an optimal solution back into domain quantities. Values are
// clamped to their physical domain to strip simplex tolerance noise; the
// clamp never moves a value by more than the solver tolerance.
func Extract(sol milp.Solution, lay *Layout, bundle forecast.Bundle, plant Plant, vehicles []model.Vehicle) model.DispatchPlan {
	T := lay.Steps
	dt := bundle.Horizon.StepHours

	plan := model.DispatchPlan{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Status:      model.StatusOptimal,
		Horizon:     bundle.Horizon,
		Objective:   sol.Objective,
		Nodes:       sol.Nodes,
		GridImportW: make([]float64, T),
		GridExportW: make([]float64, T),
		Vehicles:    make([]model.VehiclePlan, len(vehicles)),
	}

	for t := 0; t < T; t++ {
		gi := clamp(sol.X[lay.GridImport[t]], 0, plant.Grid.MaxImportW)
		ge := clamp(sol.X[lay.GridExport[t]], 0, plant.Grid.MaxExportW)
		plan.GridImportW[t] = gi
		plan.GridExportW[t] = ge
		plan.Cost += (bundle.BuyPrice[t]*gi - bundle.SellPrice[t]*ge) * dt / 1000
	}

	if lay.HasBattery() {
		bt := plant.Battery
		plan.BatteryChargeW = make([]float64, T)
		plan.BatteryDischargeW = make([]float64, T)
		plan.BatterySoC = make([]float64, T+1)
		for t := 0; t < T; t++ {
			plan.BatteryChargeW[t] = clamp(sol.X[lay.BattCharge[t]], 0, bt.MaxChargeW)
			plan.BatteryDischargeW[t] = clamp(sol.X[lay.BattDischarge[t]], 0, bt.MaxDischargeW)
		}
		for t := 0; t <= T; t++ {
			plan.BatterySoC[t] = clamp(sol.X[lay.BattSoC[t]], bt.SoCMin, bt.SoCMax)
		}
	}

	if len(plant.Deferrables) > 0 {
		plan.Deferrables = make([]model.DeferrablePlan, len(plant.Deferrables))
		for j, d := range plant.Deferrables {
			dp := model.DeferrablePlan{Name: d.Name, PowerW: make([]float64, T)}
			for t := 0; t < T; t++ {
				if idx := lay.Deferrable[j][t]; idx >= 0 {
					dp.PowerW[t] = clamp(sol.X[idx], 0, d.PowerW)
				}
			}
			plan.Deferrables[j] = dp
		}
	}

	for i, v := range vehicles {
		vp := model.VehiclePlan{
			Index:        v.Index,
			ChargePowerW: make([]float64, T),
			SoC:          make([]float64, T+1),
		}
		for t := 0; t < T; t++ {
			vp.ChargePowerW[t] = clamp(sol.X[lay.EVPower[i][t]], 0, v.NominalPowerW)
		}
		for t := 0; t <= T; t++ {
			vp.SoC[t] = clamp(sol.X[lay.EVSoC[i][t]], 0, 1)
		}
		vp.EnergyWh = (vp.SoC[T] - vp.SoC[0]) * v.BatteryCapacityWh
		plan.Vehicles[i] = vp
	}

	return plan
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
