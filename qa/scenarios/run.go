package scenarios

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kilianp07/evopt/core/forecast"
	"github.com/kilianp07/evopt/core/model"
	"github.com/kilianp07/evopt/core/optim"
	"github.com/kilianp07/evopt/core/planner"
	"github.com/kilianp07/evopt/core/registry"
	"github.com/kilianp07/evopt/infra/logger"
	"github.com/kilianp07/evopt/infra/mqtt"
)

// powerTol absorbs simplex rounding on series expressed in watts.
const powerTol = 1e-4

// RunScenario assembles the planning pipeline for one scenario, runs a single
// optimization through the manager and checks the outcome.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()

	h := model.Horizon{Steps: sc.Horizon.Steps, StepHours: sc.Horizon.StepHours}
	specs := make([]model.Vehicle, len(sc.Vehicles))
	for i, def := range sc.Vehicles {
		specs[i] = def.Spec()
	}
	reg, err := registry.New(specs, h, logger.NopLogger{})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	for i, def := range sc.Vehicles {
		if len(def.UnavailableSteps) > 0 {
			if err := reg.SetAvailability(i, def.availability(h.Steps)); err != nil {
				t.Fatalf("availability vehicle %d: %v", i, err)
			}
		}
		if len(def.RangeRequirementsKm) > 0 {
			if err := reg.SetRangeRequirements(i, def.requirements(h.Steps)); err != nil {
				t.Fatalf("range requirements vehicle %d: %v", i, err)
			}
		}
	}

	fc, err := forecast.NewBuilder(h, sc.Defaults.Defaults(), 0.25, 2, logger.NopLogger{})
	if err != nil {
		t.Fatalf("forecast builder: %v", err)
	}
	params := optim.Params{}
	params.SetDefaults()
	ob, err := optim.NewBuilder(params, logger.NopLogger{})
	if err != nil {
		t.Fatalf("model builder: %v", err)
	}
	mgr, err := planner.NewPlanManager(reg, fc, ob, sc.Plant.Plant(), planner.Config{},
		mqtt.NewMockPublisher(), nil, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	}()

	plan, err := mgr.Plan(context.Background(), sc.Input.Input(), "scenario")

	switch want := model.Status(sc.Expected.Status); want {
	case model.StatusOptimal:
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if plan.Status != model.StatusOptimal {
			t.Fatalf("plan status = %s, want optimal", plan.Status)
		}
		verifyPlan(t, sc, h, fc, reg, plan)
	case model.StatusInfeasible:
		if !errors.Is(err, model.ErrInfeasible) {
			t.Fatalf("err = %v, want infeasible", err)
		}
	default:
		if err == nil {
			t.Fatalf("run succeeded, want status %s", want)
		}
	}
	if sub := sc.Expected.ErrorContains; sub != "" {
		if err == nil || !strings.Contains(err.Error(), sub) {
			t.Errorf("error %v does not mention %q", err, sub)
		}
	}
}

// verifyPlan checks the structural properties every optimal plan must hold,
// then the scenario-specific expectations.
func verifyPlan(t *testing.T, sc *Scenario, h model.Horizon, fc *forecast.Builder, reg *registry.Registry, plan model.DispatchPlan) {
	t.Helper()

	bundle, err := fc.Build(sc.Input.Input())
	if err != nil {
		t.Fatalf("rebuild forecast: %v", err)
	}
	if len(plan.GridImportW) != h.Steps || len(plan.GridExportW) != h.Steps {
		t.Fatalf("grid series lengths %d/%d, want %d", len(plan.GridImportW), len(plan.GridExportW), h.Steps)
	}
	if exp := sc.Expected.Vehicles; exp != nil && len(plan.Vehicles) != *exp {
		t.Errorf("plan carries %d vehicle series, want %d", len(plan.Vehicles), *exp)
	}

	for ti := 0; ti < h.Steps; ti++ {
		net := plan.GridImportW[ti] - plan.GridExportW[ti]
		if len(plan.BatteryChargeW) > 0 {
			net += plan.BatteryDischargeW[ti] - plan.BatteryChargeW[ti]
		}
		for _, dp := range plan.Deferrables {
			net -= dp.PowerW[ti]
		}
		for _, vp := range plan.Vehicles {
			net -= vp.ChargePowerW[ti]
		}
		if diff := net - bundle.ResidualW(ti); math.Abs(diff) > powerTol {
			t.Errorf("power imbalance %.6f W at step %d", diff, ti)
		}
	}

	for _, vp := range plan.Vehicles {
		verifyVehicle(t, sc, h, vp)
	}
	verifyBattery(t, sc, h, plan)
	verifyDeferrables(t, sc, h, plan)

	for idx, minSoC := range sc.Expected.FinalSoCMin {
		if idx < 0 || idx >= len(plan.Vehicles) {
			t.Errorf("final_soc_min names vehicle %d, plan has %d", idx, len(plan.Vehicles))
			continue
		}
		soc := plan.Vehicles[idx].SoC
		if last := soc[len(soc)-1]; last < minSoC-1e-6 {
			t.Errorf("vehicle %d ends at SoC %.4f, want at least %.4f", idx, last, minSoC)
		}
	}
	if limit := sc.Expected.MaxCost; limit != nil && plan.Cost > *limit+1e-6 {
		t.Errorf("plan cost %.4f exceeds %.4f", plan.Cost, *limit)
	}
	if !plan.Committed {
		t.Errorf("optimal plan was not committed")
	}
	for _, vp := range plan.Vehicles {
		v, err := reg.Get(vp.Index)
		if err != nil {
			t.Fatalf("registry get %d: %v", vp.Index, err)
		}
		if final := vp.SoC[len(vp.SoC)-1]; math.Abs(v.SoC-final) > 1e-9 {
			t.Errorf("vehicle %d registry SoC %.6f, plan end %.6f", vp.Index, v.SoC, final)
		}
	}
}

func verifyVehicle(t *testing.T, sc *Scenario, h model.Horizon, vp model.VehiclePlan) {
	t.Helper()

	def := sc.Vehicles[vp.Index]
	spec := def.Spec()
	avail := def.availability(h.Steps)
	if len(vp.ChargePowerW) != h.Steps || len(vp.SoC) != h.Steps+1 {
		t.Fatalf("vehicle %d series lengths %d/%d, want %d/%d",
			vp.Index, len(vp.ChargePowerW), len(vp.SoC), h.Steps, h.Steps+1)
	}

	for ti, p := range vp.ChargePowerW {
		if !avail[ti] && p > powerTol {
			t.Errorf("vehicle %d draws %.1f W at unplugged step %d", vp.Index, p, ti)
		}
		if p > spec.NominalPowerW+powerTol {
			t.Errorf("vehicle %d draws %.1f W above the %.0f W charger at step %d",
				vp.Index, p, spec.NominalPowerW, ti)
		}
		if spec.MinimumPowerW > 0 && p > powerTol && p < spec.MinimumPowerW-powerTol {
			t.Errorf("vehicle %d charges at %.1f W below the %.0f W minimum at step %d",
				vp.Index, p, spec.MinimumPowerW, ti)
		}
		if win := sc.Expected.ChargeWithin; win != nil && p > powerTol && (ti < win.From || ti > win.To) {
			t.Errorf("vehicle %d charges %.1f W at step %d outside window %d..%d",
				vp.Index, p, ti, win.From, win.To)
		}
	}

	for ti := 0; ti < h.Steps; ti++ {
		gain := spec.SoCDelta(vp.ChargePowerW[ti], h.StepHours)
		if diff := vp.SoC[ti+1] - vp.SoC[ti] - gain; math.Abs(diff) > 1e-6 {
			t.Errorf("vehicle %d SoC moves %.8f at step %d, charge power explains %.8f",
				vp.Index, vp.SoC[ti+1]-vp.SoC[ti], ti, gain)
		}
	}
	for ti, s := range vp.SoC {
		if s < -1e-9 || s > 1+1e-9 {
			t.Errorf("vehicle %d SoC %.6f out of range at boundary %d", vp.Index, s, ti)
		}
	}
	for step, km := range def.RangeRequirementsKm {
		floor := spec.SoCFloorForKm(km)
		if vp.SoC[step] < floor-1e-6 {
			t.Errorf("vehicle %d holds SoC %.4f at step %d, below the %.4f floor for %g km",
				vp.Index, vp.SoC[step], step, floor, km)
		}
	}
}

func verifyBattery(t *testing.T, sc *Scenario, h model.Horizon, plan model.DispatchPlan) {
	t.Helper()

	def := sc.Plant.Battery
	if def.CapacityWh <= 0 {
		if len(plan.BatterySoC) != 0 {
			t.Errorf("plan carries battery series for a plant without battery")
		}
		return
	}
	if len(plan.BatterySoC) != h.Steps+1 {
		t.Fatalf("battery SoC length %d, want %d", len(plan.BatterySoC), h.Steps+1)
	}
	for ti, s := range plan.BatterySoC {
		if s < def.SoCMin-1e-9 || s > def.SoCMax+1e-9 {
			t.Errorf("battery SoC %.6f outside [%.2f, %.2f] at boundary %d", s, def.SoCMin, def.SoCMax, ti)
		}
	}
	for ti := 0; ti < h.Steps; ti++ {
		if plan.BatteryChargeW[ti] > def.MaxChargeW+powerTol {
			t.Errorf("battery charges %.1f W above rating at step %d", plan.BatteryChargeW[ti], ti)
		}
		if plan.BatteryDischargeW[ti] > def.MaxDischargeW+powerTol {
			t.Errorf("battery discharges %.1f W above rating at step %d", plan.BatteryDischargeW[ti], ti)
		}
	}
}

func verifyDeferrables(t *testing.T, sc *Scenario, h model.Horizon, plan model.DispatchPlan) {
	t.Helper()

	if len(plan.Deferrables) != len(sc.Plant.Deferrables) {
		t.Fatalf("plan carries %d deferrable series, want %d", len(plan.Deferrables), len(sc.Plant.Deferrables))
	}
	for di, dp := range plan.Deferrables {
		def := sc.Plant.Deferrables[di]
		var got float64
		for ti, p := range dp.PowerW {
			got += p * h.StepHours
			if p > powerTol && (ti < def.StartStep || ti >= def.EndStep) {
				t.Errorf("load %s runs %.1f W at step %d outside %d..%d",
					dp.Name, p, ti, def.StartStep, def.EndStep)
			}
			if p > def.PowerW+powerTol {
				t.Errorf("load %s runs %.1f W above its %.0f W rating at step %d",
					dp.Name, p, def.PowerW, ti)
			}
		}
		if math.Abs(got-def.EnergyWh) > 1e-3 {
			t.Errorf("load %s delivers %.3f Wh, want %.0f", dp.Name, got, def.EnergyWh)
		}
	}
}
