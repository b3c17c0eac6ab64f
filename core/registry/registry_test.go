package registry

import (
	"errors"
	"math"
	"testing"

	"github.com/kilianp07/evopt/core/model"
	"github.com/kilianp07/evopt/infra/logger"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	specs := []model.Vehicle{
		{
			BatteryCapacityWh:   77000,
			ChargerEfficiency:   0.9,
			NominalPowerW:       4600,
			MinimumPowerW:       1380,
			ConsumptionKWhPerKm: 0.15,
		},
		{
			BatteryCapacityWh:   52000,
			ChargerEfficiency:   0.92,
			NominalPowerW:       7400,
			MinimumPowerW:       0,
			ConsumptionKWhPerKm: 0.17,
		},
	}
	r, err := New(specs, model.Horizon{Steps: 48, StepHours: 0.5}, logger.NopLogger{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestRegistryLazyDefaults(t *testing.T) {
	r := newTestRegistry(t)

	if r.Count() != 2 {
		t.Fatalf("Count = %d, want 2", r.Count())
	}

	v, err := r.Get(0)
	if err != nil {
		t.Fatalf("Get(0): %v", err)
	}
	if v.SoC != 0 {
		t.Errorf("default soc = %g, want 0", v.SoC)
	}
	if len(v.Availability) != 48 || len(v.RangeRequirementKm) != 48 {
		t.Fatalf("default sequences sized %d/%d, want 48/48", len(v.Availability), len(v.RangeRequirementKm))
	}
	for tstep, a := range v.Availability {
		if !a {
			t.Fatalf("default availability at step %d is false, want true", tstep)
		}
	}
	for tstep, km := range v.RangeRequirementKm {
		if km != 0 {
			t.Fatalf("default range requirement at step %d is %g, want 0", tstep, km)
		}
	}
}

func TestRegistryNotFound(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.Get(2); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Get(2) = %v, want ErrNotFound", err)
	}
	if _, err := r.Get(-1); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Get(-1) = %v, want ErrNotFound", err)
	}
	if err := r.SetSoC(5, 50); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("SetSoC(5) = %v, want ErrNotFound", err)
	}
}

func TestRegistrySetSoCRoundTrip(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.SetSoC(0, 50); err != nil {
		t.Fatalf("SetSoC: %v", err)
	}
	v, err := r.Get(0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if math.Abs(v.SoC-0.5) > 1e-9 {
		t.Errorf("soc = %g, want 0.5", v.SoC)
	}
	wantRange := 0.5 * 77000 / 1000 / 0.15
	if math.Abs(v.RangeKm()-wantRange) > 1e-6 {
		t.Errorf("range = %g km, want %g km", v.RangeKm(), wantRange)
	}
}

func TestRegistrySetSoCRejectsOutOfRange(t *testing.T) {
	r := newTestRegistry(t)
	if err := r.SetSoC(0, 75); err != nil {
		t.Fatalf("SetSoC: %v", err)
	}

	for _, pct := range []float64{-1, 100.5, math.NaN(), math.Inf(1)} {
		if err := r.SetSoC(0, pct); !errors.Is(err, model.ErrInvalidInput) {
			t.Errorf("SetSoC(%g) = %v, want ErrInvalidInput", pct, err)
		}
	}

	v, _ := r.Get(0)
	if math.Abs(v.SoC-0.75) > 1e-9 {
		t.Errorf("rejected updates changed soc to %g, want 0.75 preserved", v.SoC)
	}
}

func TestRegistrySequenceLengthMismatch(t *testing.T) {
	r := newTestRegistry(t)

	avail := make([]bool, 48)
	avail[3] = true
	if err := r.SetAvailability(0, avail); err != nil {
		t.Fatalf("SetAvailability: %v", err)
	}

	if err := r.SetAvailability(0, make([]bool, 24)); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("short availability = %v, want ErrInvalidInput", err)
	}
	if err := r.SetRangeRequirements(0, make([]float64, 49)); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("long range sequence = %v, want ErrInvalidInput", err)
	}

	// Prior state survives the rejected updates.
	v, _ := r.Get(0)
	if len(v.Availability) != 48 || !v.Availability[3] || v.Availability[4] {
		t.Error("rejected update replaced the stored availability sequence")
	}
}

func TestRegistryRangeRequirementValidation(t *testing.T) {
	r := newTestRegistry(t)

	seq := make([]float64, 48)
	seq[16] = 100
	if err := r.SetRangeRequirements(0, seq); err != nil {
		t.Fatalf("SetRangeRequirements: %v", err)
	}

	bad := make([]float64, 48)
	bad[0] = -5
	if err := r.SetRangeRequirements(0, bad); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("negative km = %v, want ErrInvalidInput", err)
	}
	bad[0] = math.NaN()
	if err := r.SetRangeRequirements(0, bad); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("NaN km = %v, want ErrInvalidInput", err)
	}

	v, _ := r.Get(0)
	if v.RangeRequirementKm[16] != 100 {
		t.Error("rejected update replaced the stored range sequence")
	}
}

func TestRegistrySnapshotIsolation(t *testing.T) {
	r := newTestRegistry(t)

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot size %d, want 2", len(snap))
	}

	snap[0].Availability[0] = false
	snap[0].SoC = 0.99

	v, _ := r.Get(0)
	if !v.Availability[0] {
		t.Error("snapshot mutation reached registry availability")
	}
	if v.SoC != 0 {
		t.Error("snapshot mutation reached registry soc")
	}
}

func TestRegistryCommitSoC(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.CommitSoC(1, 0.8123); err != nil {
		t.Fatalf("CommitSoC: %v", err)
	}
	v, _ := r.Get(1)
	if math.Abs(v.SoC-0.8123) > 1e-9 {
		t.Errorf("committed soc = %g, want 0.8123", v.SoC)
	}

	if err := r.CommitSoC(1, 1.2); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("CommitSoC(1.2) = %v, want ErrInvalidInput", err)
	}
}

func TestRegistryRejectsBadSpecs(t *testing.T) {
	specs := []model.Vehicle{{
		BatteryCapacityWh:   0,
		ChargerEfficiency:   0.9,
		NominalPowerW:       4600,
		ConsumptionKWhPerKm: 0.15,
	}}
	if _, err := New(specs, model.Horizon{Steps: 48, StepHours: 0.5}, logger.NopLogger{}); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("New with zero capacity = %v, want ErrInvalidInput", err)
	}

	specs[0].BatteryCapacityWh = 77000
	specs[0].SoC = 1.5
	if _, err := New(specs, model.Horizon{Steps: 48, StepHours: 0.5}, logger.NopLogger{}); !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("New with soc 1.5 = %v, want ErrInvalidInput", err)
	}
}
