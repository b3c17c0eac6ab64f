package forecast

import (
	"errors"
	"math"
	"testing"

	"github.com/kilianp07/evopt/core/model"
	"github.com/kilianp07/evopt/infra/logger"
)

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(
		model.Horizon{Steps: 4, StepHours: 0.5},
		Defaults{PVW: 0, LoadW: 500, BuyPrice: 0.2, SellPrice: 0.1},
		0.25, 1.0,
		logger.NopLogger{},
	)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

func TestBuildAppliesDefaults(t *testing.T) {
	b := newTestBuilder(t)

	bundle, err := b.Build(Input{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if bundle.Horizon.Steps != 4 || bundle.Horizon.StepHours != 0.5 {
		t.Fatalf("horizon = %+v, want 4 steps of 0.5h", bundle.Horizon)
	}
	for i := 0; i < 4; i++ {
		if bundle.PVW[i] != 0 || bundle.LoadW[i] != 500 {
			t.Errorf("step %d: pv=%g load=%g, want defaults 0/500", i, bundle.PVW[i], bundle.LoadW[i])
		}
		if bundle.BuyPrice[i] != 0.2 || bundle.SellPrice[i] != 0.1 {
			t.Errorf("step %d: buy=%g sell=%g, want defaults 0.2/0.1", i, bundle.BuyPrice[i], bundle.SellPrice[i])
		}
	}
}

func TestBuildKeepsSuppliedSeries(t *testing.T) {
	b := newTestBuilder(t)

	bundle, err := b.Build(Input{
		PVW:      []float64{0, 1000, 2000, 500},
		BuyPrice: []float64{0.3, 0.1, -0.05, 0.3},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if bundle.PVW[2] != 2000 {
		t.Errorf("pv[2] = %g, want 2000", bundle.PVW[2])
	}
	// Negative prices are legal market data.
	if bundle.BuyPrice[2] != -0.05 {
		t.Errorf("buy[2] = %g, want -0.05", bundle.BuyPrice[2])
	}
	if bundle.LoadW[0] != 500 {
		t.Errorf("load fell back to %g, want default 500", bundle.LoadW[0])
	}
}

func TestBuildRejectsLengthMismatch(t *testing.T) {
	b := newTestBuilder(t)

	_, err := b.Build(Input{LoadW: []float64{100, 100}})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("short series = %v, want ErrInvalidInput", err)
	}

	// An explicitly empty series is a mismatch, not a default request.
	_, err = b.Build(Input{PVW: []float64{}})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("empty series = %v, want ErrInvalidInput", err)
	}
}

func TestBuildRejectsBadValues(t *testing.T) {
	b := newTestBuilder(t)

	_, err := b.Build(Input{LoadW: []float64{100, -5, 100, 100}})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("negative load = %v, want ErrInvalidInput", err)
	}

	nan := []float64{0.1, math.NaN(), 0.1, 0.1}
	_, err = b.Build(Input{BuyPrice: nan})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("NaN price = %v, want ErrInvalidInput", err)
	}
}

func TestBuildStepOverrideBounds(t *testing.T) {
	b := newTestBuilder(t)

	bundle, err := b.Build(Input{StepHours: 1.0})
	if err != nil {
		t.Fatalf("Build with override: %v", err)
	}
	if bundle.Horizon.StepHours != 1.0 {
		t.Errorf("step override not applied, got %g", bundle.Horizon.StepHours)
	}

	if _, err := b.Build(Input{StepHours: 2.0}); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("override above bound = %v, want ErrInvalidInput", err)
	}
	if _, err := b.Build(Input{StepHours: 0.1}); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("override below bound = %v, want ErrInvalidInput", err)
	}
}

func TestResidual(t *testing.T) {
	b := newTestBuilder(t)
	bundle, err := b.Build(Input{
		PVW:   []float64{0, 800, 1200, 0},
		LoadW: []float64{500, 500, 500, 500},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := bundle.ResidualW(0); got != 500 {
		t.Errorf("residual[0] = %g, want 500", got)
	}
	if got := bundle.ResidualW(2); got != -700 {
		t.Errorf("residual[2] = %g, want -700", got)
	}
}
