package planner

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/kilianp07/evopt/core/events"
	"github.com/kilianp07/evopt/core/forecast"
	"github.com/kilianp07/evopt/core/metrics"
	"github.com/kilianp07/evopt/core/milp"
	"github.com/kilianp07/evopt/core/model"
	"github.com/kilianp07/evopt/core/optim"
	"github.com/kilianp07/evopt/core/planner/history"
	"github.com/kilianp07/evopt/core/registry"
	"github.com/kilianp07/evopt/infra/logger"
	"github.com/kilianp07/evopt/infra/mqtt"
	"github.com/kilianp07/evopt/internal/eventbus"
)

type fakeSink struct {
	metrics.NopSink
	mu      sync.Mutex
	results []metrics.PlanResult
}

func (f *fakeSink) RecordPlanResult(res metrics.PlanResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, res)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

type fakeStore struct {
	recs []history.Record
}

func (f *fakeStore) Append(_ context.Context, rec history.Record) error {
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeStore) Query(_ context.Context, _ history.Query) ([]history.Record, error) {
	return f.recs, nil
}

func (f *fakeStore) Close() error { return nil }

type testEnv struct {
	mgr   *PlanManager
	reg   *registry.Registry
	sink  *fakeSink
	store *fakeStore
	pub   *mqtt.MockPublisher
	bus   *eventbus.Bus[any]
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	h := model.Horizon{Steps: 4, StepHours: 0.5}
	specs := []model.Vehicle{{
		BatteryCapacityWh:   50000,
		ChargerEfficiency:   0.95,
		NominalPowerW:       7360,
		ConsumptionKWhPerKm: 0.15,
		SoC:                 0.2,
	}}
	reg, err := registry.New(specs, h, logger.NopLogger{})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	fc, err := forecast.NewBuilder(h, forecast.Defaults{BuyPrice: 0.2, SellPrice: 0.05}, 0.25, 1, logger.NopLogger{})
	if err != nil {
		t.Fatalf("forecast builder: %v", err)
	}
	params := optim.Params{}
	params.SetDefaults()
	builder, err := optim.NewBuilder(params, logger.NopLogger{})
	if err != nil {
		t.Fatalf("model builder: %v", err)
	}
	plant := optim.Plant{Grid: model.Grid{MaxImportW: 20000, MaxExportW: 20000}}

	sink := &fakeSink{}
	store := &fakeStore{}
	pub := mqtt.NewMockPublisher()
	bus := eventbus.New[any]()

	mgr, err := NewPlanManager(reg, fc, builder, plant, cfg, pub, sink, bus, logger.NopLogger{})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	mgr.SetHistoryStore(store)
	return &testEnv{mgr: mgr, reg: reg, sink: sink, store: store, pub: pub, bus: bus}
}

func TestNewPlanManager_NilParam(t *testing.T) {
	if _, err := NewPlanManager(nil, nil, nil, optim.Plant{}, Config{}, nil, nil, nil, logger.NopLogger{}); err == nil {
		t.Fatal("expected error for nil parameters")
	}
}

func TestPlanManager_OptimalCommitsSoC(t *testing.T) {
	env := newTestEnv(t, Config{})
	if err := env.reg.SetRangeRequirements(0, []float64{0, 0, 0, 100}); err != nil {
		t.Fatalf("set requirements: %v", err)
	}

	plan, err := env.mgr.Plan(context.Background(), forecast.Input{}, "test")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Status != model.StatusOptimal {
		t.Fatalf("expected optimal got %s", plan.Status)
	}
	if plan.ID == "" {
		t.Fatal("expected a plan id")
	}
	if !plan.Committed {
		t.Fatal("expected plan to be committed")
	}
	if len(plan.Vehicles) != 1 || len(plan.Vehicles[0].SoC) != 5 {
		t.Fatalf("unexpected vehicle series: %+v", plan.Vehicles)
	}
	final := plan.Vehicles[0].SoC[4]
	if final < 0.3-1e-6 {
		t.Fatalf("final soc %g below the 100 km floor", final)
	}
	v, err := env.reg.Get(0)
	if err != nil {
		t.Fatalf("get vehicle: %v", err)
	}
	if math.Abs(v.SoC-final) > 1e-9 {
		t.Fatalf("registry soc %g, plan final soc %g", v.SoC, final)
	}

	if got := len(env.pub.Published()); got != 1 {
		t.Fatalf("expected 1 published plan got %d", got)
	}
	if len(env.sink.results) != 1 {
		t.Fatalf("expected 1 sink result got %d", len(env.sink.results))
	}
	res := env.sink.results[0]
	if res.Status != model.StatusOptimal || res.PlanID != plan.ID || res.Steps != 4 || res.Vehicles != 1 {
		t.Fatalf("unexpected sink result: %+v", res)
	}
	if len(env.store.recs) != 1 {
		t.Fatalf("expected 1 history record got %d", len(env.store.recs))
	}
	rec := env.store.recs[0]
	if rec.Trigger != "test" || rec.Plan == nil || rec.Plan.ID != plan.ID {
		t.Fatalf("unexpected history record: %+v", rec)
	}

	last, ok := env.mgr.LastPlan()
	if !ok || last.ID != plan.ID {
		t.Fatalf("last plan not stored: ok=%v id=%s", ok, last.ID)
	}
}

func TestPlanManager_DryRunLeavesRegistry(t *testing.T) {
	env := newTestEnv(t, Config{DryRun: true})
	if err := env.reg.SetRangeRequirements(0, []float64{0, 0, 0, 100}); err != nil {
		t.Fatalf("set requirements: %v", err)
	}

	plan, err := env.mgr.Plan(context.Background(), forecast.Input{}, "test")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Committed {
		t.Fatal("dry run must not mark the plan committed")
	}
	v, err := env.reg.Get(0)
	if err != nil {
		t.Fatalf("get vehicle: %v", err)
	}
	if v.SoC != 0.2 {
		t.Fatalf("dry run mutated registry soc to %g", v.SoC)
	}
}

func TestPlanManager_InvalidInputNotRecorded(t *testing.T) {
	env := newTestEnv(t, Config{})

	_, err := env.mgr.Plan(context.Background(), forecast.Input{PVW: []float64{1, 2}}, "test")
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Fatalf("expected invalid input got %v", err)
	}
	if len(env.sink.results) != 0 || len(env.store.recs) != 0 {
		t.Fatalf("rejected input must not be recorded: %d results, %d records",
			len(env.sink.results), len(env.store.recs))
	}
}

func TestPlanManager_InfeasibleRecorded(t *testing.T) {
	env := newTestEnv(t, Config{})
	if err := env.reg.SetRangeRequirements(0, []float64{10000, 0, 0, 0}); err != nil {
		t.Fatalf("set requirements: %v", err)
	}

	_, err := env.mgr.Plan(context.Background(), forecast.Input{}, "test")
	if !errors.Is(err, model.ErrInfeasible) {
		t.Fatalf("expected infeasible got %v", err)
	}
	if len(env.sink.results) != 1 || env.sink.results[0].Status != model.StatusInfeasible {
		t.Fatalf("unexpected sink results: %+v", env.sink.results)
	}
	if len(env.store.recs) != 1 {
		t.Fatalf("expected 1 history record got %d", len(env.store.recs))
	}
	rec := env.store.recs[0]
	if rec.Status != model.StatusInfeasible || rec.Error == "" || rec.Plan != nil {
		t.Fatalf("unexpected history record: %+v", rec)
	}
	v, err := env.reg.Get(0)
	if err != nil {
		t.Fatalf("get vehicle: %v", err)
	}
	if v.SoC != 0.2 {
		t.Fatalf("failed run mutated registry soc to %g", v.SoC)
	}
}

func TestPlanManager_GateTimeout(t *testing.T) {
	env := newTestEnv(t, Config{RequestTimeoutSeconds: 1})
	env.mgr.gate <- struct{}{}
	defer func() { <-env.mgr.gate }()

	_, err := env.mgr.Plan(context.Background(), forecast.Input{}, "test")
	if !errors.Is(err, model.ErrTimedOut) {
		t.Fatalf("expected timed out got %v", err)
	}
	if len(env.sink.results) != 0 || len(env.store.recs) != 0 {
		t.Fatal("gate rejection must not be recorded as a run")
	}
}

func TestPlanManager_CanceledContext(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.mgr.gate <- struct{}{}
	defer func() { <-env.mgr.gate }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := env.mgr.Plan(ctx, forecast.Input{}, "test")
	if !errors.Is(err, model.ErrTimedOut) {
		t.Fatalf("expected timed out got %v", err)
	}
}

func TestPlanManager_PublishFailureDoesNotFailRun(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.pub.Fail = true

	plan, err := env.mgr.Plan(context.Background(), forecast.Input{}, "test")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.Status != model.StatusOptimal {
		t.Fatalf("expected optimal got %s", plan.Status)
	}
	if got := len(env.pub.Published()); got != 0 {
		t.Fatalf("expected no delivered plans got %d", got)
	}
}

func TestPlanManager_Events(t *testing.T) {
	env := newTestEnv(t, Config{})
	ch := env.bus.Subscribe()
	if err := env.reg.SetRangeRequirements(0, []float64{0, 0, 0, 100}); err != nil {
		t.Fatalf("set requirements: %v", err)
	}

	if _, err := env.mgr.Plan(context.Background(), forecast.Input{}, "test"); err != nil {
		t.Fatalf("plan: %v", err)
	}

	var requested, updated, completed int
	for len(ch) > 0 {
		switch (<-ch).(type) {
		case events.PlanRequested:
			requested++
		case events.VehicleUpdated:
			updated++
		case events.PlanCompleted:
			completed++
		}
	}
	if requested != 1 || updated != 1 || completed != 1 {
		t.Fatalf("expected 1/1/1 events got %d/%d/%d", requested, updated, completed)
	}
}

func TestPlanManager_History(t *testing.T) {
	env := newTestEnv(t, Config{})
	if _, err := env.mgr.Plan(context.Background(), forecast.Input{}, "test"); err != nil {
		t.Fatalf("plan: %v", err)
	}
	recs, err := env.mgr.History(context.Background(), history.Query{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record got %d", len(recs))
	}

	env.mgr.SetHistoryStore(nil)
	if _, err := env.mgr.History(context.Background(), history.Query{}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestPlanManager_SequentialRuns(t *testing.T) {
	env := newTestEnv(t, Config{})
	for i := 0; i < 3; i++ {
		if _, err := env.mgr.Plan(context.Background(), forecast.Input{}, "test"); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if len(env.store.recs) != 3 {
		t.Fatalf("expected 3 history records got %d", len(env.store.recs))
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want model.Status
	}{
		{model.ErrInfeasible, model.StatusInfeasible},
		{milp.ErrInfeasible, model.StatusInfeasible},
		{milp.ErrUnbounded, model.StatusUnbounded},
		{model.ErrTimedOut, model.StatusTimedOut},
		{milp.ErrTimeout, model.StatusTimedOut},
		{model.ErrSolver, model.StatusError},
		{errors.New("boom"), model.StatusError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestMapSolveErr(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{milp.ErrInfeasible, model.ErrInfeasible},
		{milp.ErrUnbounded, model.ErrSolver},
		{milp.ErrTimeout, model.ErrTimedOut},
		{errors.New("boom"), model.ErrSolver},
	}
	for _, c := range cases {
		if got := mapSolveErr(c.err); !errors.Is(got, c.want) {
			t.Errorf("mapSolveErr(%v) = %v, want wrapped %v", c.err, got, c.want)
		}
	}
}
