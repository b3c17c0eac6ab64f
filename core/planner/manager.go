package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/evopt/core/events"
	"github.com/kilianp07/evopt/core/forecast"
	"github.com/kilianp07/evopt/core/logger"
	"github.com/kilianp07/evopt/core/metrics"
	"github.com/kilianp07/evopt/core/milp"
	"github.com/kilianp07/evopt/core/model"
	"github.com/kilianp07/evopt/core/mqtt"
	"github.com/kilianp07/evopt/core/optim"
	"github.com/kilianp07/evopt/core/planner/history"
	"github.com/kilianp07/evopt/core/registry"
	"github.com/kilianp07/evopt/internal/eventbus"
)

// PlanManager owns the optimization pipeline: it snapshots the fleet, builds
// the forecast bundle and the dispatch model, solves it and extracts the
// plan. Runs are serialized through a single slot; a request that cannot
// claim the slot within the configured timeout fails with ErrTimedOut
// instead of queueing without bound.
type PlanManager struct {
	registry  *registry.Registry
	forecasts *forecast.Builder
	builder   *optim.Builder
	plant     optim.Plant
	publisher mqtt.Publisher
	sink      metrics.MetricsSink
	bus       eventbus.EventBus[any]
	store     history.Store
	logger    logger.Logger

	reqTimeout time.Duration
	solverOpts milp.Options
	dryRun     bool

	gate chan struct{}

	mu   sync.Mutex
	last *model.DispatchPlan
}

// NewPlanManager creates a new manager. Registry, forecast builder and model
// builder are required; publisher, sink and bus may be nil.
func NewPlanManager(reg *registry.Registry, fc *forecast.Builder, builder *optim.Builder, plant optim.Plant, cfg Config, publisher mqtt.Publisher, sink metrics.MetricsSink, bus eventbus.EventBus[any], log logger.Logger) (*PlanManager, error) {
	if reg == nil || fc == nil || builder == nil || log == nil {
		return nil, fmt.Errorf("planner: nil parameter provided to NewPlanManager")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := plant.Validate(reg.Horizon()); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}

	return &PlanManager{
		registry:  reg,
		forecasts: fc,
		builder:   builder,
		plant:     plant,
		publisher: publisher,
		sink:      sink,
		bus:       bus,
		logger:    log,

		reqTimeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		solverOpts: milp.Options{
			TimeLimit: time.Duration(cfg.SolveTimeLimitSeconds) * time.Second,
			MaxNodes:  cfg.MaxNodes,
		},
		dryRun: cfg.DryRun,
		gate:   make(chan struct{}, 1),
	}, nil
}

// SetHistoryStore configures the store used to persist plan records.
func (m *PlanManager) SetHistoryStore(store history.Store) {
	m.mu.Lock()
	m.store = store
	m.mu.Unlock()
}

// SetPublisher configures the publisher receiving finished plans.
func (m *PlanManager) SetPublisher(pub mqtt.Publisher) {
	m.mu.Lock()
	m.publisher = pub
	m.mu.Unlock()
}

// Plan runs one optimization over the current fleet snapshot and the given
// forecast input. On a timeout with an incumbent the returned plan carries
// the best schedule found and status timed_out together with the error; the
// registry is advanced to the projected end-of-plan state only on an optimal
// run, and only when the manager is not in dry-run mode.
func (m *PlanManager) Plan(ctx context.Context, in forecast.Input, trigger string) (model.DispatchPlan, error) {
	if err := m.acquire(ctx); err != nil {
		planRejected.Inc()
		if m.bus != nil {
			m.bus.Publish(events.PlanFailed{Status: model.StatusTimedOut, Err: err})
		}
		m.logger.Warnf("optimization request rejected: %v", err)
		return model.DispatchPlan{}, err
	}
	defer func() { <-m.gate }()

	vehicles := m.registry.Snapshot()
	if m.bus != nil {
		m.bus.Publish(events.PlanRequested{Vehicles: len(vehicles), Steps: m.registry.Horizon().Steps})
	}

	bundle, err := m.forecasts.Build(in)
	if err != nil {
		return model.DispatchPlan{}, err
	}

	started := time.Now()
	prob, lay, err := m.builder.Build(bundle, m.plant, vehicles)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			return model.DispatchPlan{}, err
		}
		m.record(trigger, statusFor(err), nil, err, time.Since(started), 0, bundle, len(vehicles))
		return model.DispatchPlan{}, err
	}
	m.logger.Infof("solving dispatch for %d vehicles over %d steps", len(vehicles), bundle.Horizon.Steps)

	sol, err := prob.Solve(ctx, m.solverOpts)
	dur := time.Since(started)
	if err != nil {
		mapped := mapSolveErr(err)
		status := statusFor(mapped)
		if errors.Is(err, milp.ErrTimeout) && sol.X != nil {
			plan := optim.Extract(sol, lay, bundle, m.plant, vehicles)
			plan.Status = model.StatusTimedOut
			plan.SolveTime = dur
			m.record(trigger, status, &plan, mapped, dur, sol.Nodes, bundle, len(vehicles))
			return plan, mapped
		}
		m.record(trigger, status, nil, mapped, dur, sol.Nodes, bundle, len(vehicles))
		return model.DispatchPlan{}, mapped
	}

	plan := optim.Extract(sol, lay, bundle, m.plant, vehicles)
	plan.SolveTime = dur
	if !m.dryRun {
		m.commit(&plan)
	}
	m.record(trigger, model.StatusOptimal, &plan, nil, dur, sol.Nodes, bundle, len(vehicles))
	m.publish(plan)

	m.mu.Lock()
	m.last = &plan
	m.mu.Unlock()
	return plan, nil
}

// acquire claims the single run slot, waiting up to the request timeout.
func (m *PlanManager) acquire(ctx context.Context) error {
	timer := time.NewTimer(m.reqTimeout)
	defer timer.Stop()
	select {
	case m.gate <- struct{}{}:
		return nil
	case <-timer.C:
		return fmt.Errorf("another optimization is in flight: %w", model.ErrTimedOut)
	case <-ctx.Done():
		return fmt.Errorf("request abandoned while waiting: %w", model.ErrTimedOut)
	}
}

// commit advances each vehicle to its projected end-of-plan state of charge.
func (m *PlanManager) commit(plan *model.DispatchPlan) {
	committed := true
	for _, vp := range plan.Vehicles {
		if len(vp.SoC) == 0 {
			continue
		}
		if err := m.registry.CommitSoC(vp.Index, vp.SoC[len(vp.SoC)-1]); err != nil {
			m.logger.Errorf("commit soc for vehicle %d: %v", vp.Index, err)
			committed = false
			continue
		}
		if m.bus != nil {
			if v, err := m.registry.Get(vp.Index); err == nil {
				m.bus.Publish(events.VehicleUpdated{Vehicle: v, Field: "soc"})
			}
		}
	}
	plan.Committed = committed
}

// record persists the outcome of one run in the history store, the metrics
// sink and the package collectors.
func (m *PlanManager) record(trigger string, status model.Status, plan *model.DispatchPlan, runErr error, dur time.Duration, nodes int, bundle forecast.Bundle, nVehicles int) {
	planRuns.WithLabelValues(string(status)).Inc()
	solveDuration.Observe(dur.Seconds())
	solverNodes.Observe(float64(nodes))

	res := metrics.PlanResult{
		Status:    status,
		Steps:     bundle.Horizon.Steps,
		Vehicles:  nVehicles,
		SolveTime: dur,
		Nodes:     nodes,
		Time:      time.Now(),
	}
	if plan != nil {
		res.PlanID = plan.ID
		res.Objective = plan.Objective
		res.Cost = plan.Cost
	}
	if runErr != nil {
		res.Err = runErr.Error()
	}
	if err := m.sink.RecordPlanResult(res); err != nil {
		m.logger.Errorf("metrics sink error: %v", err)
	}

	m.mu.Lock()
	store := m.store
	m.mu.Unlock()
	if store != nil {
		rec := history.Record{
			Timestamp: time.Now(),
			Status:    status,
			Trigger:   trigger,
			Plan:      plan,
		}
		if plan != nil {
			rec.PlanID = plan.ID
		}
		if runErr != nil {
			rec.Error = runErr.Error()
		}
		if err := store.Append(context.Background(), rec); err != nil {
			m.logger.Errorf("history append error: %v", err)
		}
	}

	if m.bus != nil {
		if status == model.StatusOptimal && plan != nil {
			m.bus.Publish(events.PlanCompleted{Plan: *plan})
		} else {
			m.bus.Publish(events.PlanFailed{Status: status, Err: runErr})
		}
	}
}

// publish forwards the plan to the configured publisher. Delivery failures
// are logged and counted but do not fail the run.
func (m *PlanManager) publish(plan model.DispatchPlan) {
	m.mu.Lock()
	pub := m.publisher
	m.mu.Unlock()
	if pub == nil {
		return
	}
	if err := pub.PublishPlan(plan); err != nil {
		publishFailure.Inc()
		m.logger.Errorf("plan publish failed: %v", err)
		return
	}
	publishSuccess.Inc()
}

// LastPlan returns the most recent optimal plan, if any.
func (m *PlanManager) LastPlan() (model.DispatchPlan, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return model.DispatchPlan{}, false
	}
	return *m.last, true
}

// History queries the persisted run records.
func (m *PlanManager) History(ctx context.Context, q history.Query) ([]history.Record, error) {
	m.mu.Lock()
	store := m.store
	m.mu.Unlock()
	if store == nil {
		return nil, fmt.Errorf("plan history disabled: %w", model.ErrNotFound)
	}
	return store.Query(ctx, q)
}

// Close releases resources held by the manager.
func (m *PlanManager) Close() error {
	if m.bus != nil {
		m.bus.Close()
	}
	m.mu.Lock()
	store := m.store
	m.store = nil
	m.mu.Unlock()
	if store != nil {
		return store.Close()
	}
	return nil
}

// statusFor maps pipeline errors onto run outcomes.
func statusFor(err error) model.Status {
	switch {
	case errors.Is(err, model.ErrInfeasible) || errors.Is(err, milp.ErrInfeasible):
		return model.StatusInfeasible
	case errors.Is(err, milp.ErrUnbounded):
		return model.StatusUnbounded
	case errors.Is(err, model.ErrTimedOut) || errors.Is(err, milp.ErrTimeout):
		return model.StatusTimedOut
	default:
		return model.StatusError
	}
}

// mapSolveErr converts solver sentinels into the module error taxonomy.
func mapSolveErr(err error) error {
	switch {
	case errors.Is(err, milp.ErrInfeasible):
		return fmt.Errorf("%w: constraint set has no solution", model.ErrInfeasible)
	case errors.Is(err, milp.ErrUnbounded):
		return fmt.Errorf("%w: objective unbounded, check price and power limits", model.ErrSolver)
	case errors.Is(err, milp.ErrTimeout):
		return fmt.Errorf("%w: %v", model.ErrTimedOut, err)
	default:
		return fmt.Errorf("%w: %v", model.ErrSolver, err)
	}
}
