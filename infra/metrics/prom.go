package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/evopt/core/metrics"
	"github.com/kilianp07/evopt/core/model"
)

// PromSink records optimization outcomes in Prometheus metrics.
type PromSink struct {
	plans    *prometheus.CounterVec
	duration prometheus.Histogram
	cost     prometheus.Gauge
	soc      *prometheus.GaugeVec
}

// NewPromSink registers plan metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusAddr.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	plans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plan_events_total",
		Help: "Total number of optimization runs by outcome",
	}, []string{"status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "plan_solve_duration_seconds",
		Help:    "Wall clock time spent solving the optimization model",
		Buckets: prometheus.DefBuckets,
	})
	cost := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "plan_cost_last",
		Help: "Net grid cost of the most recent dispatch plan",
	})
	soc := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vehicle_soc_ratio",
		Help: "Last known state of charge per vehicle",
	}, []string{"vehicle"})

	if err := reg.Register(plans); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			plans = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(cost); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cost = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(soc); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			soc = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{plans: plans, duration: duration, cost: cost, soc: soc}, nil
}

// RecordPlanResult increments the run counter and observes solve time.
func (s *PromSink) RecordPlanResult(res coremetrics.PlanResult) error {
	s.plans.WithLabelValues(string(res.Status)).Inc()
	s.duration.Observe(res.SolveTime.Seconds())
	if res.Status == model.StatusOptimal {
		s.cost.Set(res.Cost)
	}
	return nil
}

// RecordVehicleState sets the state of charge gauge for the vehicle.
func (s *PromSink) RecordVehicleState(ev coremetrics.VehicleStateEvent) error {
	s.soc.WithLabelValues(strconv.Itoa(ev.Vehicle.Index)).Set(ev.Vehicle.SoC)
	return nil
}
