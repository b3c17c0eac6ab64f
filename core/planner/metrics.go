package planner

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	planRuns       *prometheus.CounterVec
	planRejected   prometheus.Counter
	solveDuration  prometheus.Histogram
	solverNodes    prometheus.Histogram
	publishSuccess prometheus.Counter
	publishFailure prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Counter, prometheus.Histogram, prometheus.Histogram, prometheus.Counter, prometheus.Counter) {
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_runs_total",
			Help: "Number of optimization runs by outcome",
		},
		[]string{"status"},
	)
	rejected := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "planner_rejected_total",
			Help: "Requests that timed out waiting for an in-flight run",
		},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planner_solve_duration_seconds",
			Help:    "Wall clock time from model build to extracted plan",
			Buckets: prometheus.DefBuckets,
		},
	)
	nodes := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planner_solver_nodes",
			Help:    "Branch and bound nodes explored per run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
	suc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "plan_publish_success_total",
			Help: "Number of successful plan publish operations",
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "plan_publish_failure_total",
			Help: "Number of failed plan publish operations",
		},
	)
	return runs, rejected, dur, nodes, suc, fail
}

func init() {
	planRuns, planRejected, solveDuration, solverNodes, publishSuccess, publishFailure = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers planner metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(planRuns, planRejected, solveDuration, solverNodes, publishSuccess, publishFailure)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	planRuns, planRejected, solveDuration, solverNodes, publishSuccess, publishFailure = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
