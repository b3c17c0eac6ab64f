package metrics

// MultiSink fans plan results out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPlanResult forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordPlanResult(res PlanResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordPlanResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordVehicleState forwards vehicle snapshots to sinks that support them.
func (m *MultiSink) RecordVehicleState(ev VehicleStateEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(VehicleStateRecorder); ok {
			if err := rec.RecordVehicleState(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSolver forwards solver statistics to sinks that support them.
func (m *MultiSink) RecordSolver(ev SolverEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(SolverRecorder); ok {
			if err := rec.RecordSolver(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
