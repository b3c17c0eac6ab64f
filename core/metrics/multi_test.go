package metrics

import "testing"

// TestMultiSink ensures events are forwarded to all sinks.

type recordSink struct {
	count int
}

func (r *recordSink) RecordPlanResult(PlanResult) error {
	r.count++
	return nil
}

func (r *recordSink) RecordVehicleState(VehicleStateEvent) error {
	r.count++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordPlanResult(PlanResult{}); err != nil {
		t.Fatalf("record result: %v", err)
	}
	if err := m.RecordVehicleState(VehicleStateEvent{}); err != nil {
		t.Fatalf("record state: %v", err)
	}
	if s1.count != 2 || s2.count != 2 {
		t.Fatalf("results not forwarded")
	}
}

// TestMultiSink_SkipsUnsupported verifies that plain sinks without the
// optional recorder interfaces are silently skipped.
func TestMultiSink_SkipsUnsupported(t *testing.T) {
	m := NewMultiSink(NopSink{})
	if err := m.RecordSolver(SolverEvent{}); err != nil {
		t.Fatalf("record solver: %v", err)
	}
}
