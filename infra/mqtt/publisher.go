package mqtt

import (
	"fmt"
	"sync"

	"github.com/kilianp07/evopt/core/model"
	coremqtt "github.com/kilianp07/evopt/core/mqtt"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// MockPublisher is a simple publisher used in tests.
type MockPublisher struct {
	Plans []model.DispatchPlan
	Fail  bool
	mu    sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishPlan records the plan or returns an error if configured to fail.
func (m *MockPublisher) PublishPlan(plan model.DispatchPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return fmt.Errorf("publish failed")
	}
	m.Plans = append(m.Plans, plan)
	return nil
}

// Published returns the plans captured so far.
func (m *MockPublisher) Published() []model.DispatchPlan {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.DispatchPlan, len(m.Plans))
	copy(out, m.Plans)
	return out
}
