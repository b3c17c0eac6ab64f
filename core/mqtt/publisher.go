package mqtt

import "github.com/kilianp07/evopt/core/model"

// Publisher delivers dispatch plans to external consumers such as charge
// controllers or home automation dashboards.
type Publisher interface {
	// PublishPlan sends the complete plan and the per-vehicle setpoints
	// for the next timestep.
	PublishPlan(plan model.DispatchPlan) error
}
