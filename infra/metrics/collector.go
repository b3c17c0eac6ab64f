package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/evopt/core/events"
	coremetrics "github.com/kilianp07/evopt/core/metrics"
	"github.com/kilianp07/evopt/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// vehicle updates. Plan results are recorded by the plan manager itself.
// It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus[any], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(events.VehicleUpdated); ok {
					if r, ok := sink.(coremetrics.VehicleStateRecorder); ok {
						_ = r.RecordVehicleState(coremetrics.VehicleStateEvent{
							Vehicle:   e.Vehicle,
							Context:   e.Field,
							Component: "vehicle_registry",
							Time:      time.Now(),
						})
					}
				}
			}
		}
	}()
}
