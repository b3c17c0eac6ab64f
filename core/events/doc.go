// Package events defines the planning related events emitted on the event bus.
//
// Available event types:
//   - PlanRequested: an optimization run was accepted
//   - PlanCompleted: a run produced a dispatch plan
//   - PlanFailed: a run ended without a usable plan
//   - VehicleUpdated: vehicle state changed through the API
package events
