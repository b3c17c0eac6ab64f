package events

import "github.com/kilianp07/evopt/core/model"

// VehicleUpdated is published when a vehicle field changes through the API
// or when a plan commits a new state of charge.
// Field is one of "soc", "availability", or "range".
type VehicleUpdated struct {
	Vehicle model.Vehicle
	Field   string
}
