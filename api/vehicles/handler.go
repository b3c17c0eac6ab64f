// Package vehicles exposes fleet state over HTTP: status reads plus the
// three runtime updates (state of charge, availability, range requirements).
package vehicles

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/kilianp07/evopt/core/events"
	"github.com/kilianp07/evopt/core/model"
	"github.com/kilianp07/evopt/internal/eventbus"
)

// Fleet is the registry surface the handler needs.
type Fleet interface {
	Snapshot() []model.Vehicle
	Get(index int) (model.Vehicle, error)
	SetSoC(index int, percent float64) error
	SetAvailability(index int, seq []bool) error
	SetRangeRequirements(index int, seq []float64) error
}

// Status is the JSON view of one vehicle.
type Status struct {
	Index              int       `json:"index"`
	SoCPercent         float64   `json:"soc_percent"`
	EnergyWh           float64   `json:"energy_wh"`
	RangeKm            float64   `json:"range_km"`
	BatteryCapacityWh  float64   `json:"battery_capacity_wh"`
	NominalPowerW      float64   `json:"nominal_power_w"`
	Availability       []bool    `json:"availability"`
	RangeRequirementKm []float64 `json:"range_requirement_km"`
}

func statusOf(v model.Vehicle) Status {
	return Status{
		Index:              v.Index,
		SoCPercent:         v.SoC * 100,
		EnergyWh:           v.EnergyWh(),
		RangeKm:            v.RangeKm(),
		BatteryCapacityWh:  v.BatteryCapacityWh,
		NominalPowerW:      v.NominalPowerW,
		Availability:       v.Availability,
		RangeRequirementKm: v.RangeRequirementKm,
	}
}

// SoCUpdate carries a state-of-charge update in percent.
type SoCUpdate struct {
	SoCPercent float64 `json:"soc_percent"`
}

// AvailabilityUpdate carries a per-step plugged-in sequence.
type AvailabilityUpdate struct {
	Availability []bool `json:"availability"`
}

// RangeUpdate carries a per-step minimum driving range sequence in km.
type RangeUpdate struct {
	RangeKm []float64 `json:"range_km"`
}

type handler struct {
	fleet Fleet
	bus   eventbus.EventBus[any]
	token string
}

// NewHandler returns an HTTP handler serving the /api/vehicles tree.
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty.
func NewHandler(fleet Fleet, bus eventbus.EventBus[any], token string) http.Handler {
	h := &handler{fleet: fleet, bus: bus, token: token}
	return http.HandlerFunc(h.serve)
}

func (h *handler) serve(w http.ResponseWriter, r *http.Request) {
	if h.token != "" {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+h.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/vehicles"), "/")
	if rest == "" {
		h.list(w, r)
		return
	}
	parts := strings.SplitN(rest, "/", 2)
	index, err := strconv.Atoi(parts[0])
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if len(parts) == 1 {
		h.get(w, r, index)
		return
	}
	switch parts[1] {
	case "soc":
		h.putSoC(w, r, index)
	case "availability":
		h.putAvailability(w, r, index)
	case "range":
		h.putRange(w, r, index)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *handler) list(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snapshot := h.fleet.Snapshot()
	out := make([]Status, len(snapshot))
	for i, v := range snapshot {
		out[i] = statusOf(v)
	}
	writeJSON(w, out)
}

func (h *handler) get(w http.ResponseWriter, r *http.Request, index int) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, err := h.fleet.Get(index)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, statusOf(v))
}

func (h *handler) putSoC(w http.ResponseWriter, r *http.Request, index int) {
	var upd SoCUpdate
	if !h.decode(w, r, &upd) {
		return
	}
	if err := h.fleet.SetSoC(index, upd.SoCPercent); err != nil {
		writeErr(w, err)
		return
	}
	h.updated(w, index, "soc")
}

func (h *handler) putAvailability(w http.ResponseWriter, r *http.Request, index int) {
	var upd AvailabilityUpdate
	if !h.decode(w, r, &upd) {
		return
	}
	if err := h.fleet.SetAvailability(index, upd.Availability); err != nil {
		writeErr(w, err)
		return
	}
	h.updated(w, index, "availability")
}

func (h *handler) putRange(w http.ResponseWriter, r *http.Request, index int) {
	var upd RangeUpdate
	if !h.decode(w, r, &upd) {
		return
	}
	if err := h.fleet.SetRangeRequirements(index, upd.RangeKm); err != nil {
		writeErr(w, err)
		return
	}
	h.updated(w, index, "range")
}

// decode rejects non-PUT methods and malformed bodies. It reports whether
// the caller should proceed.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return false
	}
	return true
}

// updated responds with the fresh vehicle view and notifies subscribers.
func (h *handler) updated(w http.ResponseWriter, index int, field string) {
	v, err := h.fleet.Get(index)
	if err != nil {
		writeErr(w, err)
		return
	}
	if h.bus != nil {
		h.bus.Publish(events.VehicleUpdated{Vehicle: v, Field: field})
	}
	writeJSON(w, statusOf(v))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, model.ErrInfeasible):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrTimedOut):
		code = http.StatusGatewayTimeout
	}
	http.Error(w, err.Error(), code)
}
