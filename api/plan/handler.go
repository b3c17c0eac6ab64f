// Package plan exposes optimization runs and their history over HTTP.
package plan

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/evopt/core/forecast"
	"github.com/kilianp07/evopt/core/model"
	"github.com/kilianp07/evopt/core/planner/history"
)

// Planner is the manager surface the handler needs.
type Planner interface {
	Plan(ctx context.Context, in forecast.Input, trigger string) (model.DispatchPlan, error)
	LastPlan() (model.DispatchPlan, bool)
	History(ctx context.Context, q history.Query) ([]history.Record, error)
}

type handler struct {
	planner Planner
	token   string
}

// NewHandler returns an HTTP handler serving the /api/plan tree. Requests
// must include an Authorization header with "Bearer <token>" when token is
// non-empty.
func NewHandler(p Planner, token string) http.Handler {
	h := &handler{planner: p, token: token}
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
	switch strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/plan"), "/") {
	case "run":
		h.run(w, r)
	case "last":
		h.last(w, r)
	case "history":
		h.history(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// run triggers one optimization. The body optionally carries forecast
// series; an empty body plans with the configured defaults. A timed out run
// that still produced a schedule answers 504 with the partial plan as body.
func (h *handler) run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var in forecast.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	p, err := h.planner.Plan(r.Context(), in, "api")
	if err != nil {
		if p.ID != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(statusCode(err))
			if encErr := json.NewEncoder(w).Encode(p); encErr != nil {
				http.Error(w, encErr.Error(), http.StatusInternalServerError)
			}
			return
		}
		writeErr(w, err)
		return
	}
	writeJSON(w, p)
}

func (h *handler) last(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, ok := h.planner.LastPlan()
	if !ok {
		http.Error(w, "no plan yet", http.StatusNotFound)
		return
	}
	writeJSON(w, p)
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := history.Query{}
	if s := r.URL.Query().Get("start"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			q.Start = t
		}
	}
	if s := r.URL.Query().Get("end"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			q.End = t
		}
	}
	if s := r.URL.Query().Get("status"); s != "" {
		q.Status = model.Status(s)
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			q.Limit = n
		}
	}
	recs, err := h.planner.History(r.Context(), q)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, recs)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInfeasible):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrTimedOut):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeErr(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusCode(err))
}
