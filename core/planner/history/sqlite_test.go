package history

import (
	"context"
	"testing"
	"time"

	"github.com/kilianp07/evopt/core/model"
)

func TestSQLiteStore_PersistQuery(t *testing.T) {
	store, err := NewSQLiteStore("file:test.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	rec := Record{
		Timestamp: time.Now(),
		PlanID:    "plan-1",
		Status:    model.StatusOptimal,
		Trigger:   "api",
		Plan: &model.DispatchPlan{
			ID:          "plan-1",
			Status:      model.StatusOptimal,
			Horizon:     model.Horizon{Steps: 2, StepHours: 0.5},
			Cost:        1.5,
			GridImportW: []float64{100, 0},
			GridExportW: []float64{0, 0},
		},
	}
	if err := store.Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}
	out, err := store.Query(context.Background(), Query{Status: model.StatusOptimal})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].Plan == nil || out[0].Plan.Cost != 1.5 {
		t.Fatalf("plan not preserved: %+v", out[0])
	}
}

func TestSQLiteStore_StatusFilter(t *testing.T) {
	store, err := NewSQLiteStore("file:filter.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()
	now := time.Now()
	for i, st := range []model.Status{model.StatusOptimal, model.StatusInfeasible, model.StatusOptimal} {
		rec := Record{Timestamp: now.Add(time.Duration(i) * time.Minute), PlanID: "p", Status: st}
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	out, err := store.Query(ctx, Query{Status: model.StatusInfeasible})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 infeasible record, got %d", len(out))
	}
	out, err = store.Query(ctx, Query{Limit: 2})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records with limit, got %d", len(out))
	}
	if out[len(out)-1].Status != model.StatusOptimal {
		t.Fatalf("expected most recent record last")
	}
}
