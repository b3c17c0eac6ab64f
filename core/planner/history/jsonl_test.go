package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/evopt/core/model"
)

func TestJSONLStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.jsonl")
	store, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	recs := []Record{
		{Timestamp: now, PlanID: "a", Status: model.StatusOptimal},
		{Timestamp: now.Add(time.Hour), PlanID: "b", Status: model.StatusInfeasible, Error: "no feasible dispatch"},
	}
	for _, r := range recs {
		if err := store.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	out, err := store.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if out[1].Error == "" {
		t.Fatalf("error detail lost: %+v", out[1])
	}

	// Time window excludes the second record.
	out, err = store.Query(ctx, Query{End: now.Add(time.Minute)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 || out[0].PlanID != "a" {
		t.Fatalf("window filter failed: %+v", out)
	}
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	imp := make([]float64, 48)
	exp := make([]float64, 48)
	for i := range imp {
		imp[i] = 1234.56789
		exp[i] = 9876.54321
	}
	plan := model.DispatchPlan{
		Horizon:     model.Horizon{Steps: 48, StepHours: 0.5},
		GridImportW: imp,
		GridExportW: exp,
	}
	rec := Record{Timestamp: time.Now(), Status: model.StatusOptimal, Plan: &plan}
	// Each record weighs roughly a kilobyte; enough of them cross the 1 MB limit.
	for i := 0; i < 2000; i++ {
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	files, _ := filepath.Glob(path + "*")
	if len(files) < 2 {
		t.Fatalf("expected rotated files, got %v", files)
	}
}

func TestRotatingJSONLStore_Query(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	now := time.Now()
	_ = store.Append(context.Background(), Record{Timestamp: now, PlanID: "p", Status: model.StatusOptimal})
	out, err := store.Query(context.Background(), Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("expected records")
	}
}

func TestNewStore_BackendSelection(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{}
	cfg.SetDefaults()
	if cfg.Backend != "jsonl" {
		t.Fatalf("unexpected default backend %s", cfg.Backend)
	}

	cfg = Config{Backend: "sqlite", Path: filepath.Join(dir, "plans.db")}
	s, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	if _, ok := s.(*SQLiteStore); !ok {
		t.Fatalf("expected SQLiteStore, got %T", s)
	}
	_ = s.Close()

	cfg = Config{Backend: "jsonl", Path: filepath.Join(dir, "plans.jsonl"), MaxSizeMB: 5}
	s, err = NewStore(cfg)
	if err != nil {
		t.Fatalf("new rotating store: %v", err)
	}
	if _, ok := s.(*RotatingJSONLStore); !ok {
		t.Fatalf("expected RotatingJSONLStore, got %T", s)
	}
	_ = s.Close()

	if _, err := NewStore(Config{Backend: "bolt", Path: "x"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
