package storage

import (
	"context"
	"testing"

	"keysmith/internal/model"
)

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	run := model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              "run-1",
		CreatedAtUTC:    "2026-08-26T10:00:00Z",
		KeymapPath:      "keymap.txt",
		LogPath:         "keys.log",
		Seed:            42,
		PopulationSize:  1000,
		EliteCount:      50,
		Generations:     200,
		FinalBestCost:   3.25,
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	loaded, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted run")
	}
	if loaded.Seed != 42 || loaded.FinalBestCost != 3.25 {
		t.Fatalf("unexpected run: %+v", loaded)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing run lookup: ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreListRunsOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, run := range []model.RunRecord{
		{ID: "run-b", CreatedAtUTC: "2026-08-26T12:00:00Z"},
		{ID: "run-a", CreatedAtUTC: "2026-08-26T10:00:00Z"},
		{ID: "run-c", CreatedAtUTC: "2026-08-26T10:00:00Z"},
	} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	want := []string{"run-a", "run-c", "run-b"}
	for i, id := range want {
		if runs[i].ID != id {
			t.Fatalf("run order: got %s at %d, want %s", runs[i].ID, i, id)
		}
	}
}

func TestMemoryStoreBestLayoutRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	best := model.BestLayoutRecord{
		VersionedRecord: CurrentVersion(),
		RunID:           "run-1",
		LayoutID:        "g12-i3",
		Keys:            []string{"Q", "W", "E"},
		Cost:            4.5,
		Grid:            "rendered grid",
	}
	if err := store.SaveBestLayout(ctx, best); err != nil {
		t.Fatalf("save best layout: %v", err)
	}

	loaded, ok, err := store.GetBestLayout(ctx, "run-1")
	if err != nil {
		t.Fatalf("get best layout: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted best layout")
	}
	if loaded.LayoutID != "g12-i3" || loaded.Cost != 4.5 || len(loaded.Keys) != 3 {
		t.Fatalf("unexpected best layout: %+v", loaded)
	}

	// Returned slices are copies, not views into the store.
	loaded.Keys[0] = "X"
	again, _, err := store.GetBestLayout(ctx, "run-1")
	if err != nil {
		t.Fatalf("get best layout: %v", err)
	}
	if again.Keys[0] != "Q" {
		t.Fatal("store contents were mutated through a returned record")
	}
}

func TestMemoryStoreFitnessHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []float64{6.0, 4.5, 3.25}
	if err := store.SaveFitnessHistory(ctx, "run-1", input); err != nil {
		t.Fatalf("save history: %v", err)
	}
	output, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted fitness history")
	}
	if len(output) != len(input) || output[2] != input[2] {
		t.Fatalf("unexpected history: %+v", output)
	}
}

func TestMemoryStoreGenerationDiagnosticsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.GenerationDiagnostics{
		{Generation: 1, BestCost: 6.0, MeanCost: 8.0, WorstCost: 10.0, Diversity: 0.8, Temperature: 1.0},
		{Generation: 2, BestCost: 4.5, MeanCost: 7.0, WorstCost: 9.5, Diversity: 0.7, Temperature: 0.8},
	}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", input); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	output, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil {
		t.Fatalf("get diagnostics: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted diagnostics")
	}
	if len(output) != len(input) || output[1].Temperature != input[1].Temperature {
		t.Fatalf("unexpected diagnostics: %+v", output)
	}
}
