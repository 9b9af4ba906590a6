//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"keysmith/internal/model"
)

func TestSQLiteStoreRunAndBestLayoutRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "keysmith.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	run := model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              "run-1",
		CreatedAtUTC:    "2026-08-26T10:00:00Z",
		KeymapPath:      "keymap.txt",
		LogPath:         "keys.log",
		Seed:            11,
		PopulationSize:  1000,
		EliteCount:      50,
		Generations:     100,
		FinalBestCost:   2.5,
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	loadedRun, ok, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted run")
	}
	if loadedRun != run {
		t.Fatalf("run mismatch:\n got %+v\nwant %+v", loadedRun, run)
	}

	best := model.BestLayoutRecord{
		VersionedRecord: CurrentVersion(),
		RunID:           run.ID,
		LayoutID:        "g9-i2",
		Keys:            []string{"Q", "W", "E"},
		Cost:            2.5,
		Grid:            "grid",
	}
	if err := store.SaveBestLayout(ctx, best); err != nil {
		t.Fatalf("save best layout: %v", err)
	}

	loadedBest, ok, err := store.GetBestLayout(ctx, run.ID)
	if err != nil {
		t.Fatalf("get best layout: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted best layout")
	}
	if loadedBest.LayoutID != best.LayoutID || loadedBest.Cost != best.Cost {
		t.Fatalf("best layout mismatch: %+v", loadedBest)
	}
}

func TestSQLiteStoreUpsertsBestLayout(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "keysmith.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	first := model.BestLayoutRecord{VersionedRecord: CurrentVersion(), RunID: "run-1", LayoutID: "a", Cost: 6}
	second := model.BestLayoutRecord{VersionedRecord: CurrentVersion(), RunID: "run-1", LayoutID: "b", Cost: 4}
	if err := store.SaveBestLayout(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.SaveBestLayout(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	loaded, ok, err := store.GetBestLayout(ctx, "run-1")
	if err != nil {
		t.Fatalf("get best layout: %v", err)
	}
	if !ok || loaded.LayoutID != "b" || loaded.Cost != 4 {
		t.Fatalf("expected upserted layout, got %+v ok=%v", loaded, ok)
	}
}

func TestSQLiteStoreHistoryAndDiagnostics(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "keysmith.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	history := []float64{6, 5, 4.5}
	if err := store.SaveFitnessHistory(ctx, "run-1", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	loadedHistory, ok, err := store.GetFitnessHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok || len(loadedHistory) != 3 || loadedHistory[2] != 4.5 {
		t.Fatalf("history mismatch: %+v ok=%v", loadedHistory, ok)
	}

	diagnostics := []model.GenerationDiagnostics{
		{Generation: 1, BestCost: 6, MeanCost: 8, WorstCost: 10, Diversity: 0.9, Temperature: 1.0},
	}
	if err := store.SaveGenerationDiagnostics(ctx, "run-1", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	loadedDiagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "run-1")
	if err != nil {
		t.Fatalf("get diagnostics: %v", err)
	}
	if !ok || len(loadedDiagnostics) != 1 || loadedDiagnostics[0].Temperature != 1.0 {
		t.Fatalf("diagnostics mismatch: %+v ok=%v", loadedDiagnostics, ok)
	}
}

func TestSQLiteStoreListRuns(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "keysmith.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	for _, run := range []model.RunRecord{
		{VersionedRecord: CurrentVersion(), ID: "run-b", CreatedAtUTC: "2026-08-26T12:00:00Z"},
		{VersionedRecord: CurrentVersion(), ID: "run-a", CreatedAtUTC: "2026-08-26T10:00:00Z"},
	} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-a" || runs[1].ID != "run-b" {
		t.Fatalf("unexpected run order: %+v", runs)
	}
}
