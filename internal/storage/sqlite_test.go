//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"metatask/internal/model"
)

func newInitializedSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "metatask.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init sqlite store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestSQLiteStoreRunRoundTrip(t *testing.T) {
	store := newInitializedSQLiteStore(t)
	ctx := context.Background()

	run := model.RunRecord{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		ID:              "run-1",
		Family:          "quadratic-dim10",
		Mode:            model.RunModeEvaluate,
		Seed:            7,
		Population:      16,
		MeanFinalLoss:   1.5,
		BestFinalLoss:   0.2,
		CreatedAtUTC:    "2026-01-02T03:04:05Z",
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	got, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok || got.Family != run.Family || got.Seed != run.Seed {
		t.Fatalf("run round trip mismatch: ok=%v %+v", ok, got)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestSQLiteStoreLossHistoryAndSummary(t *testing.T) {
	store := newInitializedSQLiteStore(t)
	ctx := context.Background()

	if err := store.SaveLossHistory(ctx, "run-1", []float64{2, 1, 0.5}); err != nil {
		t.Fatalf("save history: %v", err)
	}
	history, ok, err := store.GetLossHistory(ctx, "run-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if !ok || len(history) != 3 || history[2] != 0.5 {
		t.Fatalf("history round trip mismatch: ok=%v %v", ok, history)
	}

	summary := model.FamilySummary{
		VersionedRecord: model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion},
		Name:            "quadratic-dim10",
		BestLoss:        0.5,
		Runs:            1,
	}
	if err := store.SaveFamilySummary(ctx, summary); err != nil {
		t.Fatalf("save summary: %v", err)
	}
	got, ok, err := store.GetFamilySummary(ctx, "quadratic-dim10")
	if err != nil {
		t.Fatalf("get summary: %v", err)
	}
	if !ok || got.BestLoss != 0.5 {
		t.Fatalf("summary round trip mismatch: ok=%v %+v", ok, got)
	}
}

func TestSQLiteStoreReset(t *testing.T) {
	store := newInitializedSQLiteStore(t)
	ctx := context.Background()

	if err := store.SaveLossHistory(ctx, "run-1", []float64{1}); err != nil {
		t.Fatalf("save history: %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, ok, err := store.GetLossHistory(ctx, "run-1"); err != nil || ok {
		t.Fatalf("expected cleared history, ok=%v err=%v", ok, err)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "metatask.db"))
	if _, _, err := store.GetRun(context.Background(), "x"); err == nil {
		t.Fatalf("expected uninitialized store error")
	}
}
