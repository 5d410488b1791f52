package storage

import (
	"context"

	"metatask/internal/model"
)

// Store defines persistence operations for run artifacts.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveLossHistory(ctx context.Context, runID string, history []float64) error
	GetLossHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveFamilySummary(ctx context.Context, summary model.FamilySummary) error
	GetFamilySummary(ctx context.Context, name string) (model.FamilySummary, bool, error)
}

// Resetter is an optional Store capability used by test and reset flows.
type Resetter interface {
	Reset(ctx context.Context) error
}
