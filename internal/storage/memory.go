package storage

import (
	"context"
	"sort"
	"sync"

	"metatask/internal/model"
)

type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[string]model.RunRecord
	history   map[string][]float64
	summaries map[string]model.FamilySummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:      make(map[string]model.RunRecord),
		history:   make(map[string][]float64),
		summaries: make(map[string]model.FamilySummary),
	}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]model.RunRecord)
	s.history = make(map[string][]float64)
	s.summaries = make(map[string]model.FamilySummary)
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAtUTC != out[j].CreatedAtUTC {
			return out[i].CreatedAtUTC > out[j].CreatedAtUTC
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SaveLossHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetLossHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}

func (s *MemoryStore) SaveFamilySummary(_ context.Context, summary model.FamilySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries[summary.Name] = summary
	return nil
}

func (s *MemoryStore) GetFamilySummary(_ context.Context, name string) (model.FamilySummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[name]
	return summary, ok, nil
}
