package task

import (
	"context"

	"metatask/internal/dataset"
	"metatask/internal/tensor"
)

// Task is a single optimization problem: a parameter initializer plus a pure
// loss function. Tasks hold no evolving state; params and state live with the
// caller and are threaded through Loss.
type Task interface {
	Name() string

	// Init allocates params and state deterministically from seed. State may
	// be nil for stateless tasks.
	Init(seed int64) (params, state tensor.Tree, err error)

	// Loss scores params on one batch. It must be a pure function of its
	// inputs so population-level batched execution stays valid. Data-free
	// tasks ignore batch; callers pass nil for them.
	Loss(ctx context.Context, params, state tensor.Tree, seed int64, batch tensor.Tree) (loss float64, newState tensor.Tree, err error)
}

// Family is a distribution over Tasks: a config sampler and a factory.
//
// Families must hold the static-shape invariant: Sample returns one fixed
// shape for every seed, and TaskFn builds tasks whose Init/Loss structure is
// identical regardless of config values. Only numeric content may vary with
// the config. Variation that changes computation structure (layer counts,
// branch selection, field sets) is out of contract; expose separate Family
// values for each structure instead. Degenerate families still return a
// fixed-shape placeholder config, never nil.
type Family interface {
	Name() string

	// Sample draws a config deterministically from seed. The seed acts only
	// as a randomness source; configs for different seeds differ in values,
	// never in shape.
	Sample(seed int64) (tensor.Tree, error)

	// TaskFn builds a fully formed Task from one non-batched config.
	TaskFn(cfg tensor.Tree) (Task, error)
}

// DatasetProvider is an optional Family or Task capability. When present,
// every task produced by the family references this single shared handle
// instead of constructing its own, preserving the cache sharing discipline.
type DatasetProvider interface {
	Datasets() *dataset.Handle
}

// DatasetsOf returns the shared dataset handle of v when it provides one.
func DatasetsOf(v any) (*dataset.Handle, bool) {
	provider, ok := v.(DatasetProvider)
	if !ok {
		return nil, false
	}
	handle := provider.Datasets()
	return handle, handle != nil
}
