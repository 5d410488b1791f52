package family

import (
	"context"
	"fmt"
	"math/rand"

	"metatask/internal/dataset"
	"metatask/internal/tensor"
)

const (
	noiseDataField  = "data"
	noiseParamField = "w"
)

// NoiseMimicTask is a fixed data-driven task: each batch is fresh Gaussian
// noise and loss(params) = sum((params - data)^2). It exists to exercise the
// dataset handle discipline with the simplest possible data dependence.
type NoiseMimicTask struct {
	dim      int
	datasets *dataset.Handle
}

// NewNoiseMimicTask builds the task with a dataset handle drawn from cache.
// Equal dims resolve to one shared handle.
func NewNoiseMimicTask(cache *dataset.Cache, dim int, seed int64) (*NoiseMimicTask, error) {
	if cache == nil {
		return nil, fmt.Errorf("dataset cache is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("dim must be > 0")
	}

	splitSeeds := map[dataset.Split]int64{
		dataset.SplitTrain:      seed,
		dataset.SplitInnerValid: seed + 1,
		dataset.SplitOuterValid: seed + 2,
		dataset.SplitTest:       seed + 3,
	}
	handle, err := cache.Handle(
		dataset.CacheKey("gaussian-noise", dim, seed),
		func(split dataset.Split) (dataset.Iterator, error) {
			return dataset.NewNoiseIterator(tensor.Shape{noiseDataField: dim}, splitSeeds[split])
		},
	)
	if err != nil {
		return nil, err
	}

	return &NoiseMimicTask{dim: dim, datasets: handle}, nil
}

func (t *NoiseMimicTask) Name() string {
	return fmt.Sprintf("noise-mimic-dim%d", t.dim)
}

func (t *NoiseMimicTask) Datasets() *dataset.Handle {
	return t.datasets
}

func (t *NoiseMimicTask) Init(seed int64) (tensor.Tree, tensor.Tree, error) {
	rng := rand.New(rand.NewSource(seed))
	params := make(tensor.Vector, t.dim)
	for i := range params {
		params[i] = rng.NormFloat64()
	}
	return tensor.Tree{noiseParamField: params}, nil, nil
}

func (t *NoiseMimicTask) Loss(ctx context.Context, params, state tensor.Tree, _ int64, batch tensor.Tree) (float64, tensor.Tree, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	w, ok := params[noiseParamField]
	if !ok || len(w) != t.dim {
		return 0, nil, fmt.Errorf("params shape mismatch: got=%s want={%s[%d]}", tensor.ShapeOf(params), noiseParamField, t.dim)
	}
	data, ok := batch[noiseDataField]
	if !ok || len(data) != t.dim {
		return 0, nil, fmt.Errorf("batch shape mismatch: got=%s want={%s[%d]}", tensor.ShapeOf(batch), noiseDataField, t.dim)
	}

	sum := 0.0
	for i := range w {
		delta := w[i] - data[i]
		sum += delta * delta
	}
	return sum, state, nil
}
