package family

import (
	"context"
	"fmt"
	"math/rand"

	"metatask/internal/dataset"
	"metatask/internal/tensor"
	"metatask/internal/task"
)

const (
	regressionConfigField = "w_true"
	regressionParamField  = "w"
	regressionInputField  = "x"
)

// LinearRegressionFamily samples linear regression problems that share one
// input dataset: config is the true weight vector, and loss is the mean
// squared gap between the task's predictions and the true model's on a batch
// of inputs. Every produced task references the family's single dataset
// handle, so heavy instance reuse never duplicates iterators.
type LinearRegressionFamily struct {
	dim       int
	batchSize int
	datasets  *dataset.Handle
}

func NewLinearRegressionFamily(cache *dataset.Cache, dim, batchSize int, dataSeed int64) (*LinearRegressionFamily, error) {
	if cache == nil {
		return nil, fmt.Errorf("dataset cache is required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("dim must be > 0")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0")
	}

	splitSeeds := map[dataset.Split]int64{
		dataset.SplitTrain:      dataSeed,
		dataset.SplitInnerValid: dataSeed + 1,
		dataset.SplitOuterValid: dataSeed + 2,
		dataset.SplitTest:       dataSeed + 3,
	}
	handle, err := cache.Handle(
		dataset.CacheKey("linear-regression-inputs", dim, batchSize, dataSeed),
		func(split dataset.Split) (dataset.Iterator, error) {
			return dataset.NewNoiseIterator(tensor.Shape{regressionInputField: dim * batchSize}, splitSeeds[split])
		},
	)
	if err != nil {
		return nil, err
	}

	return &LinearRegressionFamily{dim: dim, batchSize: batchSize, datasets: handle}, nil
}

func (f *LinearRegressionFamily) Name() string {
	return fmt.Sprintf("linear-regression-dim%d", f.dim)
}

func (f *LinearRegressionFamily) Datasets() *dataset.Handle {
	return f.datasets
}

func (f *LinearRegressionFamily) Sample(seed int64) (tensor.Tree, error) {
	rng := rand.New(rand.NewSource(seed))
	weights := make(tensor.Vector, f.dim)
	for i := range weights {
		weights[i] = rng.NormFloat64()
	}
	return tensor.Tree{regressionConfigField: weights}, nil
}

func (f *LinearRegressionFamily) TaskFn(cfg tensor.Tree) (task.Task, error) {
	wantShape := tensor.Shape{regressionConfigField: f.dim}
	if !tensor.ShapeOf(cfg).Equal(wantShape) {
		return nil, fmt.Errorf("config shape mismatch: got=%s want=%s", tensor.ShapeOf(cfg), wantShape)
	}

	return &linearRegressionTask{
		name:      f.Name(),
		truth:     cfg[regressionConfigField].Clone(),
		dim:       f.dim,
		batchSize: f.batchSize,
	}, nil
}

type linearRegressionTask struct {
	name      string
	truth     tensor.Vector
	dim       int
	batchSize int
}

func (t *linearRegressionTask) Name() string {
	return t.name
}

func (t *linearRegressionTask) Init(seed int64) (tensor.Tree, tensor.Tree, error) {
	rng := rand.New(rand.NewSource(seed))
	params := make(tensor.Vector, t.dim)
	for i := range params {
		params[i] = 0.1 * rng.NormFloat64()
	}
	return tensor.Tree{regressionParamField: params}, nil, nil
}

func (t *linearRegressionTask) Loss(ctx context.Context, params, state tensor.Tree, _ int64, batch tensor.Tree) (float64, tensor.Tree, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	w, ok := params[regressionParamField]
	if !ok || len(w) != t.dim {
		return 0, nil, fmt.Errorf("params shape mismatch: got=%s want={%s[%d]}", tensor.ShapeOf(params), regressionParamField, t.dim)
	}
	inputs, ok := batch[regressionInputField]
	if !ok || len(inputs) != t.dim*t.batchSize {
		return 0, nil, fmt.Errorf("batch shape mismatch: got=%s want={%s[%d]}", tensor.ShapeOf(batch), regressionInputField, t.dim*t.batchSize)
	}

	sum := 0.0
	for row := 0; row < t.batchSize; row++ {
		x := inputs[row*t.dim : (row+1)*t.dim]
		predicted, wanted := 0.0, 0.0
		for i := range x {
			predicted += w[i] * x[i]
			wanted += t.truth[i] * x[i]
		}
		delta := predicted - wanted
		sum += delta * delta
	}
	return sum / float64(t.batchSize), state, nil
}
