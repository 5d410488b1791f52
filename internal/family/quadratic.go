package family

import (
	"context"
	"fmt"
	"math/rand"

	"metatask/internal/tensor"
	"metatask/internal/task"
)

const (
	quadraticConfigField = "target"
	quadraticParamField  = "w"
)

// FixedDimQuadraticFamily samples quadratic bowls with random centers:
// loss(params) = sum((target - params)^2). Dim is fixed at construction,
// so every sampled task shares one computation structure; only the target
// values vary with the seed.
type FixedDimQuadraticFamily struct {
	Dim int
}

func (f FixedDimQuadraticFamily) Name() string {
	return fmt.Sprintf("quadratic-dim%d", f.Dim)
}

func (f FixedDimQuadraticFamily) Sample(seed int64) (tensor.Tree, error) {
	if f.Dim <= 0 {
		return nil, fmt.Errorf("dim must be > 0")
	}

	rng := rand.New(rand.NewSource(seed))
	target := make(tensor.Vector, f.Dim)
	for i := range target {
		target[i] = rng.NormFloat64()
	}
	return tensor.Tree{quadraticConfigField: target}, nil
}

func (f FixedDimQuadraticFamily) TaskFn(cfg tensor.Tree) (task.Task, error) {
	if f.Dim <= 0 {
		return nil, fmt.Errorf("dim must be > 0")
	}
	wantShape := tensor.Shape{quadraticConfigField: f.Dim}
	if !tensor.ShapeOf(cfg).Equal(wantShape) {
		return nil, fmt.Errorf("config shape mismatch: got=%s want=%s", tensor.ShapeOf(cfg), wantShape)
	}

	return &quadraticTask{
		name:   f.Name(),
		target: cfg[quadraticConfigField].Clone(),
	}, nil
}

type quadraticTask struct {
	name   string
	target tensor.Vector
}

func (t *quadraticTask) Name() string {
	return t.name
}

func (t *quadraticTask) Init(seed int64) (tensor.Tree, tensor.Tree, error) {
	rng := rand.New(rand.NewSource(seed))
	params := make(tensor.Vector, len(t.target))
	for i := range params {
		params[i] = rng.NormFloat64()
	}
	return tensor.Tree{quadraticParamField: params}, nil, nil
}

func (t *quadraticTask) Loss(ctx context.Context, params, state tensor.Tree, _ int64, _ tensor.Tree) (float64, tensor.Tree, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	w, ok := params[quadraticParamField]
	if !ok || len(w) != len(t.target) {
		return 0, nil, fmt.Errorf("params shape mismatch: got=%s want={%s[%d]}", tensor.ShapeOf(params), quadraticParamField, len(t.target))
	}

	sum := 0.0
	for i := range w {
		delta := t.target[i] - w[i]
		sum += delta * delta
	}
	return sum, state, nil
}
