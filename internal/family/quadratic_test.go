package family

import (
	"context"
	"math"
	"testing"

	"metatask/internal/tensor"
)

func TestQuadraticSampleShapeIsStatic(t *testing.T) {
	f := FixedDimQuadraticFamily{Dim: 10}

	first, err := f.Sample(1)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	second, err := f.Sample(2)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}

	want := tensor.Shape{"target": 10}
	if !tensor.ShapeOf(first).Equal(want) {
		t.Fatalf("config shape: got=%s want=%s", tensor.ShapeOf(first), want)
	}
	if !tensor.ShapeOf(first).Equal(tensor.ShapeOf(second)) {
		t.Fatalf("config shape varies with seed: %s vs %s", tensor.ShapeOf(first), tensor.ShapeOf(second))
	}

	same, err := f.Sample(1)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	for i := range first["target"] {
		if first["target"][i] != same["target"][i] {
			t.Fatalf("sample is not deterministic for equal seeds")
		}
	}
}

func TestQuadraticTaskInitShapeIsStatic(t *testing.T) {
	f := FixedDimQuadraticFamily{Dim: 10}

	for _, seed := range []int64{1, 2, 99} {
		cfg, err := f.Sample(seed)
		if err != nil {
			t.Fatalf("sample seed=%d: %v", seed, err)
		}
		tk, err := f.TaskFn(cfg)
		if err != nil {
			t.Fatalf("task fn seed=%d: %v", seed, err)
		}
		params, state, err := tk.Init(seed + 100)
		if err != nil {
			t.Fatalf("init seed=%d: %v", seed, err)
		}
		if !tensor.ShapeOf(params).Equal(tensor.Shape{"w": 10}) {
			t.Fatalf("params shape: got=%s", tensor.ShapeOf(params))
		}
		if state != nil {
			t.Fatalf("expected null state, got %s", tensor.ShapeOf(state))
		}
	}
}

func TestQuadraticLossZeroAtTarget(t *testing.T) {
	f := FixedDimQuadraticFamily{Dim: 10}

	cfg, err := f.Sample(3)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	tk, err := f.TaskFn(cfg)
	if err != nil {
		t.Fatalf("task fn: %v", err)
	}

	params := tensor.Tree{"w": cfg["target"].Clone()}
	loss, state, err := tk.Loss(context.Background(), params, nil, 0, nil)
	if err != nil {
		t.Fatalf("loss: %v", err)
	}
	if loss != 0 {
		t.Fatalf("expected exact zero loss at target, got %g", loss)
	}
	if state != nil {
		t.Fatalf("expected unchanged null state")
	}
}

func TestQuadraticLossValue(t *testing.T) {
	f := FixedDimQuadraticFamily{Dim: 3}
	cfg := tensor.Tree{"target": {1, 2, 3}}
	tk, err := f.TaskFn(cfg)
	if err != nil {
		t.Fatalf("task fn: %v", err)
	}

	loss, _, err := tk.Loss(context.Background(), tensor.Tree{"w": {0, 0, 0}}, nil, 0, nil)
	if err != nil {
		t.Fatalf("loss: %v", err)
	}
	if math.Abs(loss-14) > 1e-12 {
		t.Fatalf("loss: got=%f want=14", loss)
	}
}

func TestQuadraticTaskFnRejectsWrongShape(t *testing.T) {
	f := FixedDimQuadraticFamily{Dim: 10}
	if _, err := f.TaskFn(tensor.Tree{"target": {1, 2}}); err == nil {
		t.Fatalf("expected config shape mismatch error")
	}
	if _, err := f.TaskFn(nil); err == nil {
		t.Fatalf("expected nil config rejection")
	}
}

func TestQuadraticValidation(t *testing.T) {
	f := FixedDimQuadraticFamily{}
	if _, err := f.Sample(1); err == nil {
		t.Fatalf("expected dim validation error")
	}
}
