package task

import (
	"fmt"

	"metatask/internal/dataset"
	"metatask/internal/tensor"
)

// singlePlaceholderField names the one-element config returned by single-task
// families. A fixed scalar keeps batched sampling uniformly shaped even
// though the family has no variation.
const singlePlaceholderField = "placeholder"

// SingleTaskFamily lifts one fixed task into a degenerate family so single-
// task and multi-task consumers share one programming model. Sample ignores
// its seed; TaskFn ignores its config and returns the wrapped task unchanged.
type SingleTaskFamily struct {
	task Task
}

// FromTask wraps a fixed task as a Family. Wrapping is a no-op with respect
// to observable Init/Loss behavior.
func FromTask(t Task) (*SingleTaskFamily, error) {
	if t == nil {
		return nil, fmt.Errorf("task is required")
	}
	return &SingleTaskFamily{task: t}, nil
}

func (f *SingleTaskFamily) Name() string {
	return f.task.Name()
}

func (f *SingleTaskFamily) Sample(_ int64) (tensor.Tree, error) {
	return tensor.Tree{singlePlaceholderField: {0}}, nil
}

func (f *SingleTaskFamily) TaskFn(_ tensor.Tree) (Task, error) {
	return f.task, nil
}

// Datasets forwards the wrapped task's shared handle when it has one.
func (f *SingleTaskFamily) Datasets() *dataset.Handle {
	if handle, ok := DatasetsOf(f.task); ok {
		return handle
	}
	return nil
}
