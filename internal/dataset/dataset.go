package dataset

import (
	"fmt"

	"metatask/internal/tensor"
)

// Split names one of the four iterator slots of a Handle.
type Split string

const (
	SplitTrain      Split = "train"
	SplitInnerValid Split = "inner_valid"
	SplitOuterValid Split = "outer_valid"
	SplitTest       Split = "test"
)

// Splits returns the four splits in canonical order.
func Splits() []Split {
	return []Split{SplitTrain, SplitInnerValid, SplitOuterValid, SplitTest}
}

// Iterator is an infinite, randomly-sampling source of batches. Next never
// terminates the sequence; restart means rebuilding through the constructor.
// Implementations must tolerate interleaved draws from unrelated task
// instances sharing one iterator.
type Iterator interface {
	Next() tensor.Tree
}

// Handle bundles one iterator per split. Handles built through a Cache are
// shared: consumers must not assume exclusive draw order.
type Handle struct {
	Train      Iterator
	InnerValid Iterator
	OuterValid Iterator
	Test       Iterator
}

// Iter returns the iterator for a split.
func (h *Handle) Iter(split Split) (Iterator, error) {
	switch split {
	case SplitTrain:
		return h.Train, nil
	case SplitInnerValid:
		return h.InnerValid, nil
	case SplitOuterValid:
		return h.OuterValid, nil
	case SplitTest:
		return h.Test, nil
	default:
		return nil, fmt.Errorf("unsupported split: %s", split)
	}
}

// SplitBuilder constructs the iterator for one split. It is invoked once per
// split when a handle is first built for a cache key.
type SplitBuilder func(split Split) (Iterator, error)

// Build constructs a handle by invoking the builder once per split.
func Build(build SplitBuilder) (*Handle, error) {
	if build == nil {
		return nil, fmt.Errorf("split builder is required")
	}

	handle := &Handle{}
	for _, split := range Splits() {
		iter, err := build(split)
		if err != nil {
			return nil, fmt.Errorf("build split %s: %w", split, err)
		}
		if iter == nil {
			return nil, fmt.Errorf("build split %s: iterator is nil", split)
		}
		switch split {
		case SplitTrain:
			handle.Train = iter
		case SplitInnerValid:
			handle.InnerValid = iter
		case SplitOuterValid:
			handle.OuterValid = iter
		case SplitTest:
			handle.Test = iter
		}
	}
	return handle, nil
}
