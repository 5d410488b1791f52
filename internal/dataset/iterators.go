package dataset

import (
	"fmt"
	"math/rand"
	"sync"

	"metatask/internal/tensor"
)

// ShuffleIterator samples batches from an in-memory row table with
// replacement. Each draw picks rows uniformly at random, so interleaved
// consumption by many task instances stays statistically independent.
type ShuffleIterator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	rows      []tensor.Tree
	batchSize int
}

// NewShuffleIterator builds an iterator over rows. All rows must share one
// shape; batches stack batchSize rows field-wise into vectors of length
// batchSize*fieldLen.
func NewShuffleIterator(rows []tensor.Tree, batchSize int, seed int64) (*ShuffleIterator, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("at least one row is required")
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0")
	}
	shape := tensor.ShapeOf(rows[0])
	for i, row := range rows {
		if !tensor.ShapeOf(row).Equal(shape) {
			return nil, fmt.Errorf("row %d shape mismatch: got=%s want=%s", i, tensor.ShapeOf(row), shape)
		}
	}

	return &ShuffleIterator{
		rng:       rand.New(rand.NewSource(seed)),
		rows:      rows,
		batchSize: batchSize,
	}, nil
}

func (it *ShuffleIterator) Next() tensor.Tree {
	it.mu.Lock()
	defer it.mu.Unlock()

	batch := make(tensor.Tree)
	for _, name := range it.rows[0].Fields() {
		batch[name] = make(tensor.Vector, 0, it.batchSize*len(it.rows[0][name]))
	}
	for i := 0; i < it.batchSize; i++ {
		row := it.rows[it.rng.Intn(len(it.rows))]
		for name, values := range row {
			batch[name] = append(batch[name], values...)
		}
	}
	return batch
}

// NoiseIterator produces batches of standard Gaussian noise with a fixed
// shape. Useful for synthetic tasks that only need statistically fresh data.
type NoiseIterator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	shape tensor.Shape
}

func NewNoiseIterator(shape tensor.Shape, seed int64) (*NoiseIterator, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("shape is required")
	}
	for name, length := range shape {
		if length <= 0 {
			return nil, fmt.Errorf("field %s length must be > 0", name)
		}
	}
	return &NoiseIterator{
		rng:   rand.New(rand.NewSource(seed)),
		shape: shape,
	}, nil
}

func (it *NoiseIterator) Next() tensor.Tree {
	it.mu.Lock()
	defer it.mu.Unlock()

	batch := make(tensor.Tree, len(it.shape))
	for name, length := range it.shape {
		values := make(tensor.Vector, length)
		for i := range values {
			values[i] = it.rng.NormFloat64()
		}
		batch[name] = values
	}
	return batch
}
