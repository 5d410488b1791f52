package dataset

import (
	"testing"

	"metatask/internal/tensor"
)

func noiseBuilder(seedBase int64) SplitBuilder {
	offsets := map[Split]int64{
		SplitTrain:      0,
		SplitInnerValid: 1,
		SplitOuterValid: 2,
		SplitTest:       3,
	}
	return func(split Split) (Iterator, error) {
		return NewNoiseIterator(tensor.Shape{"x": 4}, seedBase+offsets[split])
	}
}

func TestBuildConstructsAllSplits(t *testing.T) {
	handle, err := Build(noiseBuilder(7))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, split := range Splits() {
		iter, err := handle.Iter(split)
		if err != nil {
			t.Fatalf("iter %s: %v", split, err)
		}
		if iter == nil {
			t.Fatalf("iter %s is nil", split)
		}
		batch := iter.Next()
		if !tensor.ShapeOf(batch).Equal(tensor.Shape{"x": 4}) {
			t.Fatalf("split %s batch shape: got=%s", split, tensor.ShapeOf(batch))
		}
	}
}

func TestHandleIterRejectsUnknownSplit(t *testing.T) {
	handle, err := Build(noiseBuilder(7))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := handle.Iter(Split("bogus")); err == nil {
		t.Fatalf("expected unsupported split error")
	}
}

func TestCacheSharesHandlesByKey(t *testing.T) {
	cache := NewCache()

	builds := 0
	build := func(split Split) (Iterator, error) {
		builds++
		return NewNoiseIterator(tensor.Shape{"x": 2}, int64(builds))
	}

	first, err := cache.Handle(CacheKey("noise", 2, 16), build)
	if err != nil {
		t.Fatalf("first handle: %v", err)
	}
	second, err := cache.Handle(CacheKey("noise", 2, 16), build)
	if err != nil {
		t.Fatalf("second handle: %v", err)
	}

	if first != second {
		t.Fatalf("expected shared handle for equal keys")
	}
	if first.Train != second.Train {
		t.Fatalf("expected shared train iterator for equal keys")
	}
	if builds != 4 {
		t.Fatalf("expected one build per split, got %d", builds)
	}
	if cache.Len() != 1 {
		t.Fatalf("expected one cache entry, got %d", cache.Len())
	}

	other, err := cache.Handle(CacheKey("noise", 3, 16), build)
	if err != nil {
		t.Fatalf("other handle: %v", err)
	}
	if other == first {
		t.Fatalf("expected distinct handle for distinct key")
	}
}

func TestCacheInterleavedDrawsAdvanceOneSequence(t *testing.T) {
	cache := NewCache()
	build := func(split Split) (Iterator, error) {
		return NewNoiseIterator(tensor.Shape{"x": 1}, 42)
	}

	a, err := cache.Handle("shared", build)
	if err != nil {
		t.Fatalf("handle a: %v", err)
	}
	b, err := cache.Handle("shared", build)
	if err != nil {
		t.Fatalf("handle b: %v", err)
	}

	// Reference sequence from an iterator with the same seed.
	ref, err := NewNoiseIterator(tensor.Shape{"x": 1}, 42)
	if err != nil {
		t.Fatalf("reference iterator: %v", err)
	}
	want := []float64{
		ref.Next()["x"][0],
		ref.Next()["x"][0],
		ref.Next()["x"][0],
		ref.Next()["x"][0],
	}

	got := []float64{
		a.Train.Next()["x"][0],
		b.Train.Next()["x"][0],
		a.Train.Next()["x"][0],
		b.Train.Next()["x"][0],
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("interleaved draw %d: got=%f want=%f (handles must share one sequence)", i, got[i], want[i])
		}
	}
}

func TestCacheRejectsEmptyKey(t *testing.T) {
	cache := NewCache()
	if _, err := cache.Handle("  ", noiseBuilder(1)); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestSharedCacheReset(t *testing.T) {
	ResetSharedCacheForTests()
	defer ResetSharedCacheForTests()

	first, err := SharedHandle("reset-check", noiseBuilder(1))
	if err != nil {
		t.Fatalf("first shared handle: %v", err)
	}
	ResetSharedCacheForTests()
	second, err := SharedHandle("reset-check", noiseBuilder(1))
	if err != nil {
		t.Fatalf("second shared handle: %v", err)
	}
	if first == second {
		t.Fatalf("expected fresh handle after reset")
	}
}

func TestCacheKeyFormatting(t *testing.T) {
	if got := CacheKey("noise"); got != "noise" {
		t.Fatalf("bare key: got=%s", got)
	}
	if got := CacheKey("noise", 10, "train"); got != "noise(10,train)" {
		t.Fatalf("keyed: got=%s", got)
	}
}

func TestShuffleIteratorStacksRows(t *testing.T) {
	rows := []tensor.Tree{
		{"x": {1, 1}, "y": {10}},
		{"x": {2, 2}, "y": {20}},
		{"x": {3, 3}, "y": {30}},
	}
	it, err := NewShuffleIterator(rows, 4, 5)
	if err != nil {
		t.Fatalf("new shuffle iterator: %v", err)
	}

	batch := it.Next()
	if !tensor.ShapeOf(batch).Equal(tensor.Shape{"x": 8, "y": 4}) {
		t.Fatalf("batch shape: got=%s", tensor.ShapeOf(batch))
	}
	for i := 0; i < 4; i++ {
		// Each stacked row keeps x = 10*y pairing.
		if batch["x"][2*i]*10 != batch["y"][i] {
			t.Fatalf("row %d fields misaligned: x=%f y=%f", i, batch["x"][2*i], batch["y"][i])
		}
	}
}

func TestShuffleIteratorRejectsMixedShapes(t *testing.T) {
	rows := []tensor.Tree{
		{"x": {1, 1}},
		{"x": {2}},
	}
	if _, err := NewShuffleIterator(rows, 2, 1); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
}

func TestNoiseIteratorValidation(t *testing.T) {
	if _, err := NewNoiseIterator(nil, 1); err == nil {
		t.Fatalf("expected missing shape error")
	}
	if _, err := NewNoiseIterator(tensor.Shape{"x": 0}, 1); err == nil {
		t.Fatalf("expected non-positive length error")
	}
}
