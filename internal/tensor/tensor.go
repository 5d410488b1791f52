package tensor

import (
	"fmt"
	"sort"
	"strings"
)

// Vector is a fixed-length numeric array. Length is part of a value's shape
// and must not vary across samples drawn from one family.
type Vector []float64

// Tree is a named record of vectors: the structured value used for configs,
// params, states and data batches. Field names and vector lengths together
// form the tree's shape; only the numeric contents may vary between instances.
type Tree map[string]Vector

// Shape maps field names to vector lengths.
type Shape map[string]int

func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	return append(Vector(nil), v...)
}

func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for name, values := range t {
		out[name] = values.Clone()
	}
	return out
}

// ShapeOf returns the structural shape of a tree. A nil tree has a nil shape.
func ShapeOf(t Tree) Shape {
	if t == nil {
		return nil
	}
	shape := make(Shape, len(t))
	for name, values := range t {
		shape[name] = len(values)
	}
	return shape
}

func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for name, length := range s {
		otherLength, ok := other[name]
		if !ok || otherLength != length {
			return false
		}
	}
	return true
}

func (s Shape) String() string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s[%d]", name, s[name]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// Fields returns the tree's field names in sorted order. Flatten and
// Unflatten traverse fields in this order so round trips are stable.
func (t Tree) Fields() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Flatten concatenates all vectors in sorted field order.
func (t Tree) Flatten() Vector {
	total := 0
	for _, values := range t {
		total += len(values)
	}
	flat := make(Vector, 0, total)
	for _, name := range t.Fields() {
		flat = append(flat, t[name]...)
	}
	return flat
}

// Unflatten rebuilds a tree with the given shape from a flat vector produced
// by Flatten on a tree of the same shape.
func Unflatten(shape Shape, flat Vector) (Tree, error) {
	total := 0
	for _, length := range shape {
		total += length
	}
	if len(flat) != total {
		return nil, fmt.Errorf("unflatten length mismatch: got=%d want=%d", len(flat), total)
	}

	names := make([]string, 0, len(shape))
	for name := range shape {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(Tree, len(shape))
	offset := 0
	for _, name := range names {
		length := shape[name]
		out[name] = append(Vector(nil), flat[offset:offset+length]...)
		offset += length
	}
	return out, nil
}
