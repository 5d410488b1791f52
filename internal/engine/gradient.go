package engine

import (
	"context"
	"fmt"

	"metatask/internal/tensor"
)

// LossFn scores one params tree.
type LossFn func(ctx context.Context, params tensor.Tree) (float64, error)

const defaultGradientStep = 1e-6

// Gradient estimates d loss / d params by central differences, one probe pair
// per scalar. The loss must be pure; probes reuse one clone of params.
func Gradient(ctx context.Context, loss LossFn, at tensor.Tree, step float64) (tensor.Tree, error) {
	if loss == nil {
		return nil, fmt.Errorf("loss function is required")
	}
	if step == 0 {
		step = defaultGradientStep
	}
	if step < 0 {
		return nil, fmt.Errorf("step must be > 0")
	}

	probe := at.Clone()
	grad := make(tensor.Tree, len(at))
	for _, name := range at.Fields() {
		values := at[name]
		grad[name] = make(tensor.Vector, len(values))
		for i := range values {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			probe[name][i] = values[i] + step
			upper, err := loss(ctx, probe)
			if err != nil {
				return nil, fmt.Errorf("gradient probe %s[%d]: %w", name, i, err)
			}
			probe[name][i] = values[i] - step
			lower, err := loss(ctx, probe)
			if err != nil {
				return nil, fmt.Errorf("gradient probe %s[%d]: %w", name, i, err)
			}
			probe[name][i] = values[i]

			grad[name][i] = (upper - lower) / (2 * step)
		}
	}
	return grad, nil
}
