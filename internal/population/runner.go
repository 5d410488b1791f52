// Package population implements the sample -> instantiate -> batched-execute
// protocol over a task family. A runner draws one config per seed, builds one
// task per config, and pushes init and loss through the array engine's
// batched map so the whole population executes as one data-parallel call.
//
// Validity rests on the family's static-shape invariant: every member must
// share one computation structure, differing only in numeric content. Members
// of one batched call have no defined relative ordering and must not share
// mutable state; data batches are prefetched in member order so batched and
// sequential execution see identical inputs.
package population

import (
	"context"
	"errors"
	"fmt"

	"k8s.io/klog/v2"

	"metatask/internal/engine"
	"metatask/internal/task"
	"metatask/internal/tensor"
)

// ErrShapeMismatch reports a family whose sampled configs or initialized
// params disagree in structure across the population. The runner does not
// pre-validate family implementations; the mismatch surfaces here, at the
// batched execution boundary.
var ErrShapeMismatch = errors.New("population shape mismatch")

// Seed offsets keep the sample, init and loss randomness streams of one
// member distinct without coordination.
const (
	initSeedOffset = 1000
	lossSeedOffset = 2000
)

type Config struct {
	Family task.Family

	// Mapper is the injected batched-map capability. Nil selects a parallel
	// mapper with a CPU-derived worker count.
	Mapper engine.BatchMapper
}

// Member is one evaluated population element.
type Member struct {
	Seed   int64
	Config tensor.Tree
	Loss   float64
}

type Result struct {
	Members  []Member
	MeanLoss float64
	BestLoss float64
}

// TrainResult captures a population-wide inner-training run.
type TrainResult struct {
	Members        []Member
	MeanLossByStep []float64
	FinalMeanLoss  float64
	BestFinalLoss  float64
}

type Runner struct {
	cfg Config
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Family == nil {
		return nil, fmt.Errorf("family is required")
	}
	if cfg.Mapper == nil {
		cfg.Mapper = engine.ParallelMapper{}
	}
	return &Runner{cfg: cfg}, nil
}

// Evaluate runs the full pattern once: batched sample, shape check, task
// build, batched init, batch prefetch, batched loss.
func (r *Runner) Evaluate(ctx context.Context, seeds []int64) (Result, error) {
	if len(seeds) == 0 {
		return Result{}, fmt.Errorf("at least one seed is required")
	}

	members, params, states, err := r.prepare(ctx, seeds)
	if err != nil {
		return Result{}, err
	}
	batches := r.prefetch(len(seeds))

	losses := make([]float64, len(seeds))
	err = r.cfg.Mapper.MapN(ctx, len(seeds), func(ctx context.Context, i int) error {
		loss, _, err := members[i].task.Loss(ctx, params[i], states[i], seeds[i]+lossSeedOffset, batches[i])
		if err != nil {
			return fmt.Errorf("member %d loss: %w", i, err)
		}
		losses[i] = loss
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	result := r.collect(members, losses)
	klog.V(2).InfoS("population evaluated",
		"family", r.cfg.Family.Name(), "members", len(seeds),
		"meanLoss", result.MeanLoss, "bestLoss", result.BestLoss)
	return result, nil
}

// Train runs the identical init/loss/update sequence across the population:
// per step, one prefetched batch per member, a finite-difference gradient,
// and one SGD update, all applied through the batched map.
func (r *Runner) Train(ctx context.Context, seeds []int64, steps int, learningRate float64) (TrainResult, error) {
	if len(seeds) == 0 {
		return TrainResult{}, fmt.Errorf("at least one seed is required")
	}
	if steps <= 0 {
		return TrainResult{}, fmt.Errorf("steps must be > 0")
	}
	if learningRate <= 0 {
		return TrainResult{}, fmt.Errorf("learning rate must be > 0")
	}

	members, params, states, err := r.prepare(ctx, seeds)
	if err != nil {
		return TrainResult{}, err
	}

	meanByStep := make([]float64, 0, steps)
	losses := make([]float64, len(seeds))
	for step := 0; step < steps; step++ {
		batches := r.prefetch(len(seeds))

		err := r.cfg.Mapper.MapN(ctx, len(seeds), func(ctx context.Context, i int) error {
			lossSeed := seeds[i] + lossSeedOffset + int64(step)
			loss, newState, err := members[i].task.Loss(ctx, params[i], states[i], lossSeed, batches[i])
			if err != nil {
				return fmt.Errorf("member %d step %d loss: %w", i, step, err)
			}
			losses[i] = loss
			states[i] = newState

			grad, err := engine.Gradient(ctx, func(ctx context.Context, candidate tensor.Tree) (float64, error) {
				probeLoss, _, err := members[i].task.Loss(ctx, candidate, states[i], lossSeed, batches[i])
				return probeLoss, err
			}, params[i], 0)
			if err != nil {
				return fmt.Errorf("member %d step %d gradient: %w", i, step, err)
			}
			for name, values := range grad {
				for j, g := range values {
					params[i][name][j] -= learningRate * g
				}
			}
			return nil
		})
		if err != nil {
			return TrainResult{}, err
		}

		meanByStep = append(meanByStep, mean(losses))
		klog.V(3).InfoS("population training step",
			"family", r.cfg.Family.Name(), "step", step+1, "meanLoss", meanByStep[step])
	}

	result := r.collect(members, losses)
	return TrainResult{
		Members:        result.Members,
		MeanLossByStep: meanByStep,
		FinalMeanLoss:  result.MeanLoss,
		BestFinalLoss:  result.BestLoss,
	}, nil
}

type preparedMember struct {
	seed   int64
	config tensor.Tree
	task   task.Task
}

// prepare performs batched sampling, the static-shape checks, task
// construction and batched init.
func (r *Runner) prepare(ctx context.Context, seeds []int64) ([]preparedMember, []tensor.Tree, []tensor.Tree, error) {
	members := make([]preparedMember, len(seeds))

	err := r.cfg.Mapper.MapN(ctx, len(seeds), func(_ context.Context, i int) error {
		cfg, err := r.cfg.Family.Sample(seeds[i])
		if err != nil {
			return fmt.Errorf("member %d sample: %w", i, err)
		}
		if cfg == nil {
			return fmt.Errorf("member %d sample: %w: config is nil", i, ErrShapeMismatch)
		}
		members[i] = preparedMember{seed: seeds[i], config: cfg}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	configShape := tensor.ShapeOf(members[0].config)
	for i := range members {
		if !tensor.ShapeOf(members[i].config).Equal(configShape) {
			return nil, nil, nil, fmt.Errorf("member %d config: %w: got=%s want=%s",
				i, ErrShapeMismatch, tensor.ShapeOf(members[i].config), configShape)
		}
	}

	params := make([]tensor.Tree, len(seeds))
	states := make([]tensor.Tree, len(seeds))
	err = r.cfg.Mapper.MapN(ctx, len(seeds), func(_ context.Context, i int) error {
		built, err := r.cfg.Family.TaskFn(members[i].config)
		if err != nil {
			return fmt.Errorf("member %d task fn: %w", i, err)
		}
		members[i].task = built

		p, s, err := built.Init(seeds[i] + initSeedOffset)
		if err != nil {
			return fmt.Errorf("member %d init: %w", i, err)
		}
		params[i], states[i] = p, s
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	paramShape := tensor.ShapeOf(params[0])
	for i := range params {
		if !tensor.ShapeOf(params[i]).Equal(paramShape) {
			return nil, nil, nil, fmt.Errorf("member %d params: %w: got=%s want=%s",
				i, ErrShapeMismatch, tensor.ShapeOf(params[i]), paramShape)
		}
	}

	return members, params, states, nil
}

// prefetch draws one train batch per member in member order, or nils for
// data-free families. Draw order is fixed so batched and sequential
// execution consume identical data.
func (r *Runner) prefetch(n int) []tensor.Tree {
	batches := make([]tensor.Tree, n)
	handle, ok := task.DatasetsOf(r.cfg.Family)
	if !ok {
		return batches
	}
	for i := range batches {
		batches[i] = handle.Train.Next()
	}
	return batches
}

func (r *Runner) collect(members []preparedMember, losses []float64) Result {
	out := make([]Member, len(members))
	best := losses[0]
	for i := range members {
		out[i] = Member{Seed: members[i].seed, Config: members[i].config, Loss: losses[i]}
		if losses[i] < best {
			best = losses[i]
		}
	}
	return Result{Members: out, MeanLoss: mean(losses), BestLoss: best}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
