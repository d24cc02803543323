// Package runner orchestrates simulation runs: a cooperative-batching driver
// that lets a caller cancel between slices (spec.md §5), and a local
// multi-design-point sweep that fans independent simulations across a fixed
// worker pool (SPEC_FULL.md §5 — distributed execution remains out of
// scope; every worker owns its sim.Simulation exclusively).
package runner

import (
	"context"
	"time"

	"github.com/juju/clock"

	"github.com/hlscosim/cosim/sim"
)

// Batcher drives a Simulation to completion one wall-clock slice at a time,
// checking for context cancellation between slices — the same loop shape as
// bspgraph.Executor.run's PreStep/step/PostStep cycle, adapted from
// per-superstep graph computation to per-slice simulation batches.
type Batcher struct {
	Clock         clock.Clock
	SliceDuration time.Duration
}

// NewBatcher returns a Batcher slicing at the given duration on clk. A nil
// clk defaults to clock.WallClock.
func NewBatcher(clk clock.Clock, sliceDuration time.Duration) *Batcher {
	if clk == nil {
		clk = clock.WallClock
	}
	if sliceDuration <= 0 {
		sliceDuration = time.Second
	}
	return &Batcher{Clock: clk, SliceDuration: sliceDuration}
}

// SliceCallback is invoked between batches with the slice index just
// completed and the simulation's overall progress. Returning an error
// aborts the run immediately, the same early-exit shape as
// bspgraph.ExecutorCallbacks.PostStep.
type SliceCallback func(sliceIndex int, progress float64) error

// Run drives s to completion, calling cb (if non-nil) after every slice.
// Context cancellation is checked before each slice, exactly
// bspgraph.Executor.run's ensureContextNotExpired check.
func (b *Batcher) Run(ctx context.Context, s *sim.Simulation, cb SliceCallback) error {
	s.Clock = b.Clock
	s.SliceDuration = b.SliceDuration

	for sliceIndex := 0; ; sliceIndex++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := s.RunSlice(ctx)
		if err != nil {
			return err
		}
		if cb != nil {
			if err := cb(sliceIndex, s.Progress()); err != nil {
				return err
			}
		}
		if done {
			return nil
		}
	}
}
