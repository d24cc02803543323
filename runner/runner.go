package runner

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/hlscosim/cosim/metrics"
	"github.com/hlscosim/cosim/params"
	"github.com/hlscosim/cosim/resolve"
	"github.com/hlscosim/cosim/result"
	"github.com/hlscosim/cosim/sim"
	"github.com/hlscosim/cosim/trace"
)

// Config controls a RunMany sweep. The zero value is usable: GOMAXPROCS
// workers, a real wall clock, one-second slices, no metrics.
type Config struct {
	// Workers bounds the fan-out; <= 0 defaults to runtime.GOMAXPROCS(0).
	Workers int

	Clock         clock.Clock
	SliceDuration time.Duration

	// Metrics, if non-nil, is incremented with each design point's stall
	// count, deadlock occurrence, and observed FIFO depths as it completes.
	Metrics *metrics.Collectors
}

// job is one unit of work handed to the pool: a design point's index (to
// place its Report back in order) and its parameter overrides.
type job struct {
	index int
	cfg   *params.Config
}

// RunMany replays the same resolved trace once per params.Config in configs,
// fanning the sweep across a local worker pool — grounded on
// bspgraph.Graph.startWorkers/stepWorker's channel-of-work/fixed-pool shape,
// repurposed from one vertex per channel send to one design point per
// channel send. Each worker owns its own sim.Simulation exclusively
// (spec.md §5: "no shared resources across simulations"); this is
// intentionally NOT a distributed worker pool (Chapter12/dbspgraph's
// gRPC master/worker protocol) since distributed execution is an explicit
// spec.md Non-goal.
//
// Results are returned in the same order as configs; a design point whose
// simulation fails does not stop the others, and every design point's error
// is collected into one *multierror.Error returned (with no results) once
// every worker has finished, so per-design-point failures are reported
// together rather than racily aborting the rest of the pool.
func RunMany(ctx context.Context, cfg Config, tr *resolve.Trace, tcat *trace.Catalog, topName string, apCtrlChain bool, configs []*params.Config) ([]*result.Report, error) {
	if len(configs) == 0 {
		return nil, nil
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(configs) {
		workers = len(configs)
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	sliceDuration := cfg.SliceDuration
	if sliceDuration <= 0 {
		sliceDuration = time.Second
	}

	jobCh := make(chan job)
	results := make([]*result.Report, len(configs))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		runErrs *multierror.Error
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := range jobCh {
				if err := runOne(ctx, clk, sliceDuration, cfg.Metrics, tr, tcat, topName, apCtrlChain, j, results); err != nil {
					mu.Lock()
					runErrs = multierror.Append(runErrs, err)
					mu.Unlock()
				}
			}
		}()
	}

	for i, c := range configs {
		select {
		case jobCh <- job{index: i, cfg: c}:
		case <-ctx.Done():
			close(jobCh)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(jobCh)
	wg.Wait()

	if err := runErrs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return results, nil
}

// runOne simulates a single design point and writes its Report into
// results[j.index], the same "worker owns exclusive state, index decides
// placement" contract stepWorker applies to a vertex's compute function.
func runOne(ctx context.Context, clk clock.Clock, sliceDuration time.Duration, mcs *metrics.Collectors, tr *resolve.Trace, tcat *trace.Catalog, topName string, apCtrlChain bool, j job, results []*result.Report) error {
	if err := j.cfg.Validate(); err != nil {
		return xerrors.Errorf("design point %d: invalid params: %w", j.index, err)
	}

	runID := uuid.New()
	log := logrus.WithFields(logrus.Fields{"component": "runner", "run_id": runID, "design_point": j.index})
	log.Debug("starting design point")

	simulation := sim.New(tr, tcat, apCtrlChain, j.cfg)
	simulation.RunID = runID.String()
	b := NewBatcher(clk, sliceDuration)

	err := b.Run(ctx, simulation, func(sliceIndex int, progress float64) error {
		log.WithFields(logrus.Fields{"slice": sliceIndex, "progress": progress}).Debug("batch completed")
		return nil
	})
	if err != nil {
		if mcs != nil && xerrors.Is(err, sim.ErrDeadlock) {
			mcs.DeadlocksTotal.Inc()
		}
		log.WithField("err", err).Warn("design point failed")
		return xerrors.Errorf("design point %d (run %s): %w", j.index, runID, err)
	}

	report := result.Build(simulation, topName, tcat)
	results[j.index] = report

	if mcs != nil {
		recordMetrics(mcs, runID.String(), tcat, tr, report)
	}
	log.Info("design point completed")
	return nil
}

func recordMetrics(mcs *metrics.Collectors, runID string, tcat *trace.Catalog, tr *resolve.Trace, report *result.Report) {
	// A completed run has unstalled every event of the resolved call tree
	// exactly once, call events included.
	var stalls float64
	var countStalls func(blocks []*resolve.Block)
	countStalls = func(blocks []*resolve.Block) {
		for _, b := range blocks {
			for _, ev := range b.Events {
				stalls++
				if ev.Kind == resolve.EventCall {
					countStalls(ev.Subcall)
				}
			}
		}
	}
	countStalls(tr.Blocks)
	mcs.StallEventsTotal.Add(stalls)

	for _, st := range tcat.Streams() {
		mcs.FifoObservedDepth.WithLabelValues(runID, st.Name).Set(float64(report.ObservedFifoDepths[st.ID]))
	}
}
