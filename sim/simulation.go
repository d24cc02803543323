// Package sim is the cycle-accurate co-simulation engine (spec.md §4.2):
// it walks a resolve.Trace's call tree, advancing one frame's cursor at a
// time by the global unstall-selection loop of §4.2.2, applying FIFO and
// AXI side effects, and returning an error wrapping ErrDeadlock if no active
// frame can ever make progress.
package sim

import (
	"context"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/juju/clock"
	"golang.org/x/xerrors"

	"github.com/hlscosim/cosim/cdfg"
	"github.com/hlscosim/cosim/params"
	"github.com/hlscosim/cosim/resolve"
	"github.com/hlscosim/cosim/trace"
	"github.com/hlscosim/cosim/tracing"
)

// ap_continue handshake constants, bit-exact per spec.md §6.4.
const (
	SaxiStatusUpdateOverhead = 5
	SaxiStatusReadDelay      = 5
	SaxiStatusWriteDelay     = 6
)

// Simulation owns a resolved trace's full frame tree, the FIFO and AXI
// interface state shared across every frame, and the wall-clock slicing
// that lets a caller cooperatively batch a long run (spec.md §5).
type Simulation struct {
	root *Simulator

	fifos map[*trace.Stream]*fifoState
	axis  map[*trace.Interface]*axiState

	active []*Simulator
	nextID int

	apCtrlChain       bool
	apContinueApplied bool
	topPortCount      int

	totalStallEvents int
	unstallCount     int
	sliceIndex       int

	Clock         clock.Clock
	SliceDuration time.Duration

	// RunID tags tracing spans for this Simulation's batches; empty by
	// default, set by a caller that wants to correlate a run's spans with
	// its resolve.Resolver.RunID and its persisted result.Report.
	RunID string
}

// New builds a Simulation ready to run over a resolved trace. tcat must be
// the same catalog the trace was resolved against, so every declared
// stream and interface gets initial state even if a given run never
// exercises it. cfg may be nil, meaning no parameter overrides.
func New(tr *resolve.Trace, tcat *trace.Catalog, apCtrlChain bool, cfg *params.Config) *Simulation {
	if cfg == nil {
		cfg = &params.Config{}
	}

	sim := &Simulation{
		fifos:         make(map[*trace.Stream]*fifoState),
		axis:          make(map[*trace.Interface]*axiState),
		apCtrlChain:   apCtrlChain,
		Clock:         clock.WallClock,
		SliceDuration: time.Second,
	}

	for _, st := range tcat.Streams() {
		sim.fifos[st] = newFifoState(st, cfg.FifoDepth(st.Addr, st.Depth))
	}
	for _, ifc := range tcat.Interfaces() {
		sim.axis[ifc] = newAxiState(ifc, cfg.AxiLatency(ifc.Addr, ifc.Latency))
	}

	sim.root = newSimulator(0, nil, nil, 0, tr.Blocks)
	sim.active = []*Simulator{sim.root}

	sim.topPortCount = tr.Function.TopPortCount
	if cfg.ApCtrlChainTopPortCount > 0 {
		sim.topPortCount = cfg.ApCtrlChainTopPortCount
	}
	sim.totalStallEvents = countStalls(tr.Blocks)

	return sim
}

// Root is the top-level frame's cursor.
func (sim *Simulation) Root() *Simulator { return sim.root }

// Progress reports the fraction of every stall event, across the whole
// call tree, that has been applied so far — known up front because
// resolution already produced the complete tree before simulation begins.
func (sim *Simulation) Progress() float64 {
	if sim.totalStallEvents == 0 {
		return 1
	}
	return float64(sim.unstallCount) / float64(sim.totalStallEvents)
}

// FifoObservedDepth reports the greatest occupancy ever observed on a
// stream, or 0 if the stream was never seen.
func (sim *Simulation) FifoObservedDepth(s *trace.Stream) int {
	fs, ok := sim.fifos[s]
	if !ok {
		return 0
	}
	return fs.observedDepth
}

// Run drives the simulation to completion in wall-clock slices, applying
// the ap_continue handshake once the top frame reports done.
func (sim *Simulation) Run(ctx context.Context) error {
	for {
		done, err := sim.RunSlice(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// RunSlice applies iterations of the global unstall-selection loop until
// the top frame is done or the configured slice duration elapses,
// whichever comes first. Callers that want cooperative batching (spec.md
// §5) call RunSlice repeatedly instead of Run; either way, the ap_continue
// handshake (spec.md §4.2.6) is applied exactly once, as soon as the top
// frame reports done, so a caller driving slices one at a time still
// observes the handshake's extra cycles in the same RunSlice call that
// reports completion. ctx carries one tracing.StartSimBatchSpan per slice
// (spec.md §4.3/§4.4 ambient stack); a nil-tracer context is a no-op.
func (sim *Simulation) RunSlice(ctx context.Context) (done bool, err error) {
	span, _ := tracing.StartSimBatchSpan(ctx, sim.RunID, sim.sliceIndex)
	sim.sliceIndex++
	defer span.Finish()

	start := sim.Clock.Now()
	for !sim.root.done {
		if err := sim.runIteration(); err != nil {
			return false, err
		}
		if sim.Clock.Now().Sub(start) >= sim.SliceDuration {
			return false, nil
		}
	}
	if sim.apCtrlChain && !sim.apContinueApplied {
		sim.applyApContinue()
		sim.apContinueApplied = true
	}
	return true, nil
}

// runIteration is one pass of spec.md §4.2.2's global unstall-selection
// loop: compute every active frame's unstallable_at, advance the ones tied
// for earliest, and barrier-raise the rest.
func (sim *Simulation) runIteration() error {
	type candidate struct {
		frame *Simulator
		cycle int
	}

	var candidates []candidate
	var blocked []*Simulator

	for _, f := range sim.active {
		if f.done {
			continue
		}
		cyc, ok, err := sim.unstallableAt(f)
		if err != nil {
			return err
		}
		if !ok {
			blocked = append(blocked, f)
			continue
		}
		candidates = append(candidates, candidate{frame: f, cycle: cyc})
	}

	if len(candidates) == 0 {
		return sim.newDeadlockError(blocked)
	}

	earliest := candidates[0].cycle
	for _, c := range candidates[1:] {
		if c.cycle < earliest {
			earliest = c.cycle
		}
	}

	for _, f := range sim.active {
		if !f.done && earliest > f.cycle {
			f.cycle = earliest
		}
	}

	var ready []*Simulator
	for _, c := range candidates {
		if c.cycle == earliest {
			ready = append(ready, c.frame)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].id < ready[j].id })

	for _, f := range ready {
		stalls := f.currentStalls()
		if err := sim.applySideEffects(stalls, earliest); err != nil {
			return err
		}
		spawned := f.step()
		for _, ev := range spawned {
			sim.spawnChild(f, ev)
		}
		sim.unstallCount += len(stalls)
	}

	for _, fs := range sim.fifos {
		fs.tick()
	}

	return nil
}

// unstallableAt is spec.md §4.2.2's unstallable_at(M): the earliest cycle
// at which every stall in M's current event group is simultaneously
// satisfiable, or ok=false if any one of them is not yet satisfiable.
func (sim *Simulation) unstallableAt(f *Simulator) (cycle int, ok bool, err error) {
	stalls := f.currentStalls()
	if len(stalls) == 0 {
		return f.cycle, true, nil
	}

	result := f.cycle
	for _, ev := range stalls {
		c, satisfiable, err := sim.stallUnstallableAt(f, ev)
		if err != nil {
			return 0, false, err
		}
		if !satisfiable {
			return 0, false, nil
		}
		if c > result {
			result = c
		}
	}
	return result, true, nil
}

func (sim *Simulation) stallUnstallableAt(f *Simulator, ev *resolve.Event) (int, bool, error) {
	floor := func(c int) int {
		if c < f.cycle {
			return f.cycle
		}
		return c
	}

	switch ev.Kind {
	case resolve.EventCall:
		child := f.subcalls[ev]
		if child == nil || !child.done {
			return 0, false, nil
		}
		return floor(child.cycle), true, nil

	case resolve.EventFifoWrite:
		c, ok := sim.fifos[ev.Stream].writableAt()
		if !ok {
			return 0, false, nil
		}
		return floor(c), true, nil

	case resolve.EventFifoRead:
		c, ok := sim.fifos[ev.Stream].readableAt()
		if !ok {
			return 0, false, nil
		}
		return floor(c), true, nil

	case resolve.EventAxiRead:
		as := sim.axis[ev.Interface]
		req, ok := as.oldestActiveRead()
		if !ok {
			return 0, false, ErrMissingAxiRequest
		}
		return floor(req.cycle + as.latency + AxiReadOverhead), true, nil

	case resolve.EventAxiWriteResp:
		as := sim.axis[ev.Interface]
		comp, ok := as.oldestWriteCompletion()
		if !ok {
			return 0, false, ErrMissingAxiRequest
		}
		return floor(comp + as.latency + AxiWriteOverhead), true, nil

	case resolve.EventAxiReadReq, resolve.EventAxiWriteReq, resolve.EventAxiWrite:
		// Admission into an interface's request queue is never itself a
		// stall condition; the resulting read/write/writeresp beats are.
		return f.cycle, true, nil

	default:
		return 0, false, xerrors.Errorf("stall event kind %q: %w", ev.Kind, ErrInvariantViolated)
	}
}

// applySideEffects is spec.md §4.2.3: the state mutation each stall kind
// performs once its frame is chosen to advance at cycle.
func (sim *Simulation) applySideEffects(stalls []*resolve.Event, cycle int) error {
	for _, ev := range stalls {
		switch ev.Kind {
		case resolve.EventCall:
			// No state beyond the already-completed child frame.
		case resolve.EventFifoWrite:
			sim.fifos[ev.Stream].write(cycle)
		case resolve.EventFifoRead:
			sim.fifos[ev.Stream].read(cycle)
		case resolve.EventAxiReadReq:
			sim.axis[ev.Interface].readReq(cycle, ev.Offset, ev.Length)
		case resolve.EventAxiWriteReq:
			sim.axis[ev.Interface].writeReq(cycle, ev.Offset, ev.Length)
		case resolve.EventAxiRead:
			if err := sim.axis[ev.Interface].readBeat(ev.Length, cycle); err != nil {
				return err
			}
		case resolve.EventAxiWrite:
			if err := sim.axis[ev.Interface].writeBeat(ev.Length, cycle); err != nil {
				return err
			}
		case resolve.EventAxiWriteResp:
			if err := sim.axis[ev.Interface].writeResp(); err != nil {
				return err
			}
		default:
			return xerrors.Errorf("stall event kind %q: %w", ev.Kind, ErrInvariantViolated)
		}
	}
	return nil
}

func (sim *Simulation) spawnChild(parent *Simulator, ev *resolve.Event) {
	sim.nextID++
	child := newSimulator(sim.nextID, parent, ev, parent.cycle+startDelay(ev), ev.Subcall)
	parent.subcalls[ev] = child
	sim.active = append(sim.active, child)
}

func countStalls(blocks []*resolve.Block) int {
	n := 0
	for _, b := range blocks {
		for _, ev := range b.Events {
			n++
			if ev.Kind == resolve.EventCall {
				n += countStalls(ev.Subcall)
			}
		}
	}
	return n
}

// newDeadlockError builds the deadlock diagnostic: one entry per frame that
// could not make progress, with its id, current cycle and pending stall
// kinds, so a caller can see what each one was waiting on. It carries no
// reference to the top frame and no snapshot of FIFO state.
func (sim *Simulation) newDeadlockError(blocked []*Simulator) error {
	var result *multierror.Error
	for _, f := range blocked {
		kinds := make([]resolve.EventKind, 0, len(f.currentStalls()))
		for _, ev := range f.currentStalls() {
			kinds = append(kinds, ev.Kind)
		}
		result = multierror.Append(result, xerrors.Errorf("frame %d stalled at cycle %d on %v: %w", f.id, f.cycle, kinds, ErrDeadlock))
	}
	return result.ErrorOrNil()
}

// applyApContinue is spec.md §4.2.6: once the top frame is done, the
// ap_ctrl_chain handshake adds read/write status-register overhead before
// the design is considered complete, and for a dataflow top region the
// same final cycle is propagated to every sink process.
func (sim *Simulation) applyApContinue() {
	final := apContinueCycle(sim.root.cycle, sim.topPortCount)
	sim.root.cycle = final

	region := topRegion(sim.root)
	if !region.IsDataflow() || len(sim.root.groups) == 0 {
		return
	}

	last := sim.root.groups[len(sim.root.groups)-1]
	sinks := make(map[string]bool, len(region.Sinks))
	for _, name := range region.Sinks {
		sinks[name] = true
	}
	for _, ev := range last.subcalls {
		if ev.Callee == nil || !sinks[ev.Callee.Name] {
			continue
		}
		if child, ok := sim.root.subcalls[ev]; ok {
			propagateApContinue(child, final)
		}
	}
}

func propagateApContinue(s *Simulator, cycle int) {
	if cycle > s.cycle {
		s.cycle = cycle
	}
	for _, child := range s.subcalls {
		propagateApContinue(child, cycle)
	}
}

func topRegion(s *Simulator) *cdfg.Region {
	if len(s.blocks) == 0 || s.blocks[0].Static == nil {
		return nil
	}
	return s.blocks[0].Static.Region
}

// apContinueCycle is spec.md §4.2.6's formula: the ap_done signal is only
// visible to a polling status register on a read_interval cadence, and
// ap_continue follows a further fixed write delay after that read.
func apContinueCycle(doneCycle, topPortCount int) int {
	readInterval := SaxiStatusUpdateOverhead + topPortCount + 1
	apDoneReadCycle := ceilDivInt(doneCycle-SaxiStatusReadDelay, readInterval)*readInterval + SaxiStatusReadDelay
	return apDoneReadCycle + SaxiStatusWriteDelay
}

func ceilDivInt(a, b int) int {
	if b <= 0 || a <= 0 {
		return 0
	}
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}
