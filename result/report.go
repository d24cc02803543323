// Package result is the hierarchical per-call cycle tree and observed FIFO
// depths a completed sim.Simulation reports (spec.md §3 Lifecycle, §6.3).
// Reports are returned by value: once built, a Report shares no mutable
// state with the Simulation it was built from.
package result

import (
	"github.com/hlscosim/cosim/resolve"
	"github.com/hlscosim/cosim/sim"
	"github.com/hlscosim/cosim/trace"
)

// ModuleInterval is one call frame's observed cycle interval, the unit the
// External Interfaces' "top_module" tree (spec.md §6.3) is built from.
type ModuleInterval struct {
	Name       string
	StartCycle int
	EndCycle   int
	Children   []*ModuleInterval
}

// Report is the full result surface of one simulation run: the top module's
// cycle tree plus every stream's maximum observed occupancy.
type Report struct {
	Top                *ModuleInterval
	ObservedFifoDepths map[trace.StreamID]int
}

// Build walks a completed Simulation's frame tree into a Report. topName
// names the kernel function the top frame simulated (sim.Simulator does not
// track its own name, only its callees' — see sim.Simulator.Name).
func Build(s *sim.Simulation, topName string, tcat *trace.Catalog) *Report {
	return &Report{
		Top:                buildModule(s.Root(), topName),
		ObservedFifoDepths: observedDepths(s, tcat),
	}
}

// buildModule recurses over a frame's resolved blocks in visitation order,
// descending into each call event's spawned child to preserve the order
// call events appear in the resolved trace (spec.md §4.2.8).
func buildModule(frame *sim.Simulator, name string) *ModuleInterval {
	mi := &ModuleInterval{Name: name, StartCycle: frame.StartCycle(), EndCycle: frame.Cycle()}
	for _, block := range frame.Blocks() {
		for _, ev := range block.Events {
			if ev.Kind != resolve.EventCall {
				continue
			}
			child, ok := frame.Child(ev)
			if !ok {
				continue
			}
			mi.Children = append(mi.Children, buildModule(child, ev.Callee.Name))
		}
	}
	return mi
}

func observedDepths(s *sim.Simulation, tcat *trace.Catalog) map[trace.StreamID]int {
	depths := make(map[trace.StreamID]int, len(tcat.Streams()))
	for _, st := range tcat.Streams() {
		depths[st.ID] = s.FifoObservedDepth(st)
	}
	return depths
}
