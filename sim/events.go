package sim

import (
	"sort"

	"github.com/hlscosim/cosim/cdfg"
	"github.com/hlscosim/cosim/resolve"
)

// eventGroup is every event sharing one stage, partitioned per spec.md
// §4.2.1: subcalls (call events, keyed by start_stage, where the child frame
// is spawned) and stalls (every event, keyed by end_stage — a call stalls
// there until its child frame is done — except axi_readreq, keyed by
// start_stage since the request itself is the stall point).
type eventGroup struct {
	stage    int
	subcalls []*resolve.Event
	stalls   []*resolve.Event
}

// buildEventGroups flattens a frame's resolved blocks into stage-ordered
// event groups. Blocks are already stage-ordered by the resolver, but a
// call event and a later stall can legitimately share a stage, so events
// are bucketed by stage rather than assumed one-per-group.
func buildEventGroups(blocks []*resolve.Block) []*eventGroup {
	byStage := make(map[int]*eventGroup)
	var stages []int

	add := func(stage int, ev *resolve.Event, isCall bool) {
		g, ok := byStage[stage]
		if !ok {
			g = &eventGroup{stage: stage}
			byStage[stage] = g
			stages = append(stages, stage)
		}
		if isCall {
			g.subcalls = append(g.subcalls, ev)
		} else {
			g.stalls = append(g.stalls, ev)
		}
	}

	for _, b := range blocks {
		for _, ev := range b.Events {
			switch ev.Kind {
			case resolve.EventCall:
				add(ev.StartStage, ev, true)
				add(ev.EndStage, ev, false)
			case resolve.EventAxiReadReq:
				add(ev.StartStage, ev, false)
			default:
				add(ev.EndStage, ev, false)
			}
		}
	}

	sort.Ints(stages)
	groups := make([]*eventGroup, len(stages))
	for i, s := range stages {
		groups[i] = byStage[s]
	}
	return groups
}

// frameEndStage is the last resolved block's EndStage, or 0 for an empty
// frame (a function with no traced blocks, which should not occur for a
// well-formed trace but is handled rather than panicking).
func frameEndStage(blocks []*resolve.Block) int {
	if len(blocks) == 0 {
		return 0
	}
	return blocks[len(blocks)-1].EndStage
}

// calleeRegion reports the region the callee's entry block belongs to,
// used to pick a spawned child's start_delay (spec.md §4.2.1 step 4).
func calleeRegion(ev *resolve.Event) *cdfg.Region {
	if len(ev.Subcall) == 0 {
		return nil
	}
	return ev.Subcall[0].Static.Region
}

// startDelay is 0 for a pipelined or dataflow callee, 1 for a plain
// sequential callee.
func startDelay(ev *resolve.Event) int {
	region := calleeRegion(ev)
	if region.IsPipelined() || region.IsDataflow() {
		return 0
	}
	return 1
}
