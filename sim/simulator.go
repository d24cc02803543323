package sim

import "github.com/hlscosim/cosim/resolve"

// cycleBreakpoint is one recorded (stage, cycle) pair, used to resolve an
// arbitrary stage back to the cycle it started at (spec.md §4.2.7). A
// frame's cycle_map only grows breakpoints when a stage's cycle deviates
// from what a flat one-cycle-per-stage count would predict — pipelined and
// dataflow regions overlap stages, so most stages need no entry at all.
type cycleBreakpoint struct {
	stage int
	cycle int
}

// Simulator is one frame's cycle-accurate cursor: the resolved blocks it
// walks, the stage-ordered event groups derived from them, and the
// (stage, cycle) pairs needed to answer "what cycle did stage N start at"
// for any stage a caller names later (spec.md §4.2.1, §4.2.7).
type Simulator struct {
	id        int
	name      string
	parent    *Simulator
	callEvent *resolve.Event // the event in parent that spawned this frame; nil for the top frame

	blocks []*resolve.Block
	groups []*eventGroup

	startCycle int
	cycle      int
	stage      int
	endStage   int
	groupIdx   int // index into groups of the current group; -1 before the first step
	done       bool

	cycleMap []cycleBreakpoint
	subcalls map[*resolve.Event]*Simulator
}

func newSimulator(id int, parent *Simulator, callEvent *resolve.Event, startCycle int, blocks []*resolve.Block) *Simulator {
	return &Simulator{
		id:         id,
		parent:     parent,
		callEvent:  callEvent,
		name:       calleeName(callEvent),
		blocks:     blocks,
		groups:     buildEventGroups(blocks),
		startCycle: startCycle,
		cycle:      startCycle,
		groupIdx:   -1,
		endStage:   frameEndStage(blocks),
		subcalls:   make(map[*resolve.Event]*Simulator),
	}
}

func calleeName(callEvent *resolve.Event) string {
	if callEvent == nil || callEvent.Callee == nil {
		return ""
	}
	return callEvent.Callee.Name
}

// ID is the frame's creation order, used as the tie-break for simultaneous
// unstall candidates (spec.md §4.2.2).
func (s *Simulator) ID() int { return s.id }

// Name is the frame's function name, or "" for the top frame (the caller
// knows its own kernel's name; Simulator only tracks callee names).
func (s *Simulator) Name() string { return s.name }

// Done reports whether the frame has advanced past its last event group.
func (s *Simulator) Done() bool { return s.done }

// Cycle is the frame's current cycle.
func (s *Simulator) Cycle() int { return s.cycle }

// StartCycle is the cycle the frame was spawned at.
func (s *Simulator) StartCycle() int { return s.startCycle }

// Blocks returns the frame's resolved block list, the same tree result
// construction walks to find each block's call events in order.
func (s *Simulator) Blocks() []*resolve.Block { return s.blocks }

// Child returns the spawned frame for a call event in this frame's blocks,
// if the call has already been reached.
func (s *Simulator) Child(ev *resolve.Event) (*Simulator, bool) {
	c, ok := s.subcalls[ev]
	return c, ok
}

// currentStalls returns the stall events of the frame's current group, or
// nil if the frame is done or has not yet taken its first step.
func (s *Simulator) currentStalls() []*resolve.Event {
	if s.done || s.groupIdx < 0 || s.groupIdx >= len(s.groups) {
		return nil
	}
	return s.groups[s.groupIdx].stalls
}

// step advances the frame to its next event group (or to endStage, marking
// it done, if none remain), recording a cycle_map breakpoint first whenever
// the frame's actual cycle has drifted from the flat stage-start
// assumption. It returns the newly current group's call events, which the
// caller (Simulation) is responsible for spawning child frames for.
func (s *Simulator) step() []*resolve.Event {
	if s.cycle != s.resolveStageStart(s.stage) {
		s.cycleMap = append(s.cycleMap, cycleBreakpoint{stage: s.stage, cycle: s.cycle})
	}

	next := s.groupIdx + 1
	if next >= len(s.groups) {
		s.cycle += s.endStage - s.stage
		s.stage = s.endStage
		s.groupIdx = next
		s.done = true
		return nil
	}

	g := s.groups[next]
	s.cycle += g.stage - s.stage
	s.stage = g.stage
	s.groupIdx = next
	return g.subcalls
}

// resolveStageStart is spec.md §4.2.7's stage-to-cycle lookup: the cycle
// the greatest recorded breakpoint stage not exceeding the target stage
// started at, plus the flat one-cycle-per-stage remainder; startCycle
// itself is the implicit breakpoint at stage 0 when no recorded breakpoint
// applies.
func (s *Simulator) resolveStageStart(stage int) int {
	bestStage := -1
	bestCycle := s.startCycle
	for _, bp := range s.cycleMap {
		if bp.stage <= stage && bp.stage > bestStage {
			bestStage = bp.stage
			bestCycle = bp.cycle
		}
	}
	if bestStage < 0 {
		return s.startCycle + stage
	}
	return bestCycle + (stage - bestStage)
}

// resolveStageEnd is the last cycle occupied by stage, derived from where
// the following stage starts.
func (s *Simulator) resolveStageEnd(stage int) int {
	return s.resolveStageStart(stage+1) - 1
}
