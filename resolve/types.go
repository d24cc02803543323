// Package resolve folds a trace token stream against a static CDFG model
// into a hierarchical, stage-indexed schedule of resolved blocks and
// events (spec.md §4.1). The resolved tree it produces is consumed by
// package sim; this package never advances a wall clock or reasons about
// stalls.
package resolve

import (
	"github.com/hlscosim/cosim/cdfg"
	"github.com/hlscosim/cosim/trace"
)

// EventKind is the tagged-union discriminant of a resolved event.
type EventKind string

// The resolved event kinds (spec.md §3).
const (
	EventCall         EventKind = "call"
	EventFifoRead     EventKind = "fifo_read"
	EventFifoWrite    EventKind = "fifo_write"
	EventAxiReadReq   EventKind = "axi_readreq"
	EventAxiWriteReq  EventKind = "axi_writereq"
	EventAxiRead      EventKind = "axi_read"
	EventAxiWrite     EventKind = "axi_write"
	EventAxiWriteResp EventKind = "axi_writeresp"
)

// Event is a single resolved instance of a static event instruction,
// carrying the absolute stage range it occupies in its frame's dynamic
// timeline.
type Event struct {
	Kind                 EventKind
	StartStage, EndStage int

	// Subcall holds the callee's resolved block tree. Populated once the
	// spawned frame completes; only meaningful when Kind == EventCall.
	Subcall []*Block

	// Callee names the statically known callee function; only meaningful
	// when Kind == EventCall.
	Callee *cdfg.Function

	// Stream is set for EventFifoRead/EventFifoWrite.
	Stream *trace.Stream

	// Interface, Offset and Length are set for the AXI event kinds.
	// Offset/Length are only meaningful for *req events; Length alone is
	// meaningful for axi_read/axi_write beats.
	Interface *trace.Interface
	Offset    int64
	Length    int64
}

// Block is a resolved instance of a static BasicBlock: the stage interval
// it occupied in its frame's dynamic timeline, plus the resolved events
// matching its static event instructions in order.
type Block struct {
	Static               *cdfg.BasicBlock
	StartStage, EndStage int
	Events               []*Event
}

// Trace is the resolved call tree rooted at the entry block of the first
// trace_bb seen (spec.md §4.1 Output).
type Trace struct {
	Function *cdfg.Function
	Blocks   []*Block
}

// FunctionLookup resolves a trace_bb token's function name to its static
// model. *cdfg.Catalog implements this directly.
//
//go:generate mockgen -package mocks -destination mocks/mocks.go github.com/hlscosim/cosim/resolve FunctionLookup
type FunctionLookup interface {
	Function(name string) (*cdfg.Function, bool)
}
