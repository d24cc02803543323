// Package cdfg is the in-memory static control/data-flow graph model that
// the trace resolver folds raw tokens against. Building this model from an
// HLS schedule database (CDFG XML, LLVM bitcode) is outside this package;
// callers construct Functions directly (tests build small fixtures, a
// real embedder would translate its own schedule format into these types).
package cdfg

import "golang.org/x/xerrors"

// ErrUnknownBlock is returned when a basic block index has no corresponding
// block in a Function.
var ErrUnknownBlock = xerrors.New("unknown basic block index")

// RegionKind classifies a CDFGRegion.
type RegionKind int

const (
	// RegionNone means the enclosing blocks belong to no pipeline or
	// dataflow construct.
	RegionNone RegionKind = iota
	// RegionPipeline is a pipelined loop or function region with a fixed
	// initiation interval.
	RegionPipeline
	// RegionDataflow is a region whose child processes run concurrently,
	// communicating over streams.
	RegionDataflow
)

// Region describes a pipeline or dataflow construct that one or more basic
// blocks belong to.
type Region struct {
	ID   string
	Kind RegionKind

	// II is the initiation interval, meaningful only when Kind ==
	// RegionPipeline.
	II int

	// Sinks lists the process (subcall) names that have no outgoing
	// dataflow channel, meaningful only when Kind == RegionDataflow.
	Sinks []string
}

// IsPipelined reports whether r is a non-nil pipelined region.
func (r *Region) IsPipelined() bool { return r != nil && r.Kind == RegionPipeline }

// IsDataflow reports whether r is a non-nil dataflow region.
func (r *Region) IsDataflow() bool { return r != nil && r.Kind == RegionDataflow }

// Opcode identifies the category of a static event Instruction.
type Opcode string

// The event opcodes a basic block's instruction list may contain, matching
// the ResolvedEvent kinds of the external trace.
const (
	OpCall         Opcode = "call"
	OpFifoRead     Opcode = "fifo_read"
	OpFifoWrite    Opcode = "fifo_write"
	OpAxiReadReq   Opcode = "axi_readreq"
	OpAxiWriteReq  Opcode = "axi_writereq"
	OpAxiRead      Opcode = "axi_read"
	OpAxiWrite     Opcode = "axi_write"
	OpAxiWriteResp Opcode = "axi_writeresp"
)

// Instruction is a single static event instruction within a BasicBlock.
// RelStart/RelEnd are stage offsets relative to the owning block's start.
type Instruction struct {
	Opcode   Opcode
	RelStart int
	RelEnd   int

	// Callee is set only for Opcode == OpCall and names the statically
	// known callee function.
	Callee *Function
}

// BasicBlock is a maximal straight-line schedule region within a Function.
type BasicBlock struct {
	Index      int
	Name       string
	Start, End int // static FSM stage range, as scheduled
	Length     int // End - Start, the block's schedule length in stages
	Terminator string
	Region     *Region
	Events     []*Instruction
}

// IsRet reports whether the block's terminator returns from its function.
func (b *BasicBlock) IsRet() bool { return b.Terminator == "ret" }

// Function is a statically scheduled HLS function: a set of basic blocks
// reachable from Entry.
type Function struct {
	Name   string
	Entry  int
	blocks map[int]*BasicBlock
	// TopPortCount is the number of top-level scalar (interface_type==0)
	// ports, used by the ap_ctrl_chain handshake (spec.md §4.2.6). Only
	// meaningful for the top-level kernel function.
	TopPortCount int
}

// NewFunction returns an empty Function with the given entry block index.
func NewFunction(name string, entry int) *Function {
	return &Function{Name: name, Entry: entry, blocks: make(map[int]*BasicBlock)}
}

// AddBlock registers b under its Index, overwriting any prior block with
// the same index.
func (f *Function) AddBlock(b *BasicBlock) { f.blocks[b.Index] = b }

// Block returns the basic block with the given index.
func (f *Function) Block(index int) (*BasicBlock, error) {
	b, ok := f.blocks[index]
	if !ok {
		return nil, xerrors.Errorf("function %q block %d: %w", f.Name, index, ErrUnknownBlock)
	}
	return b, nil
}

// EntryBlock returns the function's entry basic block.
func (f *Function) EntryBlock() (*BasicBlock, error) { return f.Block(f.Entry) }

// Catalog resolves function names to their static model, the role an
// external CDFG database plays for the resolver.
type Catalog struct {
	fns map[string]*Function
}

// NewCatalog returns an empty function catalog.
func NewCatalog() *Catalog { return &Catalog{fns: make(map[string]*Function)} }

// Register adds fn to the catalog.
func (c *Catalog) Register(fn *Function) { c.fns[fn.Name] = fn }

// Function looks up a function by name.
func (c *Catalog) Function(name string) (*Function, bool) {
	fn, ok := c.fns[name]
	return fn, ok
}
