package resolve

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/hlscosim/cosim/cdfg"
	"github.com/hlscosim/cosim/trace"
	"github.com/hlscosim/cosim/tracing"
)

// DefaultBatchSize bounds how many tokens Resolver.Resolve folds before
// yielding to the caller's progress callback (spec.md §4.1.6, cooperative
// batching so a caller can report progress or cancel without the resolver
// blocking for the whole trace in one shot).
const DefaultBatchSize = 4096

// Resolver folds a trace token stream into a resolved Trace. A Resolver is
// single-use: construct a fresh one per Resolve call.
type Resolver struct {
	fns     FunctionLookup
	catalog *trace.Catalog
	log     *logrus.Entry

	// BatchSize overrides DefaultBatchSize when positive.
	BatchSize int

	// RunID tags tracing spans and log lines for this Resolve call; empty
	// by default, set by a caller that wants to correlate a resolve run
	// with the simulation run it feeds.
	RunID string

	apCtrlChain bool
	stack       []*frame
	rootFn      *cdfg.Function
	rootBlocks  []*Block
}

// NewResolver returns a Resolver that looks up functions in fns and interns
// FIFO/AXI descriptors into catalog as it encounters their declarations.
func NewResolver(fns FunctionLookup, catalog *trace.Catalog) *Resolver {
	return &Resolver{
		fns:     fns,
		catalog: catalog,
		log:     logrus.WithField("component", "resolve"),
	}
}

// ApCtrlChain reports whether an ap_ctrl_chain token was seen.
func (r *Resolver) ApCtrlChain() bool { return r.apCtrlChain }

// Resolve folds tokens into a Trace. progress, if non-nil, is invoked with
// the fraction of tokens consumed after each batch of BatchSize tokens. ctx
// carries one tracing.StartResolveSpan per batch (spec.md §4.1.6, §4.3/§4.4
// ambient stack); a nil-tracer context behaves identically to no tracer at
// all.
func (r *Resolver) Resolve(ctx context.Context, tokens []trace.Token, progress func(float64)) (*Trace, error) {
	if len(tokens) == 0 {
		return nil, ErrKernelDidNotRun
	}

	batch := r.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	for start := 0; start < len(tokens); start += batch {
		end := start + batch
		if end > len(tokens) {
			end = len(tokens)
		}

		span, spanCtx := tracing.StartResolveSpan(ctx, r.RunID, start)
		ctx = spanCtx
		for i := start; i < end; i++ {
			if err := r.step(tokens[i]); err != nil {
				span.Finish()
				return nil, xerrors.Errorf("token %d (%s): %w", i, tokens[i].Kind, err)
			}
		}
		span.Finish()

		frac := float64(end) / float64(len(tokens))
		r.log.WithFields(logrus.Fields{"run_id": r.RunID, "tokens_consumed": end, "total_tokens": len(tokens)}).Debug("resolve batch progress")
		if progress != nil {
			progress(frac)
		}
	}

	if len(r.stack) != 0 {
		return nil, ErrIncompleteTrace
	}
	if r.rootBlocks == nil {
		return nil, ErrIncompleteTrace
	}
	return &Trace{Function: r.rootFn, Blocks: r.rootBlocks}, nil
}

// step processes one token. Before dispatching on the token's kind, it
// drains any pending call instructions at the top of the stack: a call is
// spawned as soon as it is the next expected static instruction, without
// consuming the token that triggered the check (spec.md §4.1.2) — because
// that token is typically the callee's own first trace_bb.
func (r *Resolver) step(tok trace.Token) error {
	for {
		pushed, err := r.drainPendingCall()
		if err != nil {
			return err
		}
		if pushed {
			continue
		}
		advanced, err := r.drainPendingLoopAdvance(tok)
		if err != nil {
			return err
		}
		if !advanced {
			break
		}
	}

	switch tok.Kind {
	case trace.KindSpecChannel:
		r.catalog.DeclareStream(tok.Addr, tok.Name, tok.Depth)
		return nil
	case trace.KindSpecInterface:
		r.catalog.DeclareInterface(tok.Addr, tok.Name, tok.Latency)
		return nil
	case trace.KindApCtrlChain:
		r.apCtrlChain = true
		return nil
	case trace.KindTraceBB:
		return r.enterBlock(tok.Function, tok.BlockIndex)
	case trace.KindLoop:
		return r.beginLoop(tok.LoopName, tok.TripCount)
	case trace.KindLoopBB:
		return r.collectLoopBlock(tok.Function, tok.BlockIndex)
	case trace.KindEndLoopBlocks:
		return r.endLoopBlocks()
	case trace.KindEndLoop:
		return r.endLoop()
	default:
		return r.absorbEventToken(tok)
	}
}

// drainPendingCall spawns a child frame if the top frame's current block
// has a call instruction as its next unabsorbed event. Returns true if it
// pushed a frame, in which case the caller must re-check (a function
// entered with zero events, e.g., could itself call something on its
// first block once an event arrives — though in practice a single pass
// suffices since a fresh frame has no curStatic yet).
func (r *Resolver) drainPendingCall() (bool, error) {
	if len(r.stack) == 0 {
		return false, nil
	}
	top := r.stack[len(r.stack)-1]
	if top.curStatic == nil {
		return false, nil
	}
	instrs := top.curStatic.Events
	if top.curEmitted >= len(instrs) {
		return false, nil
	}
	instr := instrs[top.curEmitted]
	if instr.Opcode != cdfg.OpCall {
		return false, nil
	}
	if instr.Callee == nil {
		return false, xerrors.Errorf("call instruction in block %q has no statically known callee: %w", top.curStatic.Name, ErrProtocolViolation)
	}

	ev := &Event{
		Kind:       EventCall,
		StartStage: top.curBlock.StartStage + instr.RelStart,
		EndStage:   top.curBlock.StartStage + instr.RelEnd,
		Callee:     instr.Callee,
	}
	top.curBlock.Events = append(top.curBlock.Events, ev)
	top.curEmitted++

	r.stack = append(r.stack, newFrame(instr.Callee, top, ev))

	if top.curEmitted == len(instrs) {
		if err := r.onBlockEventsExhausted(top); err != nil {
			return false, err
		}
	}
	return true, nil
}

// drainPendingLoopAdvance moves a frame that is between loop-body passes
// (its loop is replaying, not collecting, and no block is currently open)
// onto its next body block — unless the incoming token is end_loop, which
// is what actually closes the construct.
func (r *Resolver) drainPendingLoopAdvance(tok trace.Token) (bool, error) {
	if len(r.stack) == 0 {
		return false, nil
	}
	top := r.stack[len(r.stack)-1]
	if top.loop == nil || top.loop.collecting || top.curStatic != nil {
		return false, nil
	}
	if tok.Kind == trace.KindEndLoop {
		return false, nil
	}
	return true, r.advanceLoopReplay(top)
}

// enterBlock handles a trace_bb token against the top frame, creating the
// root frame on the very first token of the whole trace.
func (r *Resolver) enterBlock(fnName string, blockIdx int) error {
	if len(r.stack) == 0 {
		fn, ok := r.fns.Function(fnName)
		if !ok {
			return xerrors.Errorf("unknown function %q: %w", fnName, ErrProtocolViolation)
		}
		r.rootFn = fn
		r.stack = append(r.stack, newFrame(fn, nil, nil))
	}

	top := r.stack[len(r.stack)-1]
	if top.curStatic != nil {
		return xerrors.Errorf("trace_bb while block %q still absorbing events: %w", top.curStatic.Name, ErrProtocolViolation)
	}
	if top.loop != nil {
		return xerrors.Errorf("trace_bb during open loop construct %q: %w", top.loop.name, ErrProtocolViolation)
	}
	if fnName != top.fn.Name {
		return xerrors.Errorf("trace_bb names function %q, active frame is %q: %w", fnName, top.fn.Name, ErrProtocolViolation)
	}

	block, err := top.fn.Block(blockIdx)
	if err != nil {
		return err
	}
	return r.enterBlockStatic(top, block)
}

// enterBlockStatic performs the stage arithmetic of spec.md §4.1.1 for
// block entering frame f's dynamic timeline, whether reached via trace_bb
// or via loop-body replay's first pass.
func (r *Resolver) enterBlockStatic(f *frame, block *cdfg.BasicBlock) error {
	region := block.Region
	if region != f.pipeline {
		f.dynamicStage = f.latestDynamicStage
		f.staticStage = f.latestStaticStage
	}

	overlap := f.staticStage - block.Start
	switch {
	case !region.IsPipelined() && (overlap < -1 || f.blocksSeen[block.Index]):
		overlap = -1
	case region.IsPipelined() && f.blocksSeen[block.Index]:
		overlap -= region.II
	}

	if f.blocksSeen[block.Index] {
		f.blocksSeen = make(map[int]bool)
	}
	f.blocksSeen[block.Index] = true

	f.dynamicStage += block.Length - overlap
	f.staticStage = block.End

	if f.dynamicStage >= f.latestDynamicStage {
		f.latestDynamicStage = f.dynamicStage
		f.latestStaticStage = f.staticStage
	}
	f.pipeline = region

	rb := &Block{Static: block, StartStage: f.dynamicStage - block.Length, EndStage: f.dynamicStage}
	f.blocks = append(f.blocks, rb)
	f.curBlock = rb
	f.curStatic = block
	f.curEmitted = 0

	if f.loop != nil && !f.loop.collecting && f.loop.loopIndex == 0 {
		pos := f.loop.bodyPos
		if pos >= 0 && pos < len(f.loop.baseStart) {
			f.loop.baseStart[pos] = rb.StartStage
			f.loop.baseEnd[pos] = rb.EndStage
		}
	}

	if len(block.Events) == 0 {
		return r.onBlockEventsExhausted(f)
	}
	return nil
}

// absorbEventToken matches tok against the top frame's next expected
// static event instruction (never a call — drainPendingCall already
// handled those) and appends the resolved Event.
func (r *Resolver) absorbEventToken(tok trace.Token) error {
	if len(r.stack) == 0 {
		return xerrors.Errorf("event token %q with no active frame: %w", tok.Kind, ErrProtocolViolation)
	}
	top := r.stack[len(r.stack)-1]
	if top.curStatic == nil {
		return xerrors.Errorf("event token %q with no open block: %w", tok.Kind, ErrProtocolViolation)
	}
	instrs := top.curStatic.Events
	if top.curEmitted >= len(instrs) {
		return xerrors.Errorf("event token %q exceeds block %q's static event list: %w", tok.Kind, top.curStatic.Name, ErrProtocolViolation)
	}
	instr := instrs[top.curEmitted]
	if !tokenMatchesOpcode(tok.Kind, instr.Opcode) {
		return xerrors.Errorf("block %q expected a %s event, got %s: %w", top.curStatic.Name, instr.Opcode, tok.Kind, ErrProtocolViolation)
	}

	ev, err := r.buildEvent(tok, instr, top.curBlock)
	if err != nil {
		return err
	}
	top.curBlock.Events = append(top.curBlock.Events, ev)
	top.curEmitted++

	if top.curEmitted == len(instrs) {
		return r.onBlockEventsExhausted(top)
	}
	return nil
}

func (r *Resolver) buildEvent(tok trace.Token, instr *cdfg.Instruction, block *Block) (*Event, error) {
	start := block.StartStage + instr.RelStart
	end := block.StartStage + instr.RelEnd

	switch instr.Opcode {
	case cdfg.OpFifoRead, cdfg.OpFifoWrite:
		s, err := r.catalog.Stream(tok.Addr)
		if err != nil {
			return nil, err
		}
		kind := EventFifoRead
		if instr.Opcode == cdfg.OpFifoWrite {
			kind = EventFifoWrite
		}
		return &Event{Kind: kind, StartStage: start, EndStage: end, Stream: s}, nil

	case cdfg.OpAxiReadReq, cdfg.OpAxiWriteReq:
		iface, err := r.catalog.InterfaceForAddr(tok.Addr)
		if err != nil {
			return nil, err
		}
		kind := EventAxiReadReq
		if instr.Opcode == cdfg.OpAxiWriteReq {
			kind = EventAxiWriteReq
		}
		return &Event{Kind: kind, StartStage: start, EndStage: end, Interface: iface, Offset: tok.Offset, Length: tok.Length}, nil

	case cdfg.OpAxiRead, cdfg.OpAxiWrite:
		iface, err := r.catalog.InterfaceForAddr(tok.Addr)
		if err != nil {
			return nil, err
		}
		kind := EventAxiRead
		if instr.Opcode == cdfg.OpAxiWrite {
			kind = EventAxiWrite
		}
		return &Event{Kind: kind, StartStage: start, EndStage: end, Interface: iface, Length: tok.Length}, nil

	case cdfg.OpAxiWriteResp:
		iface, err := r.catalog.InterfaceForAddr(tok.Addr)
		if err != nil {
			return nil, err
		}
		return &Event{Kind: EventAxiWriteResp, StartStage: start, EndStage: end, Interface: iface}, nil

	default:
		return nil, xerrors.Errorf("unsupported static opcode %q: %w", instr.Opcode, ErrProtocolViolation)
	}
}

func tokenMatchesOpcode(k trace.Kind, op cdfg.Opcode) bool {
	switch op {
	case cdfg.OpFifoRead:
		return k == trace.KindFifoRead
	case cdfg.OpFifoWrite:
		return k == trace.KindFifoWrite
	case cdfg.OpAxiReadReq:
		return k == trace.KindAxiReadReq
	case cdfg.OpAxiWriteReq:
		return k == trace.KindAxiWriteReq
	case cdfg.OpAxiRead:
		return k == trace.KindAxiRead
	case cdfg.OpAxiWrite:
		return k == trace.KindAxiWrite
	case cdfg.OpAxiWriteResp:
		return k == trace.KindAxiWriteResp
	default:
		return false
	}
}

// onBlockEventsExhausted is called once a block's static event list has
// been fully absorbed, whether the block had zero events to begin with or
// its last event token just arrived. Inside loop replay the block is just
// closed; step's drainPendingLoopAdvance decides, once the next token is
// known, whether that means another body pass or the matching end_loop.
func (r *Resolver) onBlockEventsExhausted(f *frame) error {
	if f.loop != nil && !f.loop.collecting {
		f.curBlock = nil
		f.curStatic = nil
		f.curEmitted = 0
		return nil
	}
	return r.finalizeBlock(f)
}

func (r *Resolver) finalizeBlock(f *frame) error {
	wasRet := f.curStatic.IsRet()
	f.curBlock = nil
	f.curStatic = nil
	f.curEmitted = 0
	if wasRet {
		f.retPending = true
	}
	r.tryPopCascade()
	return nil
}

// tryPopCascade pops frames off the top of the stack as long as each is
// retPending, implementing deferred-return semantics: a frame whose last
// block returned only actually pops once it is exposed at the top of the
// stack, which may cascade into popping its own caller immediately after
// (spec.md §4.1.4).
func (r *Resolver) tryPopCascade() {
	for len(r.stack) > 0 {
		top := r.stack[len(r.stack)-1]
		if !top.retPending {
			return
		}
		r.stack = r.stack[:len(r.stack)-1]
		if top.callEvent != nil {
			top.callEvent.Subcall = top.blocks
		} else {
			r.rootBlocks = top.blocks
		}
	}
}
