package resolve

import "golang.org/x/xerrors"

// beginLoop opens collection of a loop's prototype body blocks (spec.md
// §4.1.3). The frame's current stage watermarks are snapshotted as the
// loop's start_stage.
func (r *Resolver) beginLoop(name string, tripCount int) error {
	if len(r.stack) == 0 {
		return xerrors.Errorf("loop %q with no active frame: %w", name, ErrProtocolViolation)
	}
	top := r.stack[len(r.stack)-1]
	if top.curStatic != nil {
		return xerrors.Errorf("loop %q opened while a block is still absorbing events: %w", name, ErrProtocolViolation)
	}
	if top.loop != nil {
		return xerrors.Errorf("loop %q opened while loop %q is still open: %w", name, top.loop.name, ErrProtocolViolation)
	}
	top.loop = &loopState{
		name:              name,
		tripCount:         tripCount,
		collecting:        true,
		startDynamicStage: top.dynamicStage,
		startStaticStage:  top.staticStage,
	}
	return nil
}

// collectLoopBlock appends a prototype body block named by a loop_bb
// token, seen between `loop` and `end_loop_blocks`.
func (r *Resolver) collectLoopBlock(fnName string, blockIdx int) error {
	if len(r.stack) == 0 {
		return xerrors.Errorf("loop_bb with no active frame: %w", ErrProtocolViolation)
	}
	top := r.stack[len(r.stack)-1]
	if top.loop == nil || !top.loop.collecting {
		return xerrors.Errorf("loop_bb outside an open loop construct: %w", ErrProtocolViolation)
	}
	if fnName != top.fn.Name {
		return xerrors.Errorf("loop_bb names function %q, active frame is %q: %w", fnName, top.fn.Name, ErrProtocolViolation)
	}
	block, err := top.fn.Block(blockIdx)
	if err != nil {
		return err
	}
	top.loop.protoBlocks = append(top.loop.protoBlocks, block)
	return nil
}

// endLoopBlocks closes prototype collection, computes the loop's
// initiation interval and end stage (spec.md §4.1.3), and begins replaying
// the body from its first block.
func (r *Resolver) endLoopBlocks() error {
	if len(r.stack) == 0 {
		return xerrors.Errorf("end_loop_blocks with no active frame: %w", ErrProtocolViolation)
	}
	top := r.stack[len(r.stack)-1]
	lp := top.loop
	if lp == nil || !lp.collecting {
		return xerrors.Errorf("end_loop_blocks outside an open loop construct: %w", ErrProtocolViolation)
	}
	if len(lp.protoBlocks) == 0 {
		return xerrors.Errorf("loop %q has no body blocks: %w", lp.name, ErrProtocolViolation)
	}

	first := lp.protoBlocks[0]
	last := lp.protoBlocks[len(lp.protoBlocks)-1]
	loopOverlapLength := last.End - first.Start

	var lastBlockOverlap int
	if first.Region.IsPipelined() {
		lp.ii = first.Region.II
		lastBlockOverlap = loopOverlapLength - lp.ii
	} else {
		lp.ii = loopOverlapLength + 1
		lastBlockOverlap = -1
	}

	lp.endStage = lp.startDynamicStage + loopOverlapLength + lp.ii*(lp.tripCount-1) + first.Length - lastBlockOverlap

	lp.collecting = false
	lp.bodyPos = -1
	lp.baseStart = make([]int, len(lp.protoBlocks))
	lp.baseEnd = make([]int, len(lp.protoBlocks))

	// Body replay begins lazily: the next token (step's
	// drainPendingLoopAdvance) decides whether it's another body pass or
	// an immediate end_loop.
	return nil
}

// advanceLoopReplay moves f.loop to the next body position, wrapping back
// to the first block and bumping loopIndex when the body is exhausted.
// The first pass (loopIndex == 0) runs the normal stage-overlap arithmetic
// to establish each body block's base stage range; every later pass reuses
// that base shifted by ii*loopIndex, since a steady-state pipelined loop
// body repeats on an exact ii-cycle cadence (spec.md §4.1.3).
func (r *Resolver) advanceLoopReplay(f *frame) error {
	lp := f.loop
	lp.bodyPos++
	if lp.bodyPos >= len(lp.protoBlocks) {
		lp.bodyPos = 0
		lp.loopIndex++
	}
	block := lp.protoBlocks[lp.bodyPos]

	if lp.loopIndex == 0 {
		return r.enterBlockStatic(f, block)
	}

	start := lp.baseStart[lp.bodyPos] + lp.ii*lp.loopIndex
	end := lp.baseEnd[lp.bodyPos] + lp.ii*lp.loopIndex

	rb := &Block{Static: block, StartStage: start, EndStage: end}
	f.blocks = append(f.blocks, rb)
	f.curBlock = rb
	f.curStatic = block
	f.curEmitted = 0
	f.dynamicStage = end
	f.staticStage = block.End
	if f.dynamicStage >= f.latestDynamicStage {
		f.latestDynamicStage = f.dynamicStage
		f.latestStaticStage = f.staticStage
	}

	if len(block.Events) == 0 {
		return r.onBlockEventsExhausted(f)
	}
	return nil
}

// endLoop closes a loop construct: the frame's stage watermarks snap to
// the precomputed end_stage and blocksSeen is reseeded with the loop's
// first block, the same state a single pass through the body would have
// left behind (spec.md §4.1.3).
func (r *Resolver) endLoop() error {
	if len(r.stack) == 0 {
		return xerrors.Errorf("end_loop with no active frame: %w", ErrProtocolViolation)
	}
	top := r.stack[len(r.stack)-1]
	lp := top.loop
	if lp == nil || lp.collecting {
		return xerrors.Errorf("end_loop outside a replaying loop construct: %w", ErrProtocolViolation)
	}
	if top.curStatic != nil {
		return xerrors.Errorf("end_loop while loop body block %q is still absorbing events: %w", top.curStatic.Name, ErrProtocolViolation)
	}

	// dynamicStage snaps to the computed end stage, but staticStage tracks
	// the static schedule position: the body's last block's static End, the
	// point the next static block's Start should line up against. Using
	// the dynamic end stage here would corrupt the overlap arithmetic for
	// whatever block follows.
	lastProto := lp.protoBlocks[len(lp.protoBlocks)-1]
	top.dynamicStage = lp.endStage
	top.staticStage = lastProto.End
	if top.dynamicStage >= top.latestDynamicStage {
		top.latestDynamicStage = top.dynamicStage
		top.latestStaticStage = top.staticStage
	}
	top.blocksSeen = map[int]bool{lp.protoBlocks[0].Index: true}
	top.loop = nil
	return nil
}
