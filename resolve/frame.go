package resolve

import "github.com/hlscosim/cosim/cdfg"

// frame is one activation record on the resolver's call stack: one
// in-flight invocation of a Function, with its own dynamic/static stage
// watermarks (spec.md §4.1.1).
type frame struct {
	fn     *cdfg.Function
	parent *frame

	// callEvent is the Event in parent's block that spawned this frame.
	// Nil for the root frame.
	callEvent *Event

	blocks []*Block // this frame's resolved trace, in visitation order

	// dynamicStage/staticStage are the frame's running stage watermarks;
	// latestDynamicStage/latestStaticStage are the high-water marks used
	// to reset them on a pipeline-region boundary crossing.
	dynamicStage       int
	staticStage        int
	latestDynamicStage int
	latestStaticStage  int
	pipeline           *cdfg.Region
	blocksSeen         map[int]bool

	// curBlock/curStatic/curEmitted track the block currently absorbing
	// event tokens. curStatic == nil means no block is open.
	curBlock   *Block
	curStatic  *cdfg.BasicBlock
	curEmitted int

	// retPending is set once the frame's last block has resolved and that
	// block's terminator was ret; the frame is popped the next time it
	// reaches the top of the stack (spec.md §4.1.4, deferred returns).
	retPending bool

	// loop is non-nil while a loop/loop_bb/end_loop_blocks/end_loop
	// construct is being collected or replayed for this frame.
	loop *loopState
}

func newFrame(fn *cdfg.Function, parent *frame, callEvent *Event) *frame {
	return &frame{fn: fn, parent: parent, callEvent: callEvent, blocksSeen: make(map[int]bool)}
}

// loopState tracks a single loop construct: the prototype body blocks
// collected between `loop` and `end_loop_blocks`, then the replay position
// as the body repeats tripCount times until `end_loop` (spec.md §4.1.3).
type loopState struct {
	name      string
	tripCount int
	collecting bool

	protoBlocks []*cdfg.BasicBlock

	ii         int
	loopIndex  int // which pass through the body is in progress
	bodyPos    int // index into protoBlocks of the currently active block
	baseStart  []int // iteration-0 StartStage per body position
	baseEnd    []int // iteration-0 EndStage per body position

	startDynamicStage int // frame.dynamicStage snapshot at the `loop` token
	startStaticStage  int

	endStage int // absolute stage the frame snaps to at `end_loop`
}
