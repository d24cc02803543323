package sim

import "github.com/hlscosim/cosim/trace"

// fifoState is the per-stream state machine of spec.md §4.2.4.
type fifoState struct {
	stream *trace.Stream
	depth  int // effective depth after params override; trace.UnboundedDepth means unbounded

	writes *ring
	reads  *ring

	observedDepth int
	dirty         bool
}

func newFifoState(s *trace.Stream, depth int) *fifoState {
	return &fifoState{stream: s, depth: depth, writes: newRing(depth), reads: newRing(depth)}
}

// isShiftRegister reports the stream's type: SHIFT_REGISTER for depth <= 2
// or unbounded, RAM otherwise.
func (f *fifoState) isShiftRegister() bool {
	return f.depth == trace.UnboundedDepth || f.depth <= 2
}

func (f *fifoState) readDelay() int {
	if f.isShiftRegister() {
		return 1
	}
	return 2
}

func (f *fifoState) writeDelay() int { return 1 }

// writableAt returns the earliest cycle a write is admissible, or ok=false
// if the stream is currently at write capacity.
func (f *fifoState) writableAt() (cycle int, ok bool) {
	if f.writes.Full() {
		return 0, false
	}
	if !f.reads.Full() {
		return 0, true
	}
	oldestRead, _ := f.reads.Front()
	return oldestRead + f.writeDelay(), true
}

// readableAt returns the earliest cycle a read is admissible, or ok=false
// if there is nothing written yet to read.
func (f *fifoState) readableAt() (cycle int, ok bool) {
	oldestWrite, ok := f.writes.Front()
	if !ok {
		return 0, false
	}
	return oldestWrite + f.readDelay(), true
}

func (f *fifoState) write(cycle int) {
	f.writes.PushBack(cycle)
	f.dirty = true
}

func (f *fifoState) read(cycle int) {
	f.writes.PopFront()
	f.reads.PushBack(cycle)
	f.dirty = true
}

// tick flushes the pending occupancy observation (spec.md §4.2.2 step 5).
func (f *fifoState) tick() {
	if !f.dirty {
		return
	}
	if f.writes.Len() > f.observedDepth {
		f.observedDepth = f.writes.Len()
	}
	f.dirty = false
}
