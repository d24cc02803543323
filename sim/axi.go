package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/hlscosim/cosim/trace"
)

// Design-significant constants, bit-exact per spec.md §6.4.
const (
	AxiReadOverhead  = 12
	AxiWriteOverhead = 7
	axiBurstPage     = 4096
	axiAdmissionMax  = 16
)

// axiRequest is one outstanding read or write burst handle.
type axiRequest struct {
	cycle     int
	offset    int64
	length    int64
	remaining int64
	bursts    int64
}

func newAxiRequest(cycle int, offset, length int64) *axiRequest {
	return &axiRequest{cycle: cycle, offset: offset, length: length, remaining: length, bursts: burstCount(offset, length)}
}

// burstCount is spec.md §4.2.5's admission-accounting formula, applied
// literally: ceil((offset+length)/4096) - floor(offset/4096) + 1.
func burstCount(offset, length int64) int64 {
	ceilEnd := ceilDiv(offset+length, axiBurstPage)
	floorStart := offset / axiBurstPage
	return ceilEnd - floorStart + 1
}

func ceilDiv(a, b int64) int64 { return (a + b - 1) / b }

// axiDirState is one direction's (read or write) request queues: handles
// admitted into active are consuming; handles in pending are waiting on
// the admission guard's burst-count ceiling.
type axiDirState struct {
	ifaceName      string
	direction      string
	active         []*axiRequest
	pending        []*axiRequest
	admittedBursts int64
}

func (d *axiDirState) submit(req *axiRequest) {
	if d.admittedBursts+req.bursts <= axiAdmissionMax {
		d.admittedBursts += req.bursts
		d.active = append(d.active, req)
		return
	}
	d.pending = append(d.pending, req)
}

// release frees the admission budget held by a completed request and
// admits whatever now fits off the front of pending, raising an admitted
// handle's cycle per spec.md §4.2.5. Admitting off pending is logged at warn
// level (spec.md §4.3) since a handle sitting in pending means the
// interface's 16-burst admission ceiling actually bound the run's timing.
func (d *axiDirState) release(req *axiRequest, currentCycle int) {
	d.admittedBursts -= req.bursts
	for len(d.pending) > 0 {
		next := d.pending[0]
		if d.admittedBursts+next.bursts > axiAdmissionMax {
			break
		}
		d.pending = d.pending[1:]
		if raised := currentCycle - AxiWriteOverhead; raised > next.cycle {
			next.cycle = raised
		}
		d.admittedBursts += next.bursts
		d.active = append(d.active, next)
		logrus.WithFields(logrus.Fields{
			"interface": d.ifaceName,
			"direction": d.direction,
			"cycle":     next.cycle,
			"bursts":    next.bursts,
		}).Warn("admitted deferred axi request from pending queue")
	}
}

// axiState is the per-interface state machine of spec.md §4.2.5.
type axiState struct {
	iface            *trace.Interface
	latency          int
	read             axiDirState
	write            axiDirState
	writeCompletions []int // FIFO of completion cycles awaiting writeresp
}

func newAxiState(iface *trace.Interface, latency int) *axiState {
	if latency < 1 {
		latency = 1
	}
	return &axiState{
		iface:   iface,
		latency: latency,
		read:    axiDirState{ifaceName: iface.Name, direction: "read"},
		write:   axiDirState{ifaceName: iface.Name, direction: "write"},
	}
}

func (a *axiState) readReq(cycle int, offset, length int64) {
	a.read.submit(newAxiRequest(cycle, offset, length))
}

func (a *axiState) writeReq(cycle int, offset, length int64) {
	a.write.submit(newAxiRequest(cycle, offset, length))
}

// oldestActiveRead returns the oldest outstanding read request, the one
// unstallable_at's axi_read computation keys off.
func (a *axiState) oldestActiveRead() (*axiRequest, bool) {
	if len(a.read.active) == 0 {
		return nil, false
	}
	return a.read.active[0], true
}

// oldestWriteCompletion returns the oldest write-completion cycle not yet
// consumed by a writeresp, the value unstallable_at's axi_writeresp
// computation keys off.
func (a *axiState) oldestWriteCompletion() (int, bool) {
	if len(a.writeCompletions) == 0 {
		return 0, false
	}
	return a.writeCompletions[0], true
}

// readBeat consumes length bytes from the oldest active read request,
// popping it once fully consumed.
func (a *axiState) readBeat(length int64, cycle int) error {
	if len(a.read.active) == 0 {
		return ErrMissingAxiRequest
	}
	req := a.read.active[0]
	req.remaining -= length
	if req.remaining <= 0 {
		a.read.active = a.read.active[1:]
		a.read.release(req, cycle)
	}
	return nil
}

// writeBeat consumes length bytes from the oldest active write request,
// recording its completion cycle once fully consumed.
func (a *axiState) writeBeat(length int64, cycle int) error {
	if len(a.write.active) == 0 {
		return ErrMissingAxiRequest
	}
	req := a.write.active[0]
	req.remaining -= length
	if req.remaining <= 0 {
		a.write.active = a.write.active[1:]
		a.writeCompletions = append(a.writeCompletions, cycle)
		a.write.release(req, cycle)
	}
	return nil
}

func (a *axiState) writeResp() error {
	if len(a.writeCompletions) == 0 {
		return ErrMissingAxiRequest
	}
	a.writeCompletions = a.writeCompletions[1:]
	return nil
}
