package resolve_test

import (
	"context"
	"testing"

	gc "gopkg.in/check.v1"

	"github.com/hlscosim/cosim/cdfg"
	"github.com/hlscosim/cosim/resolve"
	"github.com/hlscosim/cosim/trace"
)

func Test(t *testing.T) { gc.TestingT(t) }

var _ = gc.Suite(new(ResolverSuite))

type ResolverSuite struct{}

func (s *ResolverSuite) TestSequentialBlocksAccumulateStages(c *gc.C) {
	cat := cdfg.NewCatalog()
	dut := cdfg.NewFunction("dut", 0)
	dut.AddBlock(&cdfg.BasicBlock{Index: 0, Name: "entry", Start: 0, End: 4, Length: 4, Terminator: "br"})
	dut.AddBlock(&cdfg.BasicBlock{Index: 1, Name: "exit", Start: 4, End: 8, Length: 4, Terminator: "ret"})
	cat.Register(dut)

	toks := []trace.Token{
		{Kind: trace.KindTraceBB, Function: "dut", BlockIndex: 0},
		{Kind: trace.KindTraceBB, Function: "dut", BlockIndex: 1},
	}

	r := resolve.NewResolver(cat, trace.NewCatalog())
	tr, err := r.Resolve(context.Background(), toks, nil)
	c.Assert(err, gc.IsNil)
	c.Assert(tr.Blocks, gc.HasLen, 2)
	c.Assert(tr.Blocks[0].StartStage, gc.Equals, 0)
	c.Assert(tr.Blocks[0].EndStage, gc.Equals, 4)
	c.Assert(tr.Blocks[1].StartStage, gc.Equals, 4)
	c.Assert(tr.Blocks[1].EndStage, gc.Equals, 8)
}

func (s *ResolverSuite) TestCallPushesFrameAndDeferredReturnCascades(c *gc.C) {
	helper := cdfg.NewFunction("helper", 0)
	helper.AddBlock(&cdfg.BasicBlock{
		Index: 0, Name: "entry", Start: 0, End: 2, Length: 2, Terminator: "ret",
		Events: []*cdfg.Instruction{{Opcode: cdfg.OpFifoWrite, RelStart: 0, RelEnd: 1}},
	})

	dut := cdfg.NewFunction("dut", 0)
	dut.AddBlock(&cdfg.BasicBlock{
		Index: 0, Name: "entry", Start: 0, End: 1, Length: 1, Terminator: "ret",
		Events: []*cdfg.Instruction{{Opcode: cdfg.OpCall, RelStart: 0, RelEnd: 1, Callee: helper}},
	})

	fns := cdfg.NewCatalog()
	fns.Register(dut)
	fns.Register(helper)

	tcat := trace.NewCatalog()
	tcat.DeclareStream(0x10, "s0", 4)

	toks := []trace.Token{
		{Kind: trace.KindTraceBB, Function: "dut", BlockIndex: 0},
		{Kind: trace.KindTraceBB, Function: "helper", BlockIndex: 0},
		{Kind: trace.KindFifoWrite, Addr: 0x10},
	}

	r := resolve.NewResolver(fns, tcat)
	tr, err := r.Resolve(context.Background(), toks, nil)
	c.Assert(err, gc.IsNil)
	c.Assert(tr.Function.Name, gc.Equals, "dut")
	c.Assert(tr.Blocks, gc.HasLen, 1)

	callEv := tr.Blocks[0].Events[0]
	c.Assert(callEv.Kind, gc.Equals, resolve.EventCall)
	c.Assert(callEv.StartStage, gc.Equals, 0)
	c.Assert(callEv.EndStage, gc.Equals, 1)
	c.Assert(callEv.Subcall, gc.HasLen, 1)

	writeEv := callEv.Subcall[0].Events[0]
	c.Assert(writeEv.Kind, gc.Equals, resolve.EventFifoWrite)
	c.Assert(writeEv.Stream.Name, gc.Equals, "s0")
	c.Assert(writeEv.StartStage, gc.Equals, 0)
	c.Assert(writeEv.EndStage, gc.Equals, 1)
}

func (s *ResolverSuite) TestPipelinedLoopReplayAdvancesByInitiationInterval(c *gc.C) {
	region := &cdfg.Region{ID: "L0", Kind: cdfg.RegionPipeline, II: 2}

	dut := cdfg.NewFunction("dut", 0)
	dut.AddBlock(&cdfg.BasicBlock{Index: 0, Name: "preheader", Start: 0, End: 2, Length: 2, Terminator: "br"})
	body := &cdfg.BasicBlock{
		Index: 1, Name: "body", Start: 2, End: 5, Length: 3, Terminator: "br", Region: region,
		Events: []*cdfg.Instruction{{Opcode: cdfg.OpFifoWrite, RelStart: 0, RelEnd: 1}},
	}
	dut.AddBlock(body)
	dut.AddBlock(&cdfg.BasicBlock{Index: 2, Name: "exit", Start: 5, End: 6, Length: 1, Terminator: "ret"})
	fns := cdfg.NewCatalog()
	fns.Register(dut)

	tcat := trace.NewCatalog()
	tcat.DeclareStream(0x10, "s0", 4)

	toks := []trace.Token{
		{Kind: trace.KindTraceBB, Function: "dut", BlockIndex: 0},
		{Kind: trace.KindLoop, LoopName: "L0", TripCount: 3},
		{Kind: trace.KindLoopBB, Function: "dut", BlockIndex: 1},
		{Kind: trace.KindEndLoopBlocks},
		{Kind: trace.KindFifoWrite, Addr: 0x10},
		{Kind: trace.KindFifoWrite, Addr: 0x10},
		{Kind: trace.KindFifoWrite, Addr: 0x10},
		{Kind: trace.KindEndLoop},
		{Kind: trace.KindTraceBB, Function: "dut", BlockIndex: 2},
	}

	r := resolve.NewResolver(fns, tcat)
	tr, err := r.Resolve(context.Background(), toks, nil)
	c.Assert(err, gc.IsNil)

	// preheader, 3 loop-body passes, exit.
	c.Assert(tr.Blocks, gc.HasLen, 5)
	c.Assert(tr.Blocks[0].EndStage, gc.Equals, 2) // preheader

	pass0, pass1, pass2 := tr.Blocks[1], tr.Blocks[2], tr.Blocks[3]
	c.Assert(pass0.StartStage, gc.Equals, 2)
	c.Assert(pass0.EndStage, gc.Equals, 5)
	c.Assert(pass1.StartStage, gc.Equals, pass0.StartStage+region.II)
	c.Assert(pass1.EndStage, gc.Equals, pass0.EndStage+region.II)
	c.Assert(pass2.StartStage, gc.Equals, pass0.StartStage+2*region.II)
	c.Assert(pass2.EndStage, gc.Equals, pass0.EndStage+2*region.II)

	// loop end_stage = 2 (preheader) + 3 (overlap length) + 2*2 (ii*(trip-1))
	// + 3 (first block length) - 1 (last block overlap) = 11.
	exit := tr.Blocks[4]
	c.Assert(exit.StartStage, gc.Equals, 11)
	c.Assert(exit.EndStage, gc.Equals, 12)
}

func (s *ResolverSuite) TestMismatchedEventKindIsProtocolViolation(c *gc.C) {
	dut := cdfg.NewFunction("dut", 0)
	dut.AddBlock(&cdfg.BasicBlock{
		Index: 0, Name: "entry", Start: 0, End: 1, Length: 1, Terminator: "ret",
		Events: []*cdfg.Instruction{{Opcode: cdfg.OpFifoWrite, RelStart: 0, RelEnd: 1}},
	})
	fns := cdfg.NewCatalog()
	fns.Register(dut)

	toks := []trace.Token{
		{Kind: trace.KindTraceBB, Function: "dut", BlockIndex: 0},
		{Kind: trace.KindFifoRead, Addr: 0x10},
	}
	r := resolve.NewResolver(fns, trace.NewCatalog())
	_, err := r.Resolve(context.Background(), toks, nil)
	c.Assert(err, gc.ErrorMatches, ".*protocol violation.*")
}

func (s *ResolverSuite) TestIncompleteTraceLeavesAFrameOpen(c *gc.C) {
	dut := cdfg.NewFunction("dut", 0)
	dut.AddBlock(&cdfg.BasicBlock{Index: 0, Name: "entry", Start: 0, End: 1, Length: 1, Terminator: "br"})
	fns := cdfg.NewCatalog()
	fns.Register(dut)

	toks := []trace.Token{{Kind: trace.KindTraceBB, Function: "dut", BlockIndex: 0}}
	r := resolve.NewResolver(fns, trace.NewCatalog())
	_, err := r.Resolve(context.Background(), toks, nil)
	c.Assert(err, gc.Equals, resolve.ErrIncompleteTrace)
}

func (s *ResolverSuite) TestEmptyTraceIsKernelDidNotRun(c *gc.C) {
	r := resolve.NewResolver(cdfg.NewCatalog(), trace.NewCatalog())
	_, err := r.Resolve(context.Background(), nil, nil)
	c.Assert(err, gc.Equals, resolve.ErrKernelDidNotRun)
}

func (s *ResolverSuite) TestProgressCallbackReachesCompletion(c *gc.C) {
	dut := cdfg.NewFunction("dut", 0)
	dut.AddBlock(&cdfg.BasicBlock{Index: 0, Name: "entry", Start: 0, End: 1, Length: 1, Terminator: "ret"})
	fns := cdfg.NewCatalog()
	fns.Register(dut)

	toks := []trace.Token{{Kind: trace.KindTraceBB, Function: "dut", BlockIndex: 0}}
	r := resolve.NewResolver(fns, trace.NewCatalog())
	r.BatchSize = 1

	var last float64
	_, err := r.Resolve(context.Background(), toks, func(frac float64) { last = frac })
	c.Assert(err, gc.IsNil)
	c.Assert(last, gc.Equals, 1.0)
}
