package result_test

import (
	"context"
	"testing"

	gc "gopkg.in/check.v1"

	"github.com/hlscosim/cosim/cdfg"
	"github.com/hlscosim/cosim/resolve"
	"github.com/hlscosim/cosim/result"
	"github.com/hlscosim/cosim/sim"
	"github.com/hlscosim/cosim/trace"
)

func Test(t *testing.T) { gc.TestingT(t) }

var _ = gc.Suite(new(ReportSuite))

type ReportSuite struct{}

func (s *ReportSuite) TestBuildPreservesCallOrderAndObservedDepths(c *gc.C) {
	helper := cdfg.NewFunction("helper", 0)
	helper.AddBlock(&cdfg.BasicBlock{Index: 0, Name: "entry", Terminator: "ret"})

	tcat := trace.NewCatalog()
	st := tcat.DeclareStream(0x10, "s0", 4)

	callEv := &resolve.Event{Kind: resolve.EventCall, Callee: helper}
	tr := &resolve.Trace{
		Function: cdfg.NewFunction("dut", 0),
		Blocks: []*resolve.Block{
			{StartStage: 0, EndStage: 1, Events: []*resolve.Event{callEv}},
		},
	}
	helperEntry, err := helper.Block(0)
	c.Assert(err, gc.IsNil)
	callEv.Subcall = []*resolve.Block{
		{Static: helperEntry, StartStage: 0, EndStage: 1, Events: []*resolve.Event{
			{Kind: resolve.EventFifoWrite, EndStage: 1, Stream: st},
		}},
	}

	simulation := sim.New(tr, tcat, false, nil)
	c.Assert(simulation.Run(context.Background()), gc.IsNil)

	report := result.Build(simulation, "dut", tcat)
	c.Assert(report.Top.Name, gc.Equals, "dut")
	c.Assert(report.Top.Children, gc.HasLen, 1)
	c.Assert(report.Top.Children[0].Name, gc.Equals, "helper")
	c.Assert(report.ObservedFifoDepths[st.ID], gc.Equals, 1)
}
