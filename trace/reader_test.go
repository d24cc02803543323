package trace_test

import (
	"strings"
	"testing"

	gc "gopkg.in/check.v1"

	"github.com/hlscosim/cosim/trace"
)

func Test(t *testing.T) { gc.TestingT(t) }

var _ = gc.Suite(new(ReaderSuite))

type ReaderSuite struct{}

func (s *ReaderSuite) TestReadAllParsesEveryKind(c *gc.C) {
	const in = `spec_channel	0x1000	strm0	4
spec_interface	0x2000	m_axi_gmem	20
ap_ctrl_chain
trace_bb	dut	0
loop	L0	10
loop_bb	dut	1
end_loop_blocks
fifo_write	0x1000
end_loop
fifo_read	0x1000
axi_readreq	0x2000	0	64
axi_read	0x2000	0	64
axi_writereq	0x2000	0	64
axi_write	0x2000	0	64
axi_writeresp	0x2000
`
	toks, err := trace.ReadAll(strings.NewReader(in))
	c.Assert(err, gc.IsNil)
	c.Assert(toks, gc.HasLen, 15)

	c.Assert(toks[0], gc.DeepEquals, trace.Token{Kind: trace.KindSpecChannel, Addr: 0x1000, Name: "strm0", Depth: 4})
	c.Assert(toks[1], gc.DeepEquals, trace.Token{Kind: trace.KindSpecInterface, Addr: 0x2000, Name: "m_axi_gmem", Latency: 20})
	c.Assert(toks[2].Kind, gc.Equals, trace.KindApCtrlChain)
	c.Assert(toks[3], gc.DeepEquals, trace.Token{Kind: trace.KindTraceBB, Function: "dut", BlockIndex: 0})
	c.Assert(toks[4], gc.DeepEquals, trace.Token{Kind: trace.KindLoop, LoopName: "L0", TripCount: 10})
	c.Assert(toks[5], gc.DeepEquals, trace.Token{Kind: trace.KindLoopBB, Function: "dut", BlockIndex: 1})
	c.Assert(toks[6].Kind, gc.Equals, trace.KindEndLoopBlocks)
	c.Assert(toks[7], gc.DeepEquals, trace.Token{Kind: trace.KindFifoWrite, Addr: 0x1000})
	c.Assert(toks[8].Kind, gc.Equals, trace.KindEndLoop)
	c.Assert(toks[10], gc.DeepEquals, trace.Token{Kind: trace.KindAxiReadReq, Addr: 0x2000, Offset: 0, Length: 64})
}

func (s *ReaderSuite) TestReadAllRejectsMalformedLine(c *gc.C) {
	_, err := trace.ReadAll(strings.NewReader("fifo_read\tnotahexaddr\n"))
	c.Assert(err, gc.ErrorMatches, `.*malformed trace token.*`)
}

func (s *ReaderSuite) TestReadAllSkipsBlankLines(c *gc.C) {
	toks, err := trace.ReadAll(strings.NewReader("\n\nfifo_read\t0x10\n\n"))
	c.Assert(err, gc.IsNil)
	c.Assert(toks, gc.HasLen, 1)
}

func (s *ReaderSuite) TestCatalogInterning(c *gc.C) {
	cat := trace.NewCatalog()
	s1 := cat.DeclareStream(0x10, "a", 4)
	s2 := cat.DeclareStream(0x10, "a-again", 8)
	c.Assert(s2, gc.Equals, s1) // same address, same identity

	i1 := cat.DeclareInterface(0x2000, "m0", 10)
	i0 := cat.DeclareInterface(0x1000, "m1", 5)
	c.Assert(cat.Interfaces(), gc.DeepEquals, []*trace.Interface{i0, i1})

	got, err := cat.InterfaceForAddr(0x2500)
	c.Assert(err, gc.IsNil)
	c.Assert(got, gc.Equals, i1)

	_, err = cat.InterfaceForAddr(0x0500)
	c.Assert(err, gc.ErrorMatches, ".*axi address not covered.*")
}
