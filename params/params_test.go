package params_test

import (
	"testing"

	gc "gopkg.in/check.v1"

	"github.com/hlscosim/cosim/params"
)

func Test(t *testing.T) { gc.TestingT(t) }

var _ = gc.Suite(new(ConfigSuite))

type ConfigSuite struct{}

func (s *ConfigSuite) TestValidateCollectsEveryProblem(c *gc.C) {
	cfg := &params.Config{
		FifoDepths:              map[uint64]int{0x10: 0, 0x20: 4},
		AxiDelays:               map[uint64]int{0x30: -1},
		ApCtrlChainTopPortCount: -2,
	}
	err := cfg.Validate()
	c.Assert(err, gc.ErrorMatches, `(?s).*fifo depth.*axi delay.*ap_ctrl_chain_top_port_count.*`)
}

func (s *ConfigSuite) TestValidateAcceptsZeroValue(c *gc.C) {
	c.Assert((&params.Config{}).Validate(), gc.IsNil)
}

func (s *ConfigSuite) TestFifoDepthOverrideFallsBackToDeclared(c *gc.C) {
	cfg := &params.Config{FifoDepths: map[uint64]int{0x10: 8}}
	c.Assert(cfg.FifoDepth(0x10, 2), gc.Equals, 8)
	c.Assert(cfg.FifoDepth(0x20, 2), gc.Equals, 2)
}

func (s *ConfigSuite) TestAxiLatencyOverrideFallsBackToDeclared(c *gc.C) {
	cfg := &params.Config{AxiDelays: map[uint64]int{0x30: 40}}
	c.Assert(cfg.AxiLatency(0x30, 20), gc.Equals, 40)
	c.Assert(cfg.AxiLatency(0x40, 20), gc.Equals, 20)
}
