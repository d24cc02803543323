// Package params is the simulation parameter surface (spec.md §6.2): the
// knobs a caller adjusts between runs of the same resolved trace — FIFO
// depths, AXI interface delays, and the ap_ctrl_chain top-level port count —
// without touching the trace or the static model. Whether the handshake
// applies at all is passed to sim.New separately.
package params

import (
	"github.com/hashicorp/go-multierror"
	"golang.org/x/xerrors"
)

// Config is one simulation's parameter set. Zero value is a usable
// default: no depth/delay overrides, no ap_ctrl_chain port count override.
type Config struct {
	// FifoDepths overrides a stream's trace-declared depth, keyed by the
	// stream's declared address. A stream with no entry here keeps its
	// spec_channel-declared depth.
	FifoDepths map[uint64]int

	// AxiDelays overrides an interface's trace-declared latency, keyed by
	// the interface's declared address.
	AxiDelays map[uint64]int

	// ApCtrlChainTopPortCount overrides the static model's TopPortCount
	// when positive; zero means "use the static model's count".
	ApCtrlChainTopPortCount int
}

// Validate reports every malformed override collected into one error,
// rather than failing on the first.
func (c *Config) Validate() error {
	var result *multierror.Error
	for addr, depth := range c.FifoDepths {
		if depth <= 0 {
			result = multierror.Append(result, xerrors.Errorf("fifo depth override for %#x must be positive, got %d", addr, depth))
		}
	}
	for addr, delay := range c.AxiDelays {
		if delay < 0 {
			result = multierror.Append(result, xerrors.Errorf("axi delay override for %#x must be non-negative, got %d", addr, delay))
		}
	}
	if c.ApCtrlChainTopPortCount < 0 {
		result = multierror.Append(result, xerrors.Errorf("ap_ctrl_chain_top_port_count must be non-negative, got %d", c.ApCtrlChainTopPortCount))
	}
	return result.ErrorOrNil()
}

// FifoDepth resolves the effective depth for a stream: the override if
// present, else the trace-declared default.
func (c *Config) FifoDepth(addr uint64, declared int) int {
	if d, ok := c.FifoDepths[addr]; ok {
		return d
	}
	return declared
}

// AxiLatency resolves the effective latency for an interface: the
// override if present, else the trace-declared default.
func (c *Config) AxiLatency(addr uint64, declared int) int {
	if d, ok := c.AxiDelays[addr]; ok {
		return d
	}
	return declared
}
