package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	gc "gopkg.in/check.v1"

	"github.com/hlscosim/cosim/metrics"
)

func Test(t *testing.T) { gc.TestingT(t) }

var _ = gc.Suite(new(MetricsSuite))

type MetricsSuite struct{}

func (s *MetricsSuite) TestNewRegistersAgainstGivenRegisterer(c *gc.C) {
	reg := prometheus.NewRegistry()
	col := metrics.New(reg)
	col.StallEventsTotal.Inc()
	col.DeadlocksTotal.Inc()
	col.FifoObservedDepth.WithLabelValues("run-1", "s0").Set(4)

	families, err := reg.Gather()
	c.Assert(err, gc.IsNil)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	c.Assert(names["hlscosim_stall_events_total"], gc.Equals, true)
	c.Assert(names["hlscosim_deadlocks_total"], gc.Equals, true)
	c.Assert(names["hlscosim_fifo_observed_depth"], gc.Equals, true)
}
