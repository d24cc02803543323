package tracing_test

import (
	"context"
	"testing"

	gc "gopkg.in/check.v1"

	"github.com/hlscosim/cosim/tracing"
)

func Test(t *testing.T) { gc.TestingT(t) }

var _ = gc.Suite(new(TracingSuite))

type TracingSuite struct{}

// TestSpansAreAdditiveWithNoConfiguredTracer exercises instrumentation with
// whatever opentracing.GlobalTracer returns by default (a no-op tracer) —
// the same guarantee sim/resolve rely on when no Jaeger tracer is wired up.
func (s *TracingSuite) TestSpansAreAdditiveWithNoConfiguredTracer(c *gc.C) {
	span, ctx := tracing.StartResolveSpan(context.Background(), "run-1", 0)
	c.Assert(span, gc.NotNil)
	c.Assert(ctx, gc.NotNil)
	span.Finish()

	span2, ctx2 := tracing.StartSimBatchSpan(ctx, "run-1", 3)
	c.Assert(span2, gc.NotNil)
	c.Assert(ctx2, gc.NotNil)
	span2.Finish()
}
