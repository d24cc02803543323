// Package tracing opens OpenTracing/Jaeger spans around a simulation's
// resolve and simulate batches, following Chapter11/tracing/tracer.go's
// NewTracer/SetGlobalTracer setup. Instrumentation here is purely additive:
// sim and resolve accept a context.Context and behave identically whether
// the configured tracer is a real Jaeger client or opentracing.NoopTracer.
package tracing

import (
	"context"
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

// NewTracer builds a Jaeger tracer for serviceName from environment
// configuration (JAEGER_* envvars, via jaegercfg.FromEnv), sampling every
// span so a single co-simulation run's trace is never partially dropped.
// The returned io.Closer must be closed once the caller's run completes to
// flush buffered spans.
func NewTracer(serviceName string) (opentracing.Tracer, io.Closer, error) {
	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	cfg.ServiceName = serviceName
	cfg.Sampler = &jaegercfg.SamplerConfig{
		Type:  jaeger.SamplerTypeConst,
		Param: 1,
	}
	return cfg.NewTracer()
}

// StartResolveSpan opens a span for one resolver token batch, tagged with
// the run ID and the batch's starting token index.
func StartResolveSpan(ctx context.Context, runID string, batchStart int) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "resolve.batch")
	span.SetTag("run_id", runID)
	span.SetTag("batch_start", batchStart)
	return span, ctx
}

// StartSimBatchSpan opens a span for one simulation wall-clock slice,
// tagged with the run ID and the slice's index within the run.
func StartSimBatchSpan(ctx context.Context, runID string, sliceIndex int) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "sim.batch")
	span.SetTag("run_id", runID)
	span.SetTag("slice_index", sliceIndex)
	return span, ctx
}
