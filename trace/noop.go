// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package trace

import (
	"context"

	"github.com/ava-labs/avalanchego/trace"

	oteltrace "go.opentelemetry.io/otel/trace"
)

var _ trace.Tracer = (*noOpTracer)(nil)

// noOpTracer starts spans that are never recorded or exported.
type noOpTracer struct {
	t oteltrace.Tracer
}

// Noop returns a tracer that does nothing. It is used whenever tracing is
// disabled and in tests.
func Noop() trace.Tracer {
	return &noOpTracer{
		t: oteltrace.NewNoopTracerProvider().Tracer(defaultAppName),
	}
}

func (n noOpTracer) Start(
	ctx context.Context,
	spanName string,
	opts ...oteltrace.SpanStartOption,
) (context.Context, oteltrace.Span) {
	return n.t.Start(ctx, spanName, opts...)
}

func (noOpTracer) Close() error {
	return nil
}
