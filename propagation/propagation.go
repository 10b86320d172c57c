// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package propagation carries the tracing context active at a call site
// into worker goroutines that execute the call's sub-work later. Goroutines
// share no ambient context, so the hand-off is explicit: snapshot at
// submission, attach inside the worker.
package propagation

import (
	"context"

	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/trace"
)

// Snapshot is an immutable copy of the tracing state active when it was
// captured: the span context and the baggage. It is a value, not a
// reference; mutations to the source context after capture are invisible.
type Snapshot struct {
	spanContext trace.SpanContext
	baggage     baggage.Baggage
}

// Capture returns a snapshot of ctx's active span context and baggage.
func Capture(ctx context.Context) Snapshot {
	return Snapshot{
		spanContext: trace.SpanContextFromContext(ctx),
		baggage:     baggage.FromContext(ctx),
	}
}

// Valid reports whether the snapshot carries a usable span context.
func (s Snapshot) Valid() bool { return s.spanContext.IsValid() }

// SpanContext returns the captured span context.
func (s Snapshot) SpanContext() trace.SpanContext { return s.spanContext }

// Context attaches the snapshot to base. Spans started from the returned
// context are parented to the snapshotted span, regardless of which
// goroutine starts them or how much time has passed since capture.
func (s Snapshot) Context(base context.Context) context.Context {
	ctx := base
	if s.spanContext.IsValid() {
		ctx = trace.ContextWithSpanContext(ctx, s.spanContext)
	}
	if s.baggage.Len() > 0 {
		ctx = baggage.ContextWithBaggage(ctx, s.baggage)
	}
	return ctx
}

// Wrap returns a task that runs fn under the snapshot. The attachment is
// scoped to the call: it begins when the returned task is invoked and ends
// when fn returns or panics, leaving the worker's own context untouched.
// An invalid snapshot still runs fn, just without a parent.
func (s Snapshot) Wrap(fn func(context.Context)) func(context.Context) {
	return func(ctx context.Context) {
		fn(s.Context(ctx))
	}
}
