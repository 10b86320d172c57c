// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package tracing

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/llmtrace/llmtrace/apischema/openai"
	"github.com/llmtrace/llmtrace/streaming"
	tracing "github.com/llmtrace/llmtrace/tracing/api"
)

// Ensure chatCompletionTracer implements ChatCompletionTracer.
var _ tracing.ChatCompletionTracer = (*chatCompletionTracer)(nil)

func newChatCompletionTracer(tracer trace.Tracer, propagator propagation.TextMapPropagator, recorder tracing.ChatCompletionRecorder, clock clockz.Clock, logger *slog.Logger) tracing.ChatCompletionTracer {
	// Check if the tracer is a no-op by checking its type.
	if _, ok := tracer.(noop.Tracer); ok {
		return tracing.NoopChatCompletionTracer{}
	}
	if clock == nil {
		clock = clockz.RealClock
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &chatCompletionTracer{
		tracer:     tracer,
		propagator: propagator,
		recorder:   recorder,
		clock:      clock,
		logger:     logger,
	}
}

type chatCompletionTracer struct {
	tracer     trace.Tracer
	recorder   tracing.ChatCompletionRecorder
	propagator propagation.TextMapPropagator
	clock      clockz.Clock
	logger     *slog.Logger
}

// StartSpanAndInjectHeaders implements ChatCompletionTracer.StartSpanAndInjectHeaders.
func (t *chatCompletionTracer) StartSpanAndInjectHeaders(ctx context.Context, header http.Header, req *openai.ChatCompletionRequest, body []byte) (context.Context, tracing.ChatCompletionSpan) {
	t0 := t.clock.Now()
	timing := streaming.NewRecorder()
	timing.Start(t0)

	// Recorders that can only name the span once the first chunk reveals
	// response metadata get a deferred open: the span starts on the first
	// chunk or at finalize, back-dated to t0.
	if namer, ok := t.recorder.(tracing.DeferredNamer); ok {
		_, opts := t.recorder.StartParams(req, body)
		if header != nil {
			t.propagator.Inject(ctx, propagation.HeaderCarrier(header))
		}
		return ctx, &chatCompletionSpan{
			recorder:  t.recorder,
			assembler: t.recorder.NewAssembler(),
			timing:    timing,
			logger:    t.logger,
			streamID:  uuid.NewString(),
			deferred: &deferredStart{
				tracer: t.tracer,
				parent: ctx,
				namer:  namer,
				req:    req,
				opts:   opts,
				t0:     t0,
				body:   body,
			},
		}
	}

	// Start the span with options appropriate for the semantic convention.
	spanName, opts := t.recorder.StartParams(req, body)
	newCtx, span := t.tracer.Start(ctx, spanName, opts...)

	// Always inject trace context into the outgoing headers if provided.
	// This ensures trace propagation works even for unsampled spans.
	if header != nil {
		t.propagator.Inject(newCtx, propagation.HeaderCarrier(header))
	}

	// Only record request attributes if span is recording (sampled).
	// This avoids expensive body processing for unsampled spans.
	if !span.IsRecording() {
		return newCtx, nil
	}
	t.recorder.RecordRequest(span, req, body)

	s := &chatCompletionSpan{
		span:      span,
		recorder:  t.recorder,
		assembler: t.recorder.NewAssembler(),
		timing:    timing,
		logger:    t.logger,
		streamID:  uuid.NewString(),
	}
	span.SetAttributes(attribute.String(attrStreamID, s.streamID))
	return newCtx, s
}
