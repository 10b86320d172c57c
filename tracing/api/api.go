// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package api provides the boundary contracts between the streaming
// instrumentation core and its collaborators, notably to reduce chance of
// cyclic imports. No implementations besides no-op are here.
package api

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/llmtrace/llmtrace/apischema/openai"
	"github.com/llmtrace/llmtrace/streaming"
)

var _ Tracing = NoopTracing{}

// Tracing gives access to the tracer types for instrumented call shapes.
type Tracing interface {
	// ChatCompletionTracer creates spans for chat completion calls.
	ChatCompletionTracer() ChatCompletionTracer
	// Shutdown shuts down the tracer, flushing any buffered spans.
	Shutdown(context.Context) error
}

// TracingConfig is used when Tracing is not NoopTracing. It is the single
// explicit provider value for the instrumentation graph; there are no hidden
// process-wide singletons.
type TracingConfig struct {
	Tracer                 trace.Tracer
	Propagator             propagation.TextMapPropagator
	ChatCompletionRecorder ChatCompletionRecorder
}

// NoopTracing is a Tracing that doesn't do anything.
type NoopTracing struct{}

// ChatCompletionTracer implements Tracing.ChatCompletionTracer.
func (NoopTracing) ChatCompletionTracer() ChatCompletionTracer {
	return NoopChatCompletionTracer{}
}

// Shutdown implements Tracing.Shutdown.
func (NoopTracing) Shutdown(context.Context) error { return nil }

// ChatCompletionTracer creates spans for chat completion calls.
type ChatCompletionTracer interface {
	// StartSpanAndInjectHeaders starts a span for one call and injects its
	// trace context into the outgoing request headers.
	//
	// Parameters:
	//   - ctx: might include a parent span context.
	//   - header: outgoing HTTP headers of the instrumented call; trace
	//     context is written here unless nil.
	//   - req: the chat completion request. Used to detect streaming and
	//     record request attributes.
	//   - body: the complete raw request body.
	//
	// The returned span is nil unless the span is sampled; callers skip
	// wrapping the response stream in that case.
	StartSpanAndInjectHeaders(ctx context.Context, header http.Header, req *openai.ChatCompletionRequest, body []byte) (context.Context, ChatCompletionSpan)
}

// ChatCompletionSpan owns one span's open to finalize transition. OnChunk
// and RecordResponse may be called only before Finalize; Finalize is safe to
// attempt from multiple goroutines and runs exactly once.
//
// ChatCompletionSpan satisfies streaming.Sink for chat completion chunks.
type ChatCompletionSpan interface {
	// OnChunk records one streamed chunk and its arrival time.
	OnChunk(chunk *openai.ChatCompletionResponseChunk, at time.Time)

	// RecordResponse records the response attributes for a non-streaming
	// call, before Finalize.
	RecordResponse(resp *openai.ChatCompletionResponse)

	// Finalize assembles the accumulated state onto the span and ends it.
	// The first caller wins; later attempts are no-ops.
	Finalize(o streaming.Outcome)
}

// ChatCompletionRecorder records attributes to a span according to a
// semantic convention. Implementations are vendor-specific and stateless;
// per-stream accumulation lives in the ChunkAssembler they create.
type ChatCompletionRecorder interface {
	// StartParams returns the name and options to start the span with.
	//
	// Note: Do not do any expensive data conversions as the span might not
	// be sampled.
	StartParams(req *openai.ChatCompletionRequest, body []byte) (spanName string, opts []trace.SpanStartOption)

	// RecordRequest records request attributes to the span.
	RecordRequest(span trace.Span, req *openai.ChatCompletionRequest, body []byte)

	// NewAssembler returns the per-stream accumulator for one call.
	NewAssembler() ChunkAssembler

	// RecordCompletion records the assembled streaming state and timing to
	// the span at finalize time.
	RecordCompletion(span trace.Span, assembled Assembled, timing streaming.Summary)

	// RecordResponse records the response attributes to the span for a
	// non-streaming response.
	RecordResponse(span trace.Span, resp *openai.ChatCompletionResponse)

	// RecordResponseOnError ends recording the span with an error status.
	RecordResponseOnError(span trace.Span, err error)
}

// DeferredNamer is implemented by recorders whose span name is only
// meaningful once the first chunk reveals response metadata, such as the
// model name echoed back by the service. When a recorder implements it the
// span is opened on the first chunk, or at finalize for a chunkless stream,
// back-dated to the original call time.
type DeferredNamer interface {
	// SpanNameFromChunk returns the span name derived from the first chunk.
	// chunk is nil when the stream terminated before producing one.
	SpanNameFromChunk(req *openai.ChatCompletionRequest, chunk *openai.ChatCompletionResponseChunk) string
}

// ChunkAssembler accumulates vendor-specific content and usage counters
// from streamed chunks. One assembler serves exactly one stream.
type ChunkAssembler interface {
	// OnChunk folds one chunk into the accumulated state.
	OnChunk(chunk *openai.ChatCompletionResponseChunk)
	// Finalize returns the accumulated state. It is called at most once.
	Finalize() Assembled
}

// Assembled is the accumulated output of a completed stream.
type Assembled struct {
	// Model is the model name echoed by the service, or "" if never seen.
	Model string
	// Role is the assistant role announced by the first delta.
	Role string
	// Content is the concatenated streamed text.
	Content string
	// FinishReason is the terminal finish reason, if any chunk carried one.
	FinishReason string
	// Usage holds the token counters reported by the stream.
	Usage Usage
}

// Usage holds token consumption counters for one call.
type Usage struct {
	InputTokens       uint32
	CachedInputTokens uint32
	OutputTokens      uint32
	TotalTokens       uint32
}

// CostEstimator computes the cost of a completed call from its token
// counters. It is consulted by recorders at finalize time.
type CostEstimator interface {
	// EstimateUSD returns the estimated cost in US dollars and whether a
	// price was known for the given system and model.
	EstimateUSD(system, model string, usage Usage) (float64, bool)
}

// NoopChatCompletionTracer is a ChatCompletionTracer that doesn't do anything.
type NoopChatCompletionTracer struct{}

// StartSpanAndInjectHeaders implements ChatCompletionTracer.StartSpanAndInjectHeaders.
func (NoopChatCompletionTracer) StartSpanAndInjectHeaders(ctx context.Context, _ http.Header, _ *openai.ChatCompletionRequest, _ []byte) (context.Context, ChatCompletionSpan) {
	return ctx, nil
}
