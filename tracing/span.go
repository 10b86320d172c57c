// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package tracing

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/llmtrace/llmtrace/apischema/openai"
	"github.com/llmtrace/llmtrace/streaming"
	tracing "github.com/llmtrace/llmtrace/tracing/api"
)

// Span lifecycle states. The stream owner drives OnChunk, while Finalize can
// also arrive from a cancellation or timeout path on another goroutine; the
// state word picks the finalizer and mu excludes an OnChunk still in flight.
const (
	stateOpen int32 = iota
	stateFinalizing
	stateFinalized
)

// attrStreamID tags every streamed span with a unique id so that the chunks
// of concurrent streams can be told apart in backends that flatten spans.
const attrStreamID = "llmtrace.stream.id"

// Ensure chatCompletionSpan implements ChatCompletionSpan and the core
// streaming sink contract.
var (
	_ tracing.ChatCompletionSpan                          = (*chatCompletionSpan)(nil)
	_ streaming.Sink[*openai.ChatCompletionResponseChunk] = (*chatCompletionSpan)(nil)
)

type chatCompletionSpan struct {
	state atomic.Int32
	// mu guards timing, assembler and the deferred open. Without it an
	// OnChunk on the stream goroutine could race the winning Finalize's
	// timing.Finish and assembly.
	mu        sync.Mutex
	span      trace.Span
	recorder  tracing.ChatCompletionRecorder
	assembler tracing.ChunkAssembler
	timing    *streaming.Recorder
	logger    *slog.Logger

	// deferred is non-nil until a deferred-open span has been started.
	deferred *deferredStart

	responseRecorded bool
	streamID         string
}

// deferredStart holds everything needed to open the span later, once the
// first chunk (or termination) reveals the final span name.
type deferredStart struct {
	tracer trace.Tracer
	parent context.Context
	namer  tracing.DeferredNamer
	req    *openai.ChatCompletionRequest
	opts   []trace.SpanStartOption
	t0     time.Time
	body   []byte
}

// OnChunk implements [tracing.ChatCompletionSpan.OnChunk]. The state check
// happens under mu so a chunk that lost the race to a concurrent Finalize
// never mutates state the finalizer already read.
func (s *chatCompletionSpan) OnChunk(chunk *openai.ChatCompletionResponseChunk, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Load() != stateOpen {
		return
	}
	s.ensureOpened(chunk)
	s.timing.RecordChunk(at)
	s.assembler.OnChunk(chunk)
}

// RecordResponse implements [tracing.ChatCompletionSpan.RecordResponse].
func (s *chatCompletionSpan) RecordResponse(resp *openai.ChatCompletionResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Load() != stateOpen {
		return
	}
	s.ensureOpened(nil)
	s.recorder.RecordResponse(s.span, resp)
	s.responseRecorded = true
}

// Finalize implements [tracing.ChatCompletionSpan.Finalize]. The state
// compare-and-set picks the winner among concurrent triggers; mu then waits
// out any OnChunk still in flight before assembly reads the timing state.
func (s *chatCompletionSpan) Finalize(o streaming.Outcome) {
	if !s.state.CompareAndSwap(stateOpen, stateFinalizing) {
		return
	}
	defer s.state.Store(stateFinalized)
	// A failure inside attribute assembly or span emission must never reach
	// the caller of the instrumented stream.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("span finalization failed", slog.Any("panic", r))
		}
	}()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensureOpened(nil)
	s.timing.Finish()

	switch {
	case o.Failed():
		s.recorder.RecordResponseOnError(s.span, o.Err())
	case s.responseRecorded:
		// Non-streaming response already recorded; nothing to assemble.
	default:
		s.recorder.RecordCompletion(s.span, s.assembler.Finalize(), s.timing.Summary())
	}
	s.span.End()
}

// ensureOpened starts a deferred span, back-dated to the call time. chunk is
// the first streamed chunk, or nil when the stream terminated (or a
// non-streaming response arrived) before producing one.
func (s *chatCompletionSpan) ensureOpened(chunk *openai.ChatCompletionResponseChunk) {
	d := s.deferred
	if d == nil {
		return
	}
	s.deferred = nil

	name := d.namer.SpanNameFromChunk(d.req, chunk)
	opts := append([]trace.SpanStartOption{trace.WithTimestamp(d.t0)}, d.opts...)
	_, span := d.tracer.Start(d.parent, name, opts...)
	s.span = span
	if span.IsRecording() {
		s.recorder.RecordRequest(span, d.req, d.body)
		span.SetAttributes(attribute.String(attrStreamID, s.streamID))
	}
}
