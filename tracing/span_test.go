// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package tracing

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/llmtrace/llmtrace/apischema/openai"
	"github.com/llmtrace/llmtrace/streaming"
	tracingapi "github.com/llmtrace/llmtrace/tracing/api"
)

// testRecorder counts recorder callbacks so tests can assert they run
// exactly once no matter how many goroutines race to finalize.
type testRecorder struct {
	completions       atomic.Int32
	responses         atomic.Int32
	requestRecords    atomic.Int32
	errs              atomic.Int32
	panicOnCompletion bool

	mu           sync.Mutex
	lastAssembled tracingapi.Assembled
	lastTiming    streaming.Summary
	lastErr       error
}

func (r *testRecorder) StartParams(*openai.ChatCompletionRequest, []byte) (string, []trace.SpanStartOption) {
	return "ChatCompletion", nil
}

func (r *testRecorder) RecordRequest(span trace.Span, req *openai.ChatCompletionRequest, _ []byte) {
	r.requestRecords.Add(1)
	span.SetAttributes(attribute.String("model", req.Model))
}

func (r *testRecorder) NewAssembler() tracingapi.ChunkAssembler {
	return &countAssembler{}
}

func (r *testRecorder) RecordCompletion(span trace.Span, assembled tracingapi.Assembled, timing streaming.Summary) {
	r.completions.Add(1)
	if r.panicOnCompletion {
		panic("recorder exploded")
	}
	r.mu.Lock()
	r.lastAssembled = assembled
	r.lastTiming = timing
	r.mu.Unlock()
	span.SetAttributes(attribute.Int("chunks", timing.ChunkCount))
}

func (r *testRecorder) RecordResponse(trace.Span, *openai.ChatCompletionResponse) {
	r.responses.Add(1)
}

func (r *testRecorder) RecordResponseOnError(_ trace.Span, err error) {
	r.errs.Add(1)
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}

// countAssembler counts chunks and concatenates their first delta content.
type countAssembler struct {
	chunks  int
	content string
}

func (a *countAssembler) OnChunk(chunk *openai.ChatCompletionResponseChunk) {
	a.chunks++
	for i := range chunk.Choices {
		if d := chunk.Choices[i].Delta; d != nil && d.Content != nil {
			a.content += *d.Content
		}
	}
}

func (a *countAssembler) Finalize() tracingapi.Assembled {
	return tracingapi.Assembled{Content: a.content}
}

// deferredTestRecorder names the span after the model echoed by the first
// chunk.
type deferredTestRecorder struct {
	testRecorder
}

func (r *deferredTestRecorder) SpanNameFromChunk(req *openai.ChatCompletionRequest, chunk *openai.ChatCompletionResponseChunk) string {
	if chunk != nil && chunk.Model != "" {
		return "ChatCompletion " + chunk.Model
	}
	return "ChatCompletion " + req.Model
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestSpan builds a sampled span plus the exporter observing it.
func newTestSpan(t *testing.T, recorder tracingapi.ChatCompletionRecorder, clock clockz.Clock) (tracingapi.ChatCompletionSpan, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	tracer := newChatCompletionTracer(tp.Tracer("test"), nil, recorder, clock, testLogger())
	_, span := tracer.StartSpanAndInjectHeaders(t.Context(), nil,
		&openai.ChatCompletionRequest{Model: "gpt-4o-mini", Stream: true}, []byte(`{}`))
	require.NotNil(t, span)
	return span, exporter
}

func contentChunk(text string) *openai.ChatCompletionResponseChunk {
	return &openai.ChatCompletionResponseChunk{
		Choices: []openai.ChatCompletionResponseChunkChoice{
			{Delta: &openai.ChatCompletionResponseChunkChoiceDelta{Content: &text}},
		},
	}
}

func TestSpan_FinalizeOnce_Concurrent(t *testing.T) {
	for range 1000 {
		recorder := &testRecorder{}
		span, exporter := newTestSpan(t, recorder, nil)
		span.OnChunk(contentChunk("hi"), time.Now())

		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := range 4 {
			wg.Add(1)
			go func(failed bool) {
				defer wg.Done()
				<-start
				if failed {
					span.Finalize(streaming.Failed(errors.New("late cancel")))
				} else {
					span.Finalize(streaming.Exhausted())
				}
			}(i%2 == 0)
		}
		close(start)
		wg.Wait()

		// Exactly one of the racing finalizes took effect.
		require.Equal(t, int32(1), recorder.completions.Load()+recorder.errs.Load())
		require.Len(t, exporter.GetSpans(), 1)
	}
}

func TestSpan_ConcurrentChunksAndFinalize(t *testing.T) {
	// A cancellation can finalize the span from another goroutine while the
	// stream owner is still delivering chunks. The two must exclude each
	// other: once timing has been read for assembly, no late chunk mutates it.
	for range 100 {
		recorder := &testRecorder{}
		span, exporter := newTestSpan(t, recorder, nil)

		var wg sync.WaitGroup
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			for range 50 {
				span.OnChunk(contentChunk("x"), time.Now())
			}
		}()
		go func() {
			defer wg.Done()
			<-start
			span.Finalize(streaming.Failed(errors.New("cancelled mid-stream")))
		}()
		close(start)
		wg.Wait()

		require.Equal(t, int32(1), recorder.errs.Load())
		require.Equal(t, int32(0), recorder.completions.Load())
		require.Len(t, exporter.GetSpans(), 1)
	}
}

func TestSpan_OnChunkAfterFinalizeIgnored(t *testing.T) {
	recorder := &testRecorder{}
	span, exporter := newTestSpan(t, recorder, nil)

	span.OnChunk(contentChunk("a"), time.Now())
	span.Finalize(streaming.Exhausted())
	span.OnChunk(contentChunk("b"), time.Now())
	span.Finalize(streaming.Exhausted())

	require.Equal(t, int32(1), recorder.completions.Load())
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Equal(t, "a", recorder.lastAssembled.Content)
	require.Equal(t, 1, recorder.lastTiming.ChunkCount)
	require.Len(t, exporter.GetSpans(), 1)
}

func TestSpan_FailedOutcome(t *testing.T) {
	recorder := &testRecorder{}
	span, exporter := newTestSpan(t, recorder, nil)

	wantErr := errors.New("stream broke")
	span.OnChunk(contentChunk("partial"), time.Now())
	span.Finalize(streaming.Failed(wantErr))

	require.Equal(t, int32(0), recorder.completions.Load())
	require.Equal(t, int32(1), recorder.errs.Load())
	require.Same(t, wantErr, recorder.lastErr)
	require.Len(t, exporter.GetSpans(), 1)
}

func TestSpan_RecorderPanicSwallowed(t *testing.T) {
	recorder := &testRecorder{panicOnCompletion: true}
	span, exporter := newTestSpan(t, recorder, nil)

	span.OnChunk(contentChunk("x"), time.Now())
	require.NotPanics(t, func() { span.Finalize(streaming.Exhausted()) })

	// The finalize still counts as done: a second attempt is a no-op.
	span.Finalize(streaming.Exhausted())
	require.Equal(t, int32(1), recorder.completions.Load())
	// The span never reached End, so nothing was exported; that is the cost
	// of a recorder that panics, not of the instrumented call.
	require.Empty(t, exporter.GetSpans())
}

func TestSpan_DeferredOpenOnFirstChunk(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := clockz.NewFakeClockAt(t0)
	recorder := &deferredTestRecorder{}
	span, exporter := newTestSpan(t, recorder, clock)

	// Nothing is exported, or even started, until the first chunk arrives.
	require.Empty(t, exporter.GetSpans())
	require.Equal(t, int32(0), recorder.requestRecords.Load())

	chunk := contentChunk("hello")
	chunk.Model = "gpt-4o-mini-2024-07-18"
	span.OnChunk(chunk, t0.Add(2*time.Second))
	require.Equal(t, int32(1), recorder.requestRecords.Load())

	span.Finalize(streaming.Exhausted())
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, "ChatCompletion gpt-4o-mini-2024-07-18", spans[0].Name)
	// The span is back-dated to the instant the call began.
	require.Equal(t, t0, spans[0].StartTime)
}

func TestSpan_DeferredOpenChunklessStream(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := clockz.NewFakeClockAt(t0)
	recorder := &deferredTestRecorder{}
	span, exporter := newTestSpan(t, recorder, clock)

	wantErr := errors.New("401 unauthorized")
	span.Finalize(streaming.Failed(wantErr))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	// Chunkless: the namer falls back to the request model.
	require.Equal(t, "ChatCompletion gpt-4o-mini", spans[0].Name)
	require.Equal(t, t0, spans[0].StartTime)
	require.Equal(t, int32(1), recorder.errs.Load())
}
