// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package openai instruments the official OpenAI Go SDK. Completions wraps a
// client's chat completion calls so each one produces a span, propagates
// trace context to the service, and reports streaming metrics, without
// changing what the caller observes.
package openai

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/metric"

	openaischema "github.com/llmtrace/llmtrace/apischema/openai"
	"github.com/llmtrace/llmtrace/metrics"
	"github.com/llmtrace/llmtrace/streaming"
	tracingapi "github.com/llmtrace/llmtrace/tracing/api"
)

// Completions instruments chat completion calls made through an OpenAI SDK
// client. All methods are safe for concurrent use.
type Completions struct {
	client     openaisdk.Client
	tracer     tracingapi.ChatCompletionTracer
	meter      metric.Meter
	logger     *slog.Logger
	streamOpts []streaming.Option
}

// Option configures Completions.
type Option func(*Completions)

// WithMeter enables gen_ai metrics recording on the given meter.
func WithMeter(meter metric.Meter) Option {
	return func(c *Completions) { c.meter = meter }
}

// WithLogger overrides the logger for instrumentation failures. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Completions) { c.logger = logger }
}

// WithStreamOptions passes options to the stream proxies created for
// streaming calls, such as streaming.WithClock for tests.
func WithStreamOptions(opts ...streaming.Option) Option {
	return func(c *Completions) { c.streamOpts = opts }
}

// NewCompletions instruments chat completion calls on client.
func NewCompletions(client openaisdk.Client, tracing tracingapi.Tracing, opts ...Option) *Completions {
	c := &Completions{
		client: client,
		tracer: tracing.ChatCompletionTracer(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New performs a non-streaming chat completion call, recording the response
// onto a span before returning it.
func (c *Completions) New(ctx context.Context, params openaisdk.ChatCompletionNewParams, reqOpts ...option.RequestOption) (*openaisdk.ChatCompletion, error) {
	req, body, ok := c.parseParams(params)
	if !ok {
		return c.client.Chat.Completions.New(ctx, params, reqOpts...)
	}

	header := http.Header{}
	ctx, span := c.tracer.StartSpanAndInjectHeaders(ctx, header, req, body)
	reqOpts = appendHeaderOptions(reqOpts, header)

	m := c.newMetrics(req.Model)

	resp, err := c.client.Chat.Completions.New(ctx, params, reqOpts...)
	if err != nil {
		if span != nil {
			span.Finalize(streaming.Failed(err))
		}
		if m != nil {
			m.RecordRequestCompletion(ctx, false)
		}
		return nil, err
	}

	if span != nil {
		span.RecordResponse(c.convertResponse(resp))
		span.Finalize(streaming.Exhausted())
	}
	if m != nil {
		u := resp.Usage
		m.RecordTokenUsage(ctx, uint32(u.PromptTokens), uint32(u.CompletionTokens), uint32(u.TotalTokens)) //nolint:gosec
		m.RecordRequestCompletion(ctx, true)
	}
	return resp, nil
}

// NewStreaming performs a streaming chat completion call. The returned stream
// behaves exactly like the SDK's own: same chunks, same termination, same
// error. Instrumentation observes it from the side.
func (c *Completions) NewStreaming(ctx context.Context, params openaisdk.ChatCompletionNewParams, reqOpts ...option.RequestOption) streaming.Stream[openaisdk.ChatCompletionChunk] {
	req, body, ok := c.parseParams(params)
	if !ok {
		return c.client.Chat.Completions.NewStreaming(ctx, params, reqOpts...)
	}
	req.Stream = true

	header := http.Header{}
	ctx, span := c.tracer.StartSpanAndInjectHeaders(ctx, header, req, body)
	reqOpts = appendHeaderOptions(reqOpts, header)

	stream := c.client.Chat.Completions.NewStreaming(ctx, params, reqOpts...)

	var sinks []streaming.Sink[openaisdk.ChatCompletionChunk]
	if span != nil {
		sinks = append(sinks, spanSink{span: span, logger: c.logger})
	}
	if m := c.newMetrics(req.Model); m != nil {
		sinks = append(sinks, metrics.NewSink(ctx, m, chunkUsage))
	}

	sink := streaming.MultiSink(sinks...)
	if sink == nil {
		return stream
	}
	return streaming.NewProxy[openaisdk.ChatCompletionChunk](stream, sink, c.streamOpts...)
}

// parseParams marshals the SDK params to their wire form and mirrors them
// into the schema the tracer understands. A request that cannot be parsed is
// passed through uninstrumented rather than failed.
func (c *Completions) parseParams(params openaisdk.ChatCompletionNewParams) (*openaischema.ChatCompletionRequest, []byte, bool) {
	body, err := json.Marshal(params)
	if err != nil {
		c.logger.Warn("chat completion not instrumented: unmarshalable params", "error", err)
		return nil, nil, false
	}
	var req openaischema.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.logger.Warn("chat completion not instrumented: unparsable request body", "error", err)
		return nil, nil, false
	}
	return &req, body, true
}

// newMetrics creates the per-call metrics recorder, or nil when no meter is
// configured.
func (c *Completions) newMetrics(model string) metrics.ChatCompletion {
	if c.meter == nil {
		return nil
	}
	m := metrics.NewChatCompletion(c.meter)
	m.StartRequest()
	m.SetSystem(metrics.SystemOpenAI)
	m.SetModel(model)
	return m
}

// convertResponse mirrors an SDK response into the tracer's schema via its
// raw wire form.
func (c *Completions) convertResponse(resp *openaisdk.ChatCompletion) *openaischema.ChatCompletionResponse {
	var out openaischema.ChatCompletionResponse
	if err := json.Unmarshal([]byte(resp.RawJSON()), &out); err != nil {
		c.logger.Warn("chat completion response only partially recorded", "error", err)
		out.Model = resp.Model
	}
	return &out
}

// appendHeaderOptions converts injected propagation headers into SDK request
// options.
func appendHeaderOptions(reqOpts []option.RequestOption, header http.Header) []option.RequestOption {
	for k, vs := range header {
		for _, v := range vs {
			reqOpts = append(reqOpts, option.WithHeaderAdd(k, v))
		}
	}
	return reqOpts
}

// spanSink feeds proxied chunks into a chat completion span.
type spanSink struct {
	span   tracingapi.ChatCompletionSpan
	logger *slog.Logger
}

// OnChunk implements streaming.Sink.OnChunk.
func (s spanSink) OnChunk(chunk openaisdk.ChatCompletionChunk, at time.Time) {
	var converted openaischema.ChatCompletionResponseChunk
	if err := json.Unmarshal([]byte(chunk.RawJSON()), &converted); err != nil {
		s.logger.Warn("chat completion chunk only partially recorded", "error", err)
		converted.Model = chunk.Model
	}
	s.span.OnChunk(&converted, at)
}

// Finalize implements streaming.Sink.Finalize.
func (s spanSink) Finalize(o streaming.Outcome) {
	s.span.Finalize(o)
}

// chunkUsage extracts token counters from a chunk carrying usage, typically
// the final one when include_usage is requested.
func chunkUsage(chunk openaisdk.ChatCompletionChunk) (input, output, total uint32, ok bool) {
	u := chunk.Usage
	if u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0 {
		return 0, 0, 0, false
	}
	return uint32(u.PromptTokens), uint32(u.CompletionTokens), uint32(u.TotalTokens), true //nolint:gosec
}
