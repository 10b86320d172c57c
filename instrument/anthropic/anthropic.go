// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package anthropic instruments the official Anthropic Go SDK. Messages wraps
// a client's streaming message calls so each one produces a span, propagates
// trace context to the service, and reports streaming metrics, without
// changing what the caller observes.
//
// Anthropic stream events are translated into chat completion chunks before
// recording, so the same recorders serve both providers. Configure the
// tracing recorder with openinference.NewChatCompletionRecorderForSystem so
// spans report llm.system "anthropic" and cost estimation consults Anthropic
// prices.
package anthropic

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/metric"

	openaischema "github.com/llmtrace/llmtrace/apischema/openai"
	"github.com/llmtrace/llmtrace/metrics"
	"github.com/llmtrace/llmtrace/streaming"
	tracingapi "github.com/llmtrace/llmtrace/tracing/api"
)

// Messages instruments message calls made through an Anthropic SDK client.
// All methods are safe for concurrent use.
type Messages struct {
	client     anthropicsdk.Client
	tracer     tracingapi.ChatCompletionTracer
	meter      metric.Meter
	logger     *slog.Logger
	streamOpts []streaming.Option
}

// Option configures Messages.
type Option func(*Messages)

// WithMeter enables gen_ai metrics recording on the given meter.
func WithMeter(meter metric.Meter) Option {
	return func(m *Messages) { m.meter = meter }
}

// WithLogger overrides the logger for instrumentation failures. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Messages) { m.logger = logger }
}

// WithStreamOptions passes options to the stream proxies created for
// streaming calls, such as streaming.WithClock for tests.
func WithStreamOptions(opts ...streaming.Option) Option {
	return func(m *Messages) { m.streamOpts = opts }
}

// NewMessages instruments message calls on client.
func NewMessages(client anthropicsdk.Client, tracing tracingapi.Tracing, opts ...Option) *Messages {
	m := &Messages{
		client: client,
		tracer: tracing.ChatCompletionTracer(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewStreaming performs a streaming message call. The returned stream behaves
// exactly like the SDK's own: same events, same termination, same error.
func (m *Messages) NewStreaming(ctx context.Context, params anthropicsdk.MessageNewParams, reqOpts ...option.RequestOption) streaming.Stream[anthropicsdk.MessageStreamEventUnion] {
	body, err := json.Marshal(params)
	if err != nil {
		m.logger.Warn("message call not instrumented: unmarshalable params", "error", err)
		return m.client.Messages.NewStreaming(ctx, params, reqOpts...)
	}
	req := convertRequest(body)
	req.Stream = true

	header := http.Header{}
	ctx, span := m.tracer.StartSpanAndInjectHeaders(ctx, header, req, body)
	for k, vs := range header {
		for _, v := range vs {
			reqOpts = append(reqOpts, option.WithHeaderAdd(k, v))
		}
	}

	stream := m.client.Messages.NewStreaming(ctx, params, reqOpts...)

	var mm metrics.ChatCompletion
	if m.meter != nil {
		mm = metrics.NewChatCompletion(m.meter)
		mm.StartRequest()
		mm.SetSystem(metrics.SystemAnthropic)
		mm.SetModel(req.Model)
	}
	if span == nil && mm == nil {
		return stream
	}
	sink := &eventSink{ctx: ctx, span: span, metrics: mm}
	return streaming.NewProxy[anthropicsdk.MessageStreamEventUnion](stream, sink, m.streamOpts...)
}

// convertRequest mirrors the wire form of a message request into the chat
// completion schema the tracer records. The system prompt becomes the leading
// message; content block arrays are flattened to their text.
func convertRequest(body []byte) *openaischema.ChatCompletionRequest {
	req := &openaischema.ChatCompletionRequest{
		Model: gjson.GetBytes(body, "model").String(),
	}
	if v := gjson.GetBytes(body, "max_tokens"); v.Exists() {
		n := v.Int()
		req.MaxTokens = &n
	}
	if v := gjson.GetBytes(body, "temperature"); v.Exists() {
		f := v.Float()
		req.Temperature = &f
	}
	if v := gjson.GetBytes(body, "top_p"); v.Exists() {
		f := v.Float()
		req.TopP = &f
	}
	if v := gjson.GetBytes(body, "system"); v.Exists() {
		req.Messages = append(req.Messages, openaischema.ChatCompletionMessage{
			Role:    openaischema.ChatMessageRoleSystem,
			Content: flattenContent(v),
		})
	}
	for _, msg := range gjson.GetBytes(body, "messages").Array() {
		req.Messages = append(req.Messages, openaischema.ChatCompletionMessage{
			Role:    msg.Get("role").String(),
			Content: flattenContent(msg.Get("content")),
		})
	}
	return req
}

// flattenContent returns content that is either a plain string or an array of
// content blocks as one text string.
func flattenContent(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.String()
	}
	var sb strings.Builder
	for _, part := range v.Array() {
		if part.Get("type").String() == "text" {
			sb.WriteString(part.Get("text").String())
		}
	}
	return sb.String()
}

// eventSink translates message stream events into chat completion chunks for
// the span and accumulates token usage for metrics. Driven from the stream's
// consuming goroutine only.
type eventSink struct {
	ctx     context.Context
	span    tracingapi.ChatCompletionSpan
	metrics metrics.ChatCompletion

	input       uint32
	cachedInput uint32
	output      uint32
	seenUsage   bool
}

// OnChunk implements streaming.Sink.OnChunk.
func (s *eventSink) OnChunk(event anthropicsdk.MessageStreamEventUnion, at time.Time) {
	if s.metrics != nil {
		s.metrics.RecordChunk(s.ctx, at, 1)
	}
	if s.span == nil {
		return
	}
	if chunk := s.convert(event); chunk != nil {
		s.span.OnChunk(chunk, at)
	}
}

// convert maps one stream event to a chat completion chunk, or nil for
// events that carry nothing recordable such as pings and content block
// boundaries.
func (s *eventSink) convert(event anthropicsdk.MessageStreamEventUnion) *openaischema.ChatCompletionResponseChunk {
	switch ev := event.AsAny().(type) {
	case anthropicsdk.MessageStartEvent:
		s.input = uint32(ev.Message.Usage.InputTokens)                //nolint:gosec
		s.cachedInput = uint32(ev.Message.Usage.CacheReadInputTokens) //nolint:gosec
		s.seenUsage = true
		return &openaischema.ChatCompletionResponseChunk{
			ID:    ev.Message.ID,
			Model: string(ev.Message.Model),
			Choices: []openaischema.ChatCompletionResponseChunkChoice{{
				Delta: &openaischema.ChatCompletionResponseChunkChoiceDelta{
					Role: string(ev.Message.Role),
				},
			}},
		}
	case anthropicsdk.ContentBlockDeltaEvent:
		textDelta, ok := ev.Delta.AsAny().(anthropicsdk.TextDelta)
		if !ok {
			return nil
		}
		content := textDelta.Text
		return &openaischema.ChatCompletionResponseChunk{
			Choices: []openaischema.ChatCompletionResponseChunkChoice{{
				Delta: &openaischema.ChatCompletionResponseChunkChoiceDelta{
					Content: &content,
				},
			}},
		}
	case anthropicsdk.MessageDeltaEvent:
		if ev.Usage.OutputTokens > 0 {
			s.output = uint32(ev.Usage.OutputTokens) //nolint:gosec
			s.seenUsage = true
		}
		chunk := &openaischema.ChatCompletionResponseChunk{
			Usage: s.usage(),
		}
		if reason := string(ev.Delta.StopReason); reason != "" {
			chunk.Choices = []openaischema.ChatCompletionResponseChunkChoice{{
				FinishReason: finishReason(reason),
			}}
		}
		return chunk
	default:
		return nil
	}
}

// usage reports the accumulated token counters in chat completion form, or
// nil when the stream never reported any.
func (s *eventSink) usage() *openaischema.ChatCompletionResponseUsage {
	if !s.seenUsage {
		return nil
	}
	u := &openaischema.ChatCompletionResponseUsage{
		PromptTokens:     int(s.input),
		CompletionTokens: int(s.output),
		TotalTokens:      int(s.input + s.output),
	}
	if s.cachedInput > 0 {
		u.PromptTokensDetails = &openaischema.PromptTokensDetails{CachedTokens: int(s.cachedInput)}
	}
	return u
}

// Finalize implements streaming.Sink.Finalize.
func (s *eventSink) Finalize(o streaming.Outcome) {
	if s.metrics != nil {
		if s.seenUsage {
			s.metrics.RecordTokenUsage(s.ctx, s.input, s.output, s.input+s.output)
		}
		s.metrics.RecordRequestCompletion(s.ctx, !o.Failed())
	}
	if s.span != nil {
		s.span.Finalize(o)
	}
}

// finishReason maps a message stop reason to its chat completion equivalent.
func finishReason(stopReason string) string {
	switch stopReason {
	case string(anthropicsdk.StopReasonEndTurn), string(anthropicsdk.StopReasonStopSequence):
		return "stop"
	case string(anthropicsdk.StopReasonMaxTokens):
		return "length"
	case string(anthropicsdk.StopReasonToolUse):
		return "tool_calls"
	case string(anthropicsdk.StopReasonRefusal):
		return "content_filter"
	default:
		return stopReason
	}
}
