// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package openinference

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/llmtrace/llmtrace/apischema/openai"
	"github.com/llmtrace/llmtrace/llmcost"
	"github.com/llmtrace/llmtrace/streaming"
	tracing "github.com/llmtrace/llmtrace/tracing/api"
)

// ChatCompletionRecorder implements recorders for OpenInference chat
// completion spans.
type ChatCompletionRecorder struct {
	config    *TraceConfig
	estimator tracing.CostEstimator
	system    string
}

var _ tracing.ChatCompletionRecorder = (*ChatCompletionRecorder)(nil)

// startOpts sets trace.SpanKindInternal as that's the span kind used in
// OpenInference.
var startOpts = []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}

// NewChatCompletionRecorder creates a recorder with the given privacy
// configuration and cost estimator, either of which may be nil. The llm.system
// is OpenAI.
func NewChatCompletionRecorder(config *TraceConfig, estimator tracing.CostEstimator) *ChatCompletionRecorder {
	return NewChatCompletionRecorderForSystem(LLMSystemOpenAI, config, estimator)
}

// NewChatCompletionRecorderForSystem creates a recorder reporting the given
// llm.system, such as LLMSystemAnthropic for calls routed through an
// Anthropic-native client. The system also selects the price table rows used
// for cost estimation.
func NewChatCompletionRecorderForSystem(system string, config *TraceConfig, estimator tracing.CostEstimator) *ChatCompletionRecorder {
	if config == nil {
		config = NewTraceConfig()
	}
	return &ChatCompletionRecorder{config: config, estimator: estimator, system: system}
}

// NewChatCompletionRecorderFromEnv creates a recorder configured from the
// OPENINFERENCE_* environment variables, with the default price table.
func NewChatCompletionRecorderFromEnv() *ChatCompletionRecorder {
	return NewChatCompletionRecorder(NewTraceConfigFromEnv(), llmcost.DefaultPriceTable())
}

// StartParams implements the same method as defined in tracing.ChatCompletionRecorder.
func (r *ChatCompletionRecorder) StartParams(*openai.ChatCompletionRequest, []byte) (spanName string, opts []trace.SpanStartOption) {
	return "ChatCompletion", startOpts
}

// RecordRequest implements the same method as defined in tracing.ChatCompletionRecorder.
func (r *ChatCompletionRecorder) RecordRequest(span trace.Span, chatReq *openai.ChatCompletionRequest, body []byte) {
	span.SetAttributes(buildRequestAttributes(r.config, r.system, chatReq, body)...)
}

// NewAssembler implements the same method as defined in tracing.ChatCompletionRecorder.
func (r *ChatCompletionRecorder) NewAssembler() tracing.ChunkAssembler {
	return &chatCompletionAssembler{}
}

// RecordCompletion implements the same method as defined in tracing.ChatCompletionRecorder.
func (r *ChatCompletionRecorder) RecordCompletion(span trace.Span, assembled tracing.Assembled, timing streaming.Summary) {
	attrs := []attribute.KeyValue{
		attribute.String(OutputMimeType, MimeTypeText),
		attribute.Float64(StreamTimeToFirstChunk, timing.TTFC.Seconds()),
		attribute.Float64(StreamTimeBetweenChunks, timing.TBT.Seconds()),
		attribute.Int(StreamChunkCount, timing.ChunkCount),
	}
	if assembled.Model != "" {
		attrs = append(attrs, attribute.String(LLMModelName, assembled.Model))
	}
	if r.config.HideOutputs {
		attrs = append(attrs, attribute.String(OutputValue, RedactedValue))
	} else {
		attrs = append(attrs, attribute.String(OutputValue, assembled.Content))
		if !r.config.HideOutputMessages {
			role := assembled.Role
			if role == "" {
				role = openai.ChatMessageRoleAssistant
			}
			attrs = append(attrs,
				attribute.String(OutputMessageAttribute(0, MessageRole), role),
				attribute.String(OutputMessageAttribute(0, MessageContent), assembled.Content),
			)
		}
	}
	attrs = append(attrs, usageAttributes(assembled.Usage)...)
	if assembled.Usage.CachedInputTokens > 0 {
		attrs = append(attrs, attribute.Int(LLMTokenCountPromptCacheHit, int(assembled.Usage.CachedInputTokens)))
	}
	if r.estimator != nil && assembled.Model != "" {
		if usd, ok := r.estimator.EstimateUSD(r.system, assembled.Model, assembled.Usage); ok {
			attrs = append(attrs, attribute.Float64(LLMCostTotal, usd))
		}
	}
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordResponse implements the same method as defined in tracing.ChatCompletionRecorder.
func (r *ChatCompletionRecorder) RecordResponse(span trace.Span, resp *openai.ChatCompletionResponse) {
	attrs := buildResponseAttributes(r.config, resp)
	if r.estimator != nil && resp.Usage != nil {
		usage := tracing.Usage{
			InputTokens:  uint32(resp.Usage.PromptTokens),     //nolint:gosec
			OutputTokens: uint32(resp.Usage.CompletionTokens), //nolint:gosec
			TotalTokens:  uint32(resp.Usage.TotalTokens),      //nolint:gosec
		}
		if usd, ok := r.estimator.EstimateUSD(r.system, resp.Model, usage); ok {
			attrs = append(attrs, attribute.Float64(LLMCostTotal, usd))
		}
	}
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordResponseOnError implements the same method as defined in tracing.ChatCompletionRecorder.
func (r *ChatCompletionRecorder) RecordResponseOnError(span trace.Span, err error) {
	RecordResponseError(span, err)
}
