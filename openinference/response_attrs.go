// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package openinference

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/llmtrace/llmtrace/apischema/openai"
	tracing "github.com/llmtrace/llmtrace/tracing/api"
)

// chatCompletionAssembler folds streamed chunks into the accumulated state
// recorded at finalize time. One assembler serves one stream; it is driven
// from the stream owner's goroutine only.
type chatCompletionAssembler struct {
	model        string
	role         string
	finishReason string
	content      strings.Builder
	usage        *openai.ChatCompletionResponseUsage
}

var _ tracing.ChunkAssembler = (*chatCompletionAssembler)(nil)

// OnChunk implements [tracing.ChunkAssembler.OnChunk].
func (a *chatCompletionAssembler) OnChunk(chunk *openai.ChatCompletionResponseChunk) {
	if a.model == "" {
		a.model = chunk.Model
	}
	// Usage arrives on the last chunk when stream_options.include_usage is
	// set; last write wins.
	if chunk.Usage != nil {
		a.usage = chunk.Usage
	}
	for i := range chunk.Choices {
		choice := &chunk.Choices[i]
		if choice.Index != 0 {
			continue // only the first choice is accumulated as output text
		}
		if choice.FinishReason != "" {
			a.finishReason = choice.FinishReason
		}
		if delta := choice.Delta; delta != nil {
			if a.role == "" {
				a.role = delta.Role
			}
			if delta.Content != nil {
				a.content.WriteString(*delta.Content)
			}
		}
	}
}

// Finalize implements [tracing.ChunkAssembler.Finalize].
func (a *chatCompletionAssembler) Finalize() tracing.Assembled {
	assembled := tracing.Assembled{
		Model:        a.model,
		Role:         a.role,
		Content:      a.content.String(),
		FinishReason: a.finishReason,
	}
	if u := a.usage; u != nil {
		assembled.Usage = tracing.Usage{
			InputTokens:  uint32(u.PromptTokens),     //nolint:gosec
			OutputTokens: uint32(u.CompletionTokens), //nolint:gosec
			TotalTokens:  uint32(u.TotalTokens),      //nolint:gosec
		}
		if td := u.PromptTokensDetails; td != nil {
			assembled.Usage.CachedInputTokens = uint32(td.CachedTokens) //nolint:gosec
		}
	}
	return assembled
}

// buildResponseAttributes builds attributes for a non-streaming response.
func buildResponseAttributes(cfg *TraceConfig, resp *openai.ChatCompletionResponse) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(LLMModelName, resp.Model),
		attribute.String(OutputMimeType, MimeTypeJSON),
	}

	if !cfg.HideOutputs && !cfg.HideOutputMessages {
		for i, choice := range resp.Choices {
			attrs = append(attrs, attribute.String(OutputMessageAttribute(i, MessageRole), choice.Message.Role))
			if choice.Message.Content != nil && *choice.Message.Content != "" {
				attrs = append(attrs, attribute.String(OutputMessageAttribute(i, MessageContent), *choice.Message.Content))
			}
		}
	}

	if u := resp.Usage; u != nil {
		attrs = append(attrs, usageAttributes(tracing.Usage{
			InputTokens:  uint32(u.PromptTokens),     //nolint:gosec
			OutputTokens: uint32(u.CompletionTokens), //nolint:gosec
			TotalTokens:  uint32(u.TotalTokens),      //nolint:gosec
		})...)
		if td := u.PromptTokensDetails; td != nil && td.CachedTokens > 0 {
			attrs = append(attrs, attribute.Int(LLMTokenCountPromptCacheHit, td.CachedTokens))
		}
	}
	return attrs
}

// usageAttributes converts non-zero token counters to attributes.
func usageAttributes(u tracing.Usage) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if u.InputTokens > 0 {
		attrs = append(attrs, attribute.Int(LLMTokenCountPrompt, int(u.InputTokens)))
	}
	if u.OutputTokens > 0 {
		attrs = append(attrs, attribute.Int(LLMTokenCountCompletion, int(u.OutputTokens)))
	}
	if u.TotalTokens > 0 {
		attrs = append(attrs, attribute.Int(LLMTokenCountTotal, int(u.TotalTokens)))
	}
	return attrs
}
