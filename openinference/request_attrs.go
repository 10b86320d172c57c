// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package openinference

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/sjson"
	"go.opentelemetry.io/otel/attribute"

	"github.com/llmtrace/llmtrace/apischema/openai"
)

// buildRequestAttributes builds OpenInference attributes from the request.
// body is the raw request body; it is recorded as input.value and is also
// the source of llm.invocation_parameters, so unknown vendor fields survive.
func buildRequestAttributes(cfg *TraceConfig, system string, chatRequest *openai.ChatCompletionRequest, body []byte) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(SpanKind, SpanKindLLM),
		attribute.String(LLMSystem, system),
		attribute.String(LLMModelName, chatRequest.Model),
		attribute.String(InputMimeType, MimeTypeJSON),
	}

	if cfg.HideInputs {
		attrs = append(attrs, attribute.String(InputValue, RedactedValue))
	} else {
		attrs = append(attrs, attribute.String(InputValue, string(body)))
	}

	if cfg.HideLLMInvocationParameters {
		attrs = append(attrs, attribute.String(LLMInvocationParameters, RedactedValue))
	} else if params := invocationParameters(body); params != "" {
		attrs = append(attrs, attribute.String(LLMInvocationParameters, params))
	}

	// Add indexed attributes for each message.
	if !cfg.HideInputs && !cfg.HideInputMessages {
		for i, msg := range chatRequest.Messages {
			attrs = append(attrs, attribute.String(InputMessageAttribute(i, MessageRole), msg.Role))
			if msg.Content != "" {
				attrs = append(attrs, attribute.String(InputMessageAttribute(i, MessageContent), msg.Content))
			}
		}
	}

	// Add indexed attributes for each tool.
	for i, tool := range chatRequest.Tools {
		if toolJSON, err := json.Marshal(tool); err == nil {
			attrs = append(attrs,
				attribute.String(fmt.Sprintf("%s.%d.tool.json_schema", LLMTools, i), string(toolJSON)),
			)
		}
	}

	return attrs
}

// invocationParameters strips messages and tools from the raw body, which
// have their own attributes, and returns the remainder as a JSON string.
// See: openinference-instrumentation-openai _request_attributes_extractor.py.
func invocationParameters(body []byte) string {
	params := body
	for _, field := range []string{"messages", "tools"} {
		stripped, err := sjson.DeleteBytes(params, field)
		if err != nil {
			return ""
		}
		params = stripped
	}
	return string(params)
}
