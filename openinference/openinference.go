// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package openinference records chat completion spans following the
// OpenInference semantic conventions.
package openinference

import "fmt"

// OpenInference Span Kind constants.
//
// These constants define the type of operation represented by a span.
// Reference: https://github.com/Arize-ai/openinference/blob/main/spec/semantic_conventions.md
const (
	// SpanKind identifies the type of operation (required for all OpenInference spans).
	SpanKind = "openinference.span.kind"

	// SpanKindLLM indicates a Large Language Model operation.
	SpanKindLLM = "LLM"
)

// LLM Operation constants.
//
// Reference: https://github.com/Arize-ai/openinference/blob/main/spec/semantic_conventions.md#llm-spans
const (
	// LLMSystem identifies the AI system/product (e.g., "openai").
	LLMSystem = "llm.system"

	// LLMModelName specifies the model name (e.g., "gpt-4", "gpt-3.5-turbo").
	LLMModelName = "llm.model_name"

	// LLMInvocationParameters contains the invocation parameters as JSON string.
	LLMInvocationParameters = "llm.invocation_parameters"
)

// LLMSystem Values.
const (
	// LLMSystemOpenAI for OpenAI systems.
	LLMSystemOpenAI = "openai"

	// LLMSystemAnthropic for Anthropic systems.
	LLMSystemAnthropic = "anthropic"
)

// Input/Output constants.
//
// Reference: https://github.com/Arize-ai/openinference/blob/main/spec/semantic_conventions.md#inputoutput
const (
	// InputValue contains the input data as a string (typically JSON).
	InputValue = "input.value"

	// InputMimeType specifies the MIME type of the input data.
	InputMimeType = "input.mime_type"

	// OutputValue contains the output data as a string.
	OutputValue = "output.value"

	// OutputMimeType specifies the MIME type of the output data.
	OutputMimeType = "output.mime_type"

	// MimeTypeJSON for JSON content.
	MimeTypeJSON = "application/json"

	// MimeTypeText for plain text content.
	MimeTypeText = "text/plain"
)

// LLM Message constants.
//
// Messages use a flattened attribute format, indexed starting from 0.
// Reference: https://github.com/Arize-ai/openinference/blob/main/spec/semantic_conventions.md#llm-spans
const (
	// LLMInputMessages prefix for input message attributes.
	// Usage: llm.input_messages.{index}.message.role, llm.input_messages.{index}.message.content.
	LLMInputMessages = "llm.input_messages"

	// LLMOutputMessages prefix for output message attributes.
	// Usage: llm.output_messages.{index}.message.role, llm.output_messages.{index}.message.content.
	LLMOutputMessages = "llm.output_messages"

	// MessageRole suffix for message role (e.g., "user", "assistant", "system").
	MessageRole = "message.role"

	// MessageContent suffix for message content.
	MessageContent = "message.content"
)

// Token Count constants.
//
// Reference: https://github.com/Arize-ai/openinference/blob/main/spec/semantic_conventions.md#llm-spans
const (
	// LLMTokenCountPrompt contains the number of tokens in the prompt.
	LLMTokenCountPrompt = "llm.token_count.prompt" // #nosec G101

	// LLMTokenCountCompletion contains the number of tokens in the completion.
	LLMTokenCountCompletion = "llm.token_count.completion" // #nosec G101

	// LLMTokenCountTotal contains the total number of tokens.
	LLMTokenCountTotal = "llm.token_count.total" // #nosec G101

	// LLMTokenCountPromptCacheHit represents the number of prompt tokens
	// successfully retrieved from cache. This enables tracking of cache
	// efficiency and cost savings from cached prompts.
	LLMTokenCountPromptCacheHit = "llm.token_count.prompt_details.cache_read" // #nosec G101
)

// Tool constants.
const (
	// LLMTools contains the list of available tools as JSON.
	// Format: llm.tools.{index}.tool.json_schema.
	LLMTools = "llm.tools"
)

// Cost constants.
//
// Reference: https://github.com/Arize-ai/openinference/blob/main/spec/semantic_conventions.md
const (
	// LLMCostTotal is the estimated total cost of the call in US dollars.
	LLMCostTotal = "llm.cost.total"
)

// Streaming latency constants. These are llmtrace extensions; OpenInference
// does not define chunk latency attributes.
const (
	// StreamTimeToFirstChunk is the latency in seconds from call start to
	// the first streamed chunk.
	StreamTimeToFirstChunk = "llmtrace.stream.time_to_first_chunk"

	// StreamTimeBetweenChunks is the mean gap in seconds between successive
	// streamed chunks.
	StreamTimeBetweenChunks = "llmtrace.stream.time_between_chunks"

	// StreamChunkCount is the number of chunks the stream produced.
	StreamChunkCount = "llmtrace.stream.chunk_count"
)

// RedactedValue is the value used when content is hidden for privacy.
const RedactedValue = "__REDACTED__"

// InputMessageAttribute creates an attribute key for input messages.
func InputMessageAttribute(index int, suffix string) string {
	return fmt.Sprintf("%s.%d.%s", LLMInputMessages, index, suffix)
}

// OutputMessageAttribute creates an attribute key for output messages.
func OutputMessageAttribute(index int, suffix string) string {
	return fmt.Sprintf("%s.%d.%s", LLMOutputMessages, index, suffix)
}
