// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package openai contains the subset of the OpenAI chat completions wire
// schema that the instrumentation core and recorders read. Field names and
// JSON tags follow the upstream API so that raw bodies unmarshal directly.
package openai

// Chat message roles.
const (
	ChatMessageRoleSystem    = "system"
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleTool      = "tool"
)

// ChatCompletionRequest is a chat completion request.
// https://platform.openai.com/docs/api-reference/chat/create
type ChatCompletionRequest struct {
	Model         string                      `json:"model"`
	Messages      []ChatCompletionMessage     `json:"messages,omitempty"`
	MaxTokens     *int64                      `json:"max_tokens,omitempty"`
	Temperature   *float64                    `json:"temperature,omitempty"`
	TopP          *float64                    `json:"top_p,omitempty"`
	Stop          []string                    `json:"stop,omitempty"`
	Stream        bool                        `json:"stream,omitempty"`
	StreamOptions *ChatCompletionStreamOption `json:"stream_options,omitempty"`
	Tools         []Tool                      `json:"tools,omitempty"`
	User          string                      `json:"user,omitempty"`
}

// ChatCompletionMessage is one request message. Multimodal content parts are
// out of scope for the instrumentation core and are treated as opaque text.
type ChatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// ChatCompletionStreamOption configures streaming responses.
type ChatCompletionStreamOption struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// Tool is a tool made available to the model.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a callable function.
type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

// ChatCompletionResponse is a non-streaming chat completion response.
type ChatCompletionResponse struct {
	ID      string                         `json:"id,omitempty"`
	Object  string                         `json:"object,omitempty"`
	Created int64                          `json:"created,omitempty"`
	Model   string                         `json:"model,omitempty"`
	Choices []ChatCompletionResponseChoice `json:"choices,omitempty"`
	Usage   *ChatCompletionResponseUsage   `json:"usage,omitempty"`
}

// ChatCompletionResponseChoice is one response choice.
type ChatCompletionResponseChoice struct {
	Index        int64                               `json:"index"`
	Message      ChatCompletionResponseChoiceMessage `json:"message"`
	FinishReason string                              `json:"finish_reason,omitempty"`
}

// ChatCompletionResponseChoiceMessage is the message of a response choice.
type ChatCompletionResponseChoiceMessage struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

// ChatCompletionResponseChunk is one streamed chunk of a chat completion.
type ChatCompletionResponseChunk struct {
	ID      string                              `json:"id,omitempty"`
	Object  string                              `json:"object,omitempty"`
	Created int64                               `json:"created,omitempty"`
	Model   string                              `json:"model,omitempty"`
	Choices []ChatCompletionResponseChunkChoice `json:"choices,omitempty"`
	// Usage is only present on the last chunk, and only when the request
	// set stream_options.include_usage.
	Usage *ChatCompletionResponseUsage `json:"usage,omitempty"`
}

// ChatCompletionResponseChunkChoice is one choice of a streamed chunk.
type ChatCompletionResponseChunkChoice struct {
	Index        int64                                   `json:"index"`
	Delta        *ChatCompletionResponseChunkChoiceDelta `json:"delta,omitempty"`
	FinishReason string                                  `json:"finish_reason,omitempty"`
}

// ChatCompletionResponseChunkChoiceDelta is the incremental message piece
// carried by a streamed chunk.
type ChatCompletionResponseChunkChoiceDelta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

// ChatCompletionResponseUsage reports token consumption.
type ChatCompletionResponseUsage struct {
	PromptTokens        int                  `json:"prompt_tokens"`
	CompletionTokens    int                  `json:"completion_tokens"`
	TotalTokens         int                  `json:"total_tokens"`
	PromptTokensDetails *PromptTokensDetails `json:"prompt_tokens_details,omitempty"`
}

// PromptTokensDetails breaks down prompt token accounting.
type PromptTokensDetails struct {
	CachedTokens int `json:"cached_tokens,omitempty"`
}
