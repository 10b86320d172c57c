// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package testotel

import (
	"time"

	"github.com/llmtrace/llmtrace/apischema/openai"
	"github.com/llmtrace/llmtrace/streaming"
)

// MockSpan is a mock implementation of api.ChatCompletionSpan for testing purposes.
type MockSpan struct {
	Resp       *openai.ChatCompletionResponse
	RespChunks []*openai.ChatCompletionResponseChunk
	ChunkTimes []time.Time
	Outcome    streaming.Outcome
	Finalized  bool
}

// OnChunk implements api.ChatCompletionSpan.
func (s *MockSpan) OnChunk(chunk *openai.ChatCompletionResponseChunk, at time.Time) {
	s.RespChunks = append(s.RespChunks, chunk)
	s.ChunkTimes = append(s.ChunkTimes, at)
}

// RecordResponse implements api.ChatCompletionSpan.
func (s *MockSpan) RecordResponse(resp *openai.ChatCompletionResponse) {
	s.Resp = resp
}

// Finalize implements api.ChatCompletionSpan.
func (s *MockSpan) Finalize(o streaming.Outcome) {
	if s.Finalized {
		return
	}
	s.Finalized = true
	s.Outcome = o
}
