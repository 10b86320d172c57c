// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package metrics

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/llmtrace/llmtrace/streaming"
)

// ChatCompletion records metrics for a single chat completion call.
// Implementations are not safe for concurrent use: a new instance is created
// per request and driven by the goroutine consuming the stream.
type ChatCompletion interface {
	// StartRequest initializes timing for a new request.
	StartRequest()
	// SetModel sets the model of the request. This is usually called after
	// parsing the request body.
	SetModel(model string)
	// SetSystem sets the provider system name (e.g. "openai", "anthropic")
	// reported as gen_ai.system.name.
	SetSystem(system string)

	// RecordTokenUsage records token usage metrics.
	RecordTokenUsage(ctx context.Context, inputTokens, outputTokens, totalTokens uint32)
	// RecordChunk records latency metrics for a streamed chunk received at
	// the given time. The first chunk records time to first token; later
	// chunks record inter-token latency.
	RecordChunk(ctx context.Context, at time.Time, tokens uint32)
	// RecordRequestCompletion records latency metrics for the entire request.
	RecordRequestCompletion(ctx context.Context, success bool)
}

// chatCompletion is the metric.Meter backed ChatCompletion implementation.
type chatCompletion struct {
	metrics        *genAI
	clock          clockz.Clock
	firstTokenSent bool
	requestStart   time.Time
	lastTokenTime  time.Time
	model          string
	system         string
}

// NewChatCompletion creates a new ChatCompletion instance.
func NewChatCompletion(meter metric.Meter, opts ...Option) ChatCompletion {
	c := &chatCompletion{
		metrics: newGenAI(meter),
		clock:   clockz.RealClock,
		model:   "unknown",
		system:  "unknown",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option configures a ChatCompletion instance.
type Option func(*chatCompletion)

// WithClock overrides the clock used for latency measurements. Intended for
// tests.
func WithClock(clock clockz.Clock) Option {
	return func(c *chatCompletion) { c.clock = clock }
}

// StartRequest implements [ChatCompletion.StartRequest].
func (c *chatCompletion) StartRequest() {
	c.requestStart = c.clock.Now()
	c.firstTokenSent = false
}

// SetModel implements [ChatCompletion.SetModel].
func (c *chatCompletion) SetModel(model string) {
	c.model = model
}

// SetSystem implements [ChatCompletion.SetSystem].
func (c *chatCompletion) SetSystem(system string) {
	if system != "" {
		c.system = system
	}
}

// buildBaseAttributes creates the base attributes for metrics recording.
func (c *chatCompletion) buildBaseAttributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Key(genaiAttributeOperationName).String(genaiOperationChat),
		attribute.Key(genaiAttributeSystemName).String(c.system),
		attribute.Key(genaiAttributeRequestModel).String(c.model),
	}
}

// RecordTokenUsage implements [ChatCompletion.RecordTokenUsage].
func (c *chatCompletion) RecordTokenUsage(ctx context.Context, inputTokens, outputTokens, totalTokens uint32) {
	attrs := c.buildBaseAttributes()

	c.metrics.tokenUsage.Record(ctx, float64(inputTokens),
		metric.WithAttributes(attrs...),
		metric.WithAttributes(attribute.Key(genaiAttributeTokenType).String(genaiTokenTypeInput)),
	)
	c.metrics.tokenUsage.Record(ctx, float64(outputTokens),
		metric.WithAttributes(attrs...),
		metric.WithAttributes(attribute.Key(genaiAttributeTokenType).String(genaiTokenTypeOutput)),
	)
	c.metrics.tokenUsage.Record(ctx, float64(totalTokens),
		metric.WithAttributes(attrs...),
		metric.WithAttributes(attribute.Key(genaiAttributeTokenType).String(genaiTokenTypeTotal)),
	)
}

// RecordChunk implements [ChatCompletion.RecordChunk].
func (c *chatCompletion) RecordChunk(ctx context.Context, at time.Time, tokens uint32) {
	attrs := c.buildBaseAttributes()

	if !c.firstTokenSent {
		c.firstTokenSent = true
		c.metrics.firstTokenLatency.Record(ctx, at.Sub(c.requestStart).Seconds(), metric.WithAttributes(attrs...))
	} else if tokens > 0 {
		itl := at.Sub(c.lastTokenTime).Seconds() / float64(tokens)
		c.metrics.outputTokenLatency.Record(ctx, itl, metric.WithAttributes(attrs...))
	}
	c.lastTokenTime = at
}

// RecordRequestCompletion implements [ChatCompletion.RecordRequestCompletion].
func (c *chatCompletion) RecordRequestCompletion(ctx context.Context, success bool) {
	attrs := c.buildBaseAttributes()

	if success {
		// According to the semantic conventions, the error attribute should
		// not be added for successful operations.
		c.metrics.requestLatency.Record(ctx, c.clock.Now().Sub(c.requestStart).Seconds(), metric.WithAttributes(attrs...))
	} else {
		// We don't have a set of typed errors yet, or a set of low-cardinality
		// values, so set the placeholder value.
		// See: https://opentelemetry.io/docs/specs/semconv/attributes-registry/error/#error-type
		c.metrics.requestLatency.Record(ctx, c.clock.Now().Sub(c.requestStart).Seconds(),
			metric.WithAttributes(attrs...),
			metric.WithAttributes(attribute.Key(genaiAttributeErrorType).String(genaiErrorTypeFallback)),
		)
	}
}

// Sink adapts a ChatCompletion to the streaming.Sink interface for a single
// chat completion stream, so a proxy can drive metrics alongside tracing.
// Each chunk counts as one output token step for inter-token latency; token
// totals are recorded from the usage reported at finalization.
type Sink[T any] struct {
	ctx     context.Context
	metrics ChatCompletion
	usage   func(chunk T) (input, output, total uint32, ok bool)
	input   uint32
	output  uint32
	total   uint32
	seen    bool
}

// NewSink creates a streaming sink recording chunk metrics. usage extracts
// token counts from a chunk when the provider reports them; it may be nil when
// usage is unavailable.
func NewSink[T any](ctx context.Context, m ChatCompletion, usage func(chunk T) (input, output, total uint32, ok bool)) *Sink[T] {
	return &Sink[T]{ctx: ctx, metrics: m, usage: usage}
}

// OnChunk implements [streaming.Sink.OnChunk].
func (s *Sink[T]) OnChunk(chunk T, at time.Time) {
	s.metrics.RecordChunk(s.ctx, at, 1)
	if s.usage != nil {
		if input, output, total, ok := s.usage(chunk); ok {
			s.input, s.output, s.total = input, output, total
			s.seen = true
		}
	}
}

// Finalize implements [streaming.Sink.Finalize].
func (s *Sink[T]) Finalize(o streaming.Outcome) {
	if s.seen {
		s.metrics.RecordTokenUsage(s.ctx, s.input, s.output, s.total)
	}
	s.metrics.RecordRequestCompletion(s.ctx, !o.Failed())
}
