// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package streaming implements transparent instrumentation proxies over
// streamed model responses. A proxy forwards chunks to the caller exactly as
// the underlying stream produced them while recording per-chunk arrival
// times and notifying a Sink once, when the stream terminates.
package streaming

import (
	"context"
	"log/slog"
	"time"

	"github.com/zoobzio/clockz"
)

// Stream is the synchronous pull protocol instrumented by Proxy. It matches
// the shape of ssestream.Stream in the OpenAI and Anthropic Go SDKs.
type Stream[T any] interface {
	// Next advances the stream, returning false on exhaustion or error.
	Next() bool
	// Current returns the element produced by the last successful Next.
	Current() T
	// Err returns the terminal error, or nil after normal exhaustion.
	Err() error
	// Close releases the underlying connection.
	Close() error
}

// RecvStream is the context-aware pull protocol instrumented by RecvProxy.
// Recv returns io.EOF on normal exhaustion; cancellation of ctx surfaces as
// the error the underlying stream maps it to, usually ctx.Err().
type RecvStream[T any] interface {
	Recv(ctx context.Context) (T, error)
}

// Outcome describes how a stream terminated.
type Outcome struct {
	err error
}

// Exhausted is the outcome of a stream that ended normally.
func Exhausted() Outcome { return Outcome{} }

// Failed is the outcome of a stream that ended with err, including
// cancellation and early abandonment.
func Failed(err error) Outcome { return Outcome{err: err} }

// Err returns the terminal error, or nil for an exhausted stream.
func (o Outcome) Err() error { return o.err }

// Failed reports whether the stream terminated with an error.
func (o Outcome) Failed() bool { return o.err != nil }

// Sink receives instrumentation events from a proxy. Implementations must
// tolerate Finalize being attempted from a goroutine other than the one
// driving the stream; the proxies themselves call each method at most once
// per event.
type Sink[T any] interface {
	// OnChunk is called after each successful pull with the chunk and its
	// arrival time.
	OnChunk(chunk T, at time.Time)
	// Finalize is called when the stream is known to be exhausted, failed,
	// or abandoned. It is called at most once per proxy.
	Finalize(o Outcome)
}

type config struct {
	clock  clockz.Clock
	logger *slog.Logger
}

// Option configures a proxy.
type Option func(*config)

// WithClock overrides the timestamp source, for deterministic tests.
func WithClock(c clockz.Clock) Option {
	return func(cfg *config) { cfg.clock = c }
}

// WithLogger sets the logger used for swallowed sink failures.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

func newConfig(opts []Option) config {
	cfg := config{clock: clockz.RealClock, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// notify invokes fn, logging and swallowing any panic so that a broken sink
// can never alter what the caller of a proxy observes.
func notify(logger *slog.Logger, event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("stream instrumentation failure ignored",
				slog.String("event", event), slog.Any("panic", r))
		}
	}()
	fn()
}
