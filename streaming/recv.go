// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package streaming

import (
	"context"
	"errors"
	"io"
)

// RecvProxy wraps a RecvStream. Each Recv blocks only inside the underlying
// stream's own Recv, so cancellation reaches the caller exactly as it would
// without instrumentation; the terminal Finalize on a cancelled pull is best
// effort and never delays error delivery.
type RecvProxy[T any] struct {
	inner RecvStream[T]
	sink  Sink[T]
	cfg   config
	done  bool
}

// NewRecvProxy wraps inner so that sink observes the stream's chunks and
// termination. A nil sink yields a proxy that only forwards.
func NewRecvProxy[T any](inner RecvStream[T], sink Sink[T], opts ...Option) *RecvProxy[T] {
	if sink == nil {
		sink = nopSink[T]{}
	}
	return &RecvProxy[T]{inner: inner, sink: sink, cfg: newConfig(opts)}
}

// Recv implements RecvStream.Recv. The returned chunk and error are exactly
// those of the underlying stream.
func (p *RecvProxy[T]) Recv(ctx context.Context) (T, error) {
	chunk, err := p.inner.Recv(ctx)
	if err == nil {
		at := p.cfg.clock.Now()
		notify(p.cfg.logger, "chunk", func() { p.sink.OnChunk(chunk, at) })
		return chunk, nil
	}
	if errors.Is(err, io.EOF) {
		p.finalizeWith(Exhausted())
	} else {
		p.finalizeWith(Failed(err))
	}
	return chunk, err
}

func (p *RecvProxy[T]) finalizeWith(o Outcome) {
	if p.done {
		return
	}
	p.done = true
	notify(p.cfg.logger, "finalize", func() { p.sink.Finalize(o) })
}
