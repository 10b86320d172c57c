// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package streaming

import "context"

// Proxy wraps a Stream, forwarding every chunk unchanged while reporting
// arrival times and the terminal outcome to a Sink. The zero pulls, values,
// ordering and Err result seen by the caller are identical to driving the
// underlying stream directly.
//
// A Proxy is driven from a single goroutine, like the stream it wraps.
type Proxy[T any] struct {
	inner Stream[T]
	sink  Sink[T]
	cfg   config
	done  bool
}

// NewProxy wraps inner so that sink observes the stream's chunks and
// termination. The returned proxy is used in place of inner. A nil sink
// (such as an empty MultiSink) yields a proxy that only forwards.
func NewProxy[T any](inner Stream[T], sink Sink[T], opts ...Option) *Proxy[T] {
	if sink == nil {
		sink = nopSink[T]{}
	}
	return &Proxy[T]{inner: inner, sink: sink, cfg: newConfig(opts)}
}

// Next implements Stream.Next. The sink is notified of termination before
// the caller can observe it, so finalized attributes always reflect the
// complete stream.
func (p *Proxy[T]) Next() bool {
	if !p.inner.Next() {
		p.finalize()
		return false
	}
	at := p.cfg.clock.Now()
	chunk := p.inner.Current()
	notify(p.cfg.logger, "chunk", func() { p.sink.OnChunk(chunk, at) })
	return true
}

// Current implements Stream.Current.
func (p *Proxy[T]) Current() T { return p.inner.Current() }

// Err implements Stream.Err.
func (p *Proxy[T]) Err() error { return p.inner.Err() }

// Close implements Stream.Close. Closing before exhaustion counts as
// abandonment and finalizes with a cancellation outcome.
func (p *Proxy[T]) Close() error {
	err := p.inner.Close()
	p.finalizeWith(Failed(context.Canceled))
	return err
}

func (p *Proxy[T]) finalize() {
	if err := p.inner.Err(); err != nil {
		p.finalizeWith(Failed(err))
	} else {
		p.finalizeWith(Exhausted())
	}
}

func (p *Proxy[T]) finalizeWith(o Outcome) {
	if p.done {
		return
	}
	p.done = true
	notify(p.cfg.logger, "finalize", func() { p.sink.Finalize(o) })
}
