// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package streaming

import "time"

// nopSink discards every event. Proxies substitute it for a nil sink so the
// nil result of an all-optional MultiSink stays safe to pass through.
type nopSink[T any] struct{}

func (nopSink[T]) OnChunk(T, time.Time) {}

func (nopSink[T]) Finalize(Outcome) {}

// multiSink fans each event out to several sinks in order.
type multiSink[T any] struct {
	sinks []Sink[T]
}

// MultiSink combines sinks into one. Nil sinks are skipped so callers can
// pass optional sinks without checking. A single non-nil sink is returned
// unwrapped.
func MultiSink[T any](sinks ...Sink[T]) Sink[T] {
	kept := make([]Sink[T], 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return multiSink[T]{sinks: kept}
	}
}

// OnChunk implements Sink.OnChunk.
func (m multiSink[T]) OnChunk(chunk T, at time.Time) {
	for _, s := range m.sinks {
		s.OnChunk(chunk, at)
	}
}

// Finalize implements Sink.Finalize.
func (m multiSink[T]) Finalize(o Outcome) {
	for _, s := range m.sinks {
		s.Finalize(o)
	}
}
