// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package streaming

import "time"

// Recorder accumulates chunk arrival timestamps for one stream and derives
// latency figures from them. It is owned by a single stream and is not
// safe for concurrent use; reads after Finish are idempotent.
type Recorder struct {
	start    time.Time
	arrivals []time.Time
	finished bool
}

// NewRecorder returns a Recorder with its start time unset.
func NewRecorder() *Recorder { return &Recorder{} }

// Start records the instant the instrumented call began.
func (r *Recorder) Start(t0 time.Time) { r.start = t0 }

// RecordChunk appends a chunk arrival timestamp. The sequence is kept
// monotonically non-decreasing; a timestamp earlier than its predecessor is
// clamped to the predecessor.
func (r *Recorder) RecordChunk(t time.Time) {
	if r.finished {
		return
	}
	if n := len(r.arrivals); n > 0 && t.Before(r.arrivals[n-1]) {
		t = r.arrivals[n-1]
	}
	r.arrivals = append(r.arrivals, t)
}

// Finish seals the recorder. Later RecordChunk calls are ignored.
func (r *Recorder) Finish() { r.finished = true }

// ChunkCount returns the number of recorded chunks.
func (r *Recorder) ChunkCount() int { return len(r.arrivals) }

// TTFC returns the latency from start to the first chunk, or 0 when no
// chunk ever arrived. The zero-chunk case deliberately reads as zero rather
// than as an error; streams that fail before producing output still report
// a defined value.
func (r *Recorder) TTFC() time.Duration {
	if len(r.arrivals) == 0 {
		return 0
	}
	return r.arrivals[0].Sub(r.start)
}

// TBT returns the arithmetic mean of the gaps between successive chunks,
// or 0 when fewer than two chunks arrived.
func (r *Recorder) TBT() time.Duration {
	if len(r.arrivals) < 2 {
		return 0
	}
	total := r.arrivals[len(r.arrivals)-1].Sub(r.arrivals[0])
	return total / time.Duration(len(r.arrivals)-1)
}

// Summary is the read-only view of a finished recorder handed to attribute
// recorders at finalize time.
type Summary struct {
	TTFC       time.Duration
	TBT        time.Duration
	ChunkCount int
}

// Summary returns the derived latency figures.
func (r *Recorder) Summary() Summary {
	return Summary{TTFC: r.TTFC(), TBT: r.TBT(), ChunkCount: r.ChunkCount()}
}
