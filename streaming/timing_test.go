// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package streaming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		arrivalsSec   []float64
		expTTFC       time.Duration
		expTBT        time.Duration
		expChunkCount int
	}{
		{
			name:          "four chunks",
			arrivalsSec:   []float64{0, 2, 5, 9},
			expTTFC:       0,
			expTBT:        3 * time.Second,
			expChunkCount: 4,
		},
		{
			name:          "typical stream",
			arrivalsSec:   []float64{2, 5, 9},
			expTTFC:       2 * time.Second,
			expTBT:        3500 * time.Millisecond,
			expChunkCount: 3,
		},
		{
			name:          "no chunks",
			arrivalsSec:   nil,
			expTTFC:       0,
			expTBT:        0,
			expChunkCount: 0,
		},
		{
			name:          "one chunk",
			arrivalsSec:   []float64{4},
			expTTFC:       4 * time.Second,
			expTBT:        0,
			expChunkCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecorder()
			r.Start(t0)
			for _, s := range tt.arrivalsSec {
				r.RecordChunk(t0.Add(time.Duration(s * float64(time.Second))))
			}
			r.Finish()

			require.Equal(t, tt.expTTFC, r.TTFC())
			require.Equal(t, tt.expTBT, r.TBT())
			require.Equal(t, tt.expChunkCount, r.ChunkCount())

			// Reads are idempotent after Finish.
			require.Equal(t, tt.expTTFC, r.TTFC())
			require.Equal(t, tt.expTBT, r.TBT())

			sum := r.Summary()
			require.Equal(t, Summary{TTFC: tt.expTTFC, TBT: tt.expTBT, ChunkCount: tt.expChunkCount}, sum)
		})
	}
}

func TestRecorder_MonotoneClamp(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewRecorder()
	r.Start(t0)
	r.RecordChunk(t0.Add(5 * time.Second))
	// A timestamp that runs backwards is clamped to its predecessor.
	r.RecordChunk(t0.Add(3 * time.Second))
	r.RecordChunk(t0.Add(7 * time.Second))
	r.Finish()

	require.Equal(t, 5*time.Second, r.TTFC())
	require.Equal(t, time.Second, r.TBT())
	require.Equal(t, 3, r.ChunkCount())
}

func TestRecorder_IgnoresChunksAfterFinish(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewRecorder()
	r.Start(t0)
	r.RecordChunk(t0.Add(time.Second))
	r.Finish()
	r.RecordChunk(t0.Add(10 * time.Second))

	require.Equal(t, 1, r.ChunkCount())
	require.Equal(t, time.Second, r.TTFC())
}
