// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package streaming

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// sliceRecvStream is a RecvStream backed by a slice, ending with io.EOF or
// the configured error.
type sliceRecvStream struct {
	chunks []string
	idx    int
	err    error
}

func (s *sliceRecvStream) Recv(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.idx >= len(s.chunks) {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	s.idx++
	return s.chunks[s.idx-1], nil
}

func TestRecvProxy_Transparency(t *testing.T) {
	inner := &sliceRecvStream{chunks: []string{"a", "b"}}
	sink := &recordSink[string]{}
	proxy := NewRecvProxy[string](inner, sink)

	var got []string
	for {
		chunk, err := proxy.Recv(t.Context())
		if err != nil {
			require.Equal(t, io.EOF, err)
			break
		}
		got = append(got, chunk)
	}
	require.Equal(t, []string{"a", "b"}, got)
	require.Equal(t, []string{"a", "b"}, sink.chunks)
	require.Len(t, sink.outcomes, 1)
	require.False(t, sink.outcomes[0].Failed())

	// EOF again: terminal state is sticky on the fake, and no re-finalize.
	_, err := proxy.Recv(t.Context())
	require.Equal(t, io.EOF, err)
	require.Len(t, sink.outcomes, 1)
}

func TestRecvProxy_ErrorTransparency(t *testing.T) {
	wantErr := errors.New("rate limited")
	inner := &sliceRecvStream{chunks: []string{"a"}, err: wantErr}
	sink := &recordSink[string]{}
	proxy := NewRecvProxy[string](inner, sink)

	chunk, err := proxy.Recv(t.Context())
	require.NoError(t, err)
	require.Equal(t, "a", chunk)

	_, err = proxy.Recv(t.Context())
	require.Same(t, wantErr, err)
	require.Len(t, sink.outcomes, 1)
	require.Same(t, wantErr, sink.outcomes[0].Err())
}

func TestRecvProxy_Cancellation(t *testing.T) {
	inner := &sliceRecvStream{chunks: []string{"a", "b", "c"}}
	sink := &recordSink[string]{}
	proxy := NewRecvProxy[string](inner, sink)

	ctx, cancel := context.WithCancel(t.Context())
	_, err := proxy.Recv(ctx)
	require.NoError(t, err)

	cancel()
	_, err = proxy.Recv(ctx)
	require.ErrorIs(t, err, context.Canceled)

	// Cancellation finalizes as a failure carrying the caller's error.
	require.Len(t, sink.outcomes, 1)
	require.ErrorIs(t, sink.outcomes[0].Err(), context.Canceled)
}

func TestRecvProxy_NilSink(t *testing.T) {
	inner := &sliceRecvStream{chunks: []string{"a"}}
	proxy := NewRecvProxy[string](inner, nil)

	chunk, err := proxy.Recv(t.Context())
	require.NoError(t, err)
	require.Equal(t, "a", chunk)

	_, err = proxy.Recv(t.Context())
	require.Equal(t, io.EOF, err)
}

func TestRecvProxy_SinkPanicsInvisible(t *testing.T) {
	inner := &sliceRecvStream{chunks: []string{"a"}}
	proxy := NewRecvProxy[string](inner, panicSink[string]{}, WithLogger(discardLogger()))

	chunk, err := proxy.Recv(t.Context())
	require.NoError(t, err)
	require.Equal(t, "a", chunk)

	_, err = proxy.Recv(t.Context())
	require.Equal(t, io.EOF, err)
}
