// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.
package openinference

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/llmtrace/llmtrace/internal/testing/testotel"
)

type apiStatusError struct{ msg string }

func (e *apiStatusError) Error() string { return e.msg }

func TestRecordResponseError(t *testing.T) {
	plainErr := errors.New("connection reset by peer")
	statusErr := &apiStatusError{msg: `Error code: 401 - {"error": {"message": "Unauthorized"}}`}

	tests := []struct {
		name                string
		err                 error
		expectedEvents      []trace.Event
		expectedDescription string
	}{
		{
			name: "plain error",
			err:  plainErr,
			expectedEvents: []trace.Event{
				{
					Name: "exception",
					Attributes: []attribute.KeyValue{
						attribute.String("exception.type", "*errors.errorString"),
						attribute.String("exception.message", "connection reset by peer"),
					},
					Time: time.Time{},
				},
			},
			expectedDescription: "connection reset by peer",
		},
		{
			name: "typed api error",
			err:  statusErr,
			expectedEvents: []trace.Event{
				{
					Name: "exception",
					Attributes: []attribute.KeyValue{
						attribute.String("exception.type", "*openinference.apiStatusError"),
						attribute.String("exception.message", `Error code: 401 - {"error": {"message": "Unauthorized"}}`),
					},
					Time: time.Time{},
				},
			},
			expectedDescription: `Error code: 401 - {"error": {"message": "Unauthorized"}}`,
		},
		{
			name: "context canceled",
			err:  context.Canceled,
			expectedEvents: []trace.Event{
				{
					Name: "exception",
					Attributes: []attribute.KeyValue{
						attribute.String("exception.type", "CancelledError"),
						attribute.String("exception.message", "context canceled"),
					},
					Time: time.Time{},
				},
			},
			expectedDescription: "context canceled",
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			expectedEvents: []trace.Event{
				{
					Name: "exception",
					Attributes: []attribute.KeyValue{
						attribute.String("exception.type", "CancelledError"),
						attribute.String("exception.message", "context deadline exceeded"),
					},
					Time: time.Time{},
				},
			},
			expectedDescription: "context deadline exceeded",
		},
		{
			name: "wrapped context cancellation",
			err:  fmt.Errorf("stream aborted: %w", context.Canceled),
			expectedEvents: []trace.Event{
				{
					Name: "exception",
					Attributes: []attribute.KeyValue{
						attribute.String("exception.type", "CancelledError"),
						attribute.String("exception.message", "stream aborted: context canceled"),
					},
					Time: time.Time{},
				},
			},
			expectedDescription: "stream aborted: context canceled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span := testotel.RecordWithSpan(t, func(span oteltrace.Span) bool {
				RecordResponseError(span, tt.err)
				return false
			})

			require.Equal(t, codes.Error, span.Status.Code)
			require.Equal(t, tt.expectedDescription, span.Status.Description)
			require.Equal(t, tt.expectedEvents, span.Events)
		})
	}
}
