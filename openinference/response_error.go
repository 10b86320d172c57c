// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package openinference

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RecordResponseError processes a failed or abandoned stream and updates
// the span accordingly. The error recorded is the one the caller saw; the
// instrumentation never rewrites it.
func RecordResponseError(span trace.Span, err error) {
	errorType := fmt.Sprintf("%T", err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		errorType = "CancelledError"
	}

	// Add exception event following OpenTelemetry semantic conventions.
	// The event name MUST be "exception" per the spec.
	span.AddEvent("exception", trace.WithAttributes(
		attribute.String("exception.type", errorType),
		attribute.String("exception.message", err.Error()),
	))

	// Set span status to error with the message.
	span.SetStatus(codes.Error, err.Error())
}
