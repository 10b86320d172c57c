// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPrometheusReader(t *testing.T) {
	clearEnv(t)
	t.Setenv("OTEL_SDK_DISABLED", "true")

	reader, handler, err := NewPrometheusReader()
	require.NoError(t, err)

	meter, shutdown, err := NewMeterFromEnv(t.Context(), io.Discard, reader)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, shutdown(t.Context())) })

	cc := NewChatCompletion(meter)
	cc.StartRequest()
	cc.SetModel("gpt-4o-mini")
	cc.RecordTokenUsage(t.Context(), 10, 5, 15)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// Metric and attribute names are converted to Prometheus form.
	body := rec.Body.String()
	require.Contains(t, body, "gen_ai_client_token_usage")
	require.Contains(t, body, `gen_ai_request_model="gpt-4o-mini"`)
}
