// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package metrics

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// clearEnv clears any OTEL configuration that could exist in the environment.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	t.Setenv("OTEL_METRICS_EXPORTER", "")
	t.Setenv("OTEL_SERVICE_NAME", "")
}

// TestNewMeterFromEnv_ConsoleExporter tests console/none exporter
// configuration. Shutdown flushes the periodic reader, so console output can
// be asserted deterministically without waiting for the export interval.
func TestNewMeterFromEnv_ConsoleExporter(t *testing.T) {
	tests := []struct {
		name              string
		env               map[string]string
		expectConsole     bool
		expectServiceName string
	}{
		{
			name: "console exporter outputs to stdout",
			env: map[string]string{
				"OTEL_METRICS_EXPORTER": "console",
			},
			expectConsole:     true,
			expectServiceName: "llmtrace",
		},
		{
			name: "console exporter with custom service name",
			env: map[string]string{
				"OTEL_METRICS_EXPORTER": "console",
				"OTEL_SERVICE_NAME":     "my-custom-service",
			},
			expectConsole:     true,
			expectServiceName: "my-custom-service",
		},
		{
			name: "no console output with prometheus exporter",
			env: map[string]string{
				"OTEL_METRICS_EXPORTER": "prometheus",
			},
		},
		{
			name: "no console output when exporter is none",
			env: map[string]string{
				"OTEL_METRICS_EXPORTER": "none",
			},
		},
		{
			name: "no console output when SDK disabled",
			env: map[string]string{
				"OTEL_SDK_DISABLED":     "true",
				"OTEL_METRICS_EXPORTER": "console",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			var stdout bytes.Buffer
			manualReader := sdkmetric.NewManualReader()

			meter, shutdown, err := NewMeterFromEnv(t.Context(), &stdout, manualReader)
			require.NoError(t, err)
			require.NotNil(t, meter)
			require.NotNil(t, shutdown)

			counter, err := meter.Int64Counter("test.console.metric",
				metric.WithDescription("A test metric"),
				metric.WithUnit("1"))
			require.NoError(t, err)
			counter.Add(t.Context(), 42)

			// The provided reader collects regardless of the env config.
			var rm metricdata.ResourceMetrics
			require.NoError(t, manualReader.Collect(t.Context(), &rm))
			require.NotEmpty(t, rm.ScopeMetrics)

			require.NoError(t, shutdown(context.Background()))

			output := stdout.String()
			if tt.expectConsole {
				require.Contains(t, output, "test.console.metric")
				require.Contains(t, output, "42")
				require.Contains(t, output, tt.expectServiceName)
			} else {
				require.Empty(t, output, "no console output expected")
			}
		})
	}
}

func TestNewMeterFromEnv_PrometheusReaderAlwaysActive(t *testing.T) {
	clearEnv(t)
	t.Setenv("OTEL_SDK_DISABLED", "true")

	manualReader := sdkmetric.NewManualReader()
	meter, shutdown, err := NewMeterFromEnv(t.Context(), nil, manualReader)
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	// Even with the SDK disabled for push exporters, the pull reader works.
	pm := NewChatCompletion(meter)
	pm.StartRequest()
	pm.RecordTokenUsage(t.Context(), 1, 2, 3)

	var rm metricdata.ResourceMetrics
	require.NoError(t, manualReader.Collect(t.Context(), &rm))
	require.NotEmpty(t, rm.ScopeMetrics)
}
