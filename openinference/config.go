// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package openinference

import (
	"os"
	"strconv"
)

// Environment variable names for trace configuration following Python
// OpenInference conventions. These control the privacy settings for
// OpenInference tracing.
// See: https://github.com/Arize-ai/openinference/blob/main/spec/configuration.md
const (
	// EnvHideLLMInvocationParameters is the environment variable for TraceConfig.HideLLMInvocationParameters.
	EnvHideLLMInvocationParameters = "OPENINFERENCE_HIDE_LLM_INVOCATION_PARAMETERS"
	// EnvHideInputs is the environment variable for TraceConfig.HideInputs.
	EnvHideInputs = "OPENINFERENCE_HIDE_INPUTS"
	// EnvHideOutputs is the environment variable for TraceConfig.HideOutputs.
	EnvHideOutputs = "OPENINFERENCE_HIDE_OUTPUTS"
	// EnvHideInputMessages is the environment variable for TraceConfig.HideInputMessages.
	EnvHideInputMessages = "OPENINFERENCE_HIDE_INPUT_MESSAGES"
	// EnvHideOutputMessages is the environment variable for TraceConfig.HideOutputMessages.
	EnvHideOutputMessages = "OPENINFERENCE_HIDE_OUTPUT_MESSAGES"
)

// TraceConfig helps you modify the observability level of your tracing.
// For instance, you may want to keep sensitive information from being logged
// for security reasons, or you may want to limit the size of the base64
// encoded images to reduce payloads.
type TraceConfig struct {
	// HideLLMInvocationParameters hides the llm.invocation_parameters attribute.
	HideLLMInvocationParameters bool
	// HideInputs hides the input.value attribute and all input messages.
	HideInputs bool
	// HideOutputs hides the output.value attribute and all output messages.
	HideOutputs bool
	// HideInputMessages hides all input messages.
	HideInputMessages bool
	// HideOutputMessages hides all output messages.
	HideOutputMessages bool
}

// NewTraceConfig returns a TraceConfig with default values.
func NewTraceConfig() *TraceConfig {
	return &TraceConfig{}
}

// NewTraceConfigFromEnv reads the OPENINFERENCE_* environment variables,
// using defaults for any that are unset or unparseable.
func NewTraceConfigFromEnv() *TraceConfig {
	return &TraceConfig{
		HideLLMInvocationParameters: boolFromEnv(EnvHideLLMInvocationParameters, false),
		HideInputs:                  boolFromEnv(EnvHideInputs, false),
		HideOutputs:                 boolFromEnv(EnvHideOutputs, false),
		HideInputMessages:           boolFromEnv(EnvHideInputMessages, false),
		HideOutputMessages:          boolFromEnv(EnvHideOutputMessages, false),
	}
}

func boolFromEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
