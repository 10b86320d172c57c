// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package llmcost estimates the cost of completed LLM calls from their
// token counters, either via a static price table or a user-supplied CEL
// expression.
package llmcost

import (
	"fmt"

	"github.com/google/cel-go/cel"

	tracing "github.com/llmtrace/llmtrace/tracing/api"
)

const (
	celModelKey             = "model"
	celBackendKey           = "backend"
	celInputTokensKey       = "input_tokens"
	celCachedInputTokensKey = "cached_input_tokens"
	celOutputTokensKey      = "output_tokens"
	celTotalTokensKey       = "total_tokens"
)

// NewProgram compiles a CEL expression over the variables model, backend,
// input_tokens, cached_input_tokens, output_tokens and total_tokens. The
// program is evaluated once with dummy values so that trivially broken
// expressions fail here rather than on the first real request.
func NewProgram(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable(celModelKey, cel.StringType),
		cel.Variable(celBackendKey, cel.StringType),
		cel.Variable(celInputTokensKey, cel.UintType),
		cel.Variable(celCachedInputTokensKey, cel.UintType),
		cel.Variable(celOutputTokensKey, cel.UintType),
		cel.Variable(celTotalTokensKey, cel.UintType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", iss.Err())
	}

	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	if _, err := EvaluateProgram(prog, "dummy_model", "dummy_backend", 1, 1, 1, 1); err != nil {
		return nil, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}
	return prog, nil
}

// EvaluateProgram evaluates a compiled cost program for one completed call.
// The result is a non-negative cost in the unit the expression encodes.
// Programs are safe for concurrent evaluation.
func EvaluateProgram(prog cel.Program, model, backend string, inputTokens, cachedInputTokens, outputTokens, totalTokens uint32) (uint64, error) {
	out, _, err := prog.Eval(map[string]any{
		celModelKey:             model,
		celBackendKey:           backend,
		celInputTokensKey:       uint64(inputTokens),
		celCachedInputTokensKey: uint64(cachedInputTokens),
		celOutputTokensKey:      uint64(outputTokens),
		celTotalTokensKey:       uint64(totalTokens),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	switch v := out.Value().(type) {
	case uint64:
		return v, nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("CEL expression result is negative (%d)", v)
		}
		return uint64(v), nil
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("CEL expression result is negative (%f)", v)
		}
		return uint64(v), nil
	default:
		return 0, fmt.Errorf("CEL expression result is not a number: %v", out.Value())
	}
}

// CELEstimator adapts a compiled cost program to the CostEstimator contract.
// The program's numeric result is scaled by USDPerUnit, allowing expressions
// that count micro-cents or arbitrary budget units.
type CELEstimator struct {
	prog       cel.Program
	usdPerUnit float64
}

var _ tracing.CostEstimator = (*CELEstimator)(nil)

// NewCELEstimator returns an estimator over a compiled program.
func NewCELEstimator(prog cel.Program, usdPerUnit float64) *CELEstimator {
	return &CELEstimator{prog: prog, usdPerUnit: usdPerUnit}
}

// EstimateUSD implements [tracing.CostEstimator.EstimateUSD]. Evaluation
// failures read as "no price known"; cost estimation must never fail an
// instrumented call.
func (e *CELEstimator) EstimateUSD(system, model string, usage tracing.Usage) (float64, bool) {
	v, err := EvaluateProgram(e.prog, model, system, usage.InputTokens, usage.CachedInputTokens, usage.OutputTokens, usage.TotalTokens)
	if err != nil {
		return 0, false
	}
	return float64(v) * e.usdPerUnit, true
}
