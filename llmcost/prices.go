// Copyright LLMTrace Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package llmcost

import (
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	tracing "github.com/llmtrace/llmtrace/tracing/api"
)

// ModelPrice is the USD price per 1000 tokens for one model.
type ModelPrice struct {
	System string `yaml:"system"`
	Model  string `yaml:"model"`
	// InputUSDPer1K is the price of 1000 prompt tokens.
	InputUSDPer1K float64 `yaml:"input_usd_per_1k"`
	// CachedInputUSDPer1K is the price of 1000 cache-read prompt tokens.
	// Zero means cached tokens are billed at the full input price.
	CachedInputUSDPer1K float64 `yaml:"cached_input_usd_per_1k,omitempty"`
	// OutputUSDPer1K is the price of 1000 completion tokens.
	OutputUSDPer1K float64 `yaml:"output_usd_per_1k"`
}

// PriceTable estimates call cost from a per-model price list. Lookups and
// updates may happen concurrently; providers reload prices at runtime.
type PriceTable struct {
	mu     sync.RWMutex
	prices map[string]ModelPrice // key: system:model
}

var _ tracing.CostEstimator = (*PriceTable)(nil)

// NewPriceTable returns an empty table.
func NewPriceTable() *PriceTable {
	return &PriceTable{prices: make(map[string]ModelPrice)}
}

// DefaultPriceTable returns a table preloaded with published list prices
// for common hosted models. The values are a convenience, not a billing
// source of truth; override them for anything that matters.
func DefaultPriceTable() *PriceTable {
	t := NewPriceTable()
	for _, p := range []ModelPrice{
		{System: "openai", Model: "gpt-4o", InputUSDPer1K: 0.0025, CachedInputUSDPer1K: 0.00125, OutputUSDPer1K: 0.01},
		{System: "openai", Model: "gpt-4o-mini", InputUSDPer1K: 0.00015, CachedInputUSDPer1K: 0.000075, OutputUSDPer1K: 0.0006},
		{System: "openai", Model: "gpt-4.1", InputUSDPer1K: 0.002, CachedInputUSDPer1K: 0.0005, OutputUSDPer1K: 0.008},
		{System: "openai", Model: "gpt-4.1-mini", InputUSDPer1K: 0.0004, CachedInputUSDPer1K: 0.0001, OutputUSDPer1K: 0.0016},
		{System: "openai", Model: "gpt-4.1-nano", InputUSDPer1K: 0.0001, CachedInputUSDPer1K: 0.000025, OutputUSDPer1K: 0.0004},
		{System: "openai", Model: "o3", InputUSDPer1K: 0.002, CachedInputUSDPer1K: 0.0005, OutputUSDPer1K: 0.008},
		{System: "anthropic", Model: "claude-sonnet-4-20250514", InputUSDPer1K: 0.003, CachedInputUSDPer1K: 0.0003, OutputUSDPer1K: 0.015},
		{System: "anthropic", Model: "claude-opus-4-20250514", InputUSDPer1K: 0.015, CachedInputUSDPer1K: 0.0015, OutputUSDPer1K: 0.075},
		{System: "anthropic", Model: "claude-3-5-haiku-20241022", InputUSDPer1K: 0.0008, CachedInputUSDPer1K: 0.00008, OutputUSDPer1K: 0.004},
	} {
		t.SetPrice(p)
	}
	return t
}

// SetPrice adds or replaces the price for one model.
func (t *PriceTable) SetPrice(p ModelPrice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prices[p.System+":"+p.Model] = p
}

// LoadYAML merges a YAML price list into the table. The document is a
// sequence of ModelPrice entries.
func (t *PriceTable) LoadYAML(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read price list: %w", err)
	}
	var prices []ModelPrice
	if err := yaml.Unmarshal(data, &prices); err != nil {
		return fmt.Errorf("failed to parse price list: %w", err)
	}
	for _, p := range prices {
		if p.System == "" || p.Model == "" {
			return fmt.Errorf("price entry missing system or model: %+v", p)
		}
		t.SetPrice(p)
	}
	return nil
}

// EstimateUSD implements [tracing.CostEstimator.EstimateUSD].
func (t *PriceTable) EstimateUSD(system, model string, usage tracing.Usage) (float64, bool) {
	t.mu.RLock()
	p, ok := t.prices[system+":"+model]
	t.mu.RUnlock()
	if !ok {
		return 0, false
	}

	billedInput := usage.InputTokens
	var cachedUSD float64
	if cached := usage.CachedInputTokens; cached > 0 && p.CachedInputUSDPer1K > 0 {
		if cached > billedInput {
			cached = billedInput
		}
		billedInput -= cached
		cachedUSD = float64(cached) / 1000 * p.CachedInputUSDPer1K
	}

	usd := float64(billedInput)/1000*p.InputUSDPer1K +
		cachedUSD +
		float64(usage.OutputTokens)/1000*p.OutputUSDPer1K
	return usd, true
}
