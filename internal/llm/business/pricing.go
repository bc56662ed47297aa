// Package business carries the cost side of the invocation core: usage
// normalization across provider formats and a pricing registry that turns
// normalized usage into an estimated cost.
package business

import (
	"fmt"
	"sync"

	"github.com/mkarasu/go-pacer/internal/llm/configuration"
	"github.com/mkarasu/go-pacer/internal/llm/errors"
	"github.com/mkarasu/go-pacer/internal/llm/transport"
)

// Cost units: milli-cents (1/1000 of a cent) per 1000 tokens. Integer math
// end to end; conversion to dollars happens only at reporting boundaries.
const (
	TokensPerPriceUnit  = 1000
	MilliCentsPerDollar = 100_000
	MilliCentsPerCent   = 1000

	// OpenAI pricing.
	GPT4oPromptCost     = 250
	GPT4oOutputCost     = 1000
	GPT4oMiniPromptCost = 15
	GPT4oMiniOutputCost = 60
	O1PreviewPromptCost = 1500
	O1PreviewOutputCost = 6000
	O1MiniPromptCost    = 300
	O1MiniOutputCost    = 1200

	// Anthropic pricing.
	Claude35SonnetPromptCost = 300
	Claude35SonnetOutputCost = 1500
	Claude35HaikuPromptCost  = 80
	Claude35HaikuOutputCost  = 400

	// Google pricing.
	Gemini15ProPromptCost   = 125
	Gemini15ProOutputCost   = 500
	Gemini15FlashPromptCost = 8
	Gemini15FlashOutputCost = 30
)

// PricingRegistry estimates invocation cost from normalized usage.
type PricingRegistry interface {
	// Cost returns the estimated cost in milli-cents for the given usage.
	// Unknown provider/model pairs cost zero in fail-open mode and return a
	// *errors.PricingError in fail-closed mode.
	Cost(provider, model string, usage transport.NormalizedUsage) (int64, error)

	// IsAvailable reports whether pricing data exists for the pair.
	IsAvailable(provider, model string) bool
}

// PricingEntry holds the per-token rates for one provider/model pair.
type PricingEntry struct {
	Provider          string `json:"provider"`
	Model             string `json:"model"`
	PromptCostPer1000 int64  `json:"prompt_cost_per_1000"` // milli-cents per 1000 prompt tokens
	OutputCostPer1000 int64  `json:"output_cost_per_1000"` // milli-cents per 1000 completion tokens
}

func pricingKey(provider, model string) string {
	return provider + "/" + model
}

// InMemoryPricingRegistry is a mutable in-process registry seeded with
// current published rates. Safe for concurrent use.
type InMemoryPricingRegistry struct {
	failClosed bool

	mu      sync.RWMutex
	entries map[string]PricingEntry
}

// NewInMemoryPricingRegistry seeds a registry with the built-in rate table.
func NewInMemoryPricingRegistry(cfg configuration.PricingConfig) *InMemoryPricingRegistry {
	r := &InMemoryPricingRegistry{
		failClosed: cfg.FailClosed,
		entries:    make(map[string]PricingEntry),
	}
	for _, e := range defaultPricing() {
		r.entries[pricingKey(e.Provider, e.Model)] = e
	}
	return r
}

func defaultPricing() []PricingEntry {
	return []PricingEntry{
		{Provider: "openai", Model: "gpt-4o", PromptCostPer1000: GPT4oPromptCost, OutputCostPer1000: GPT4oOutputCost},
		{Provider: "openai", Model: "gpt-4o-mini", PromptCostPer1000: GPT4oMiniPromptCost, OutputCostPer1000: GPT4oMiniOutputCost},
		{Provider: "openai", Model: "o1-preview", PromptCostPer1000: O1PreviewPromptCost, OutputCostPer1000: O1PreviewOutputCost},
		{Provider: "openai", Model: "o1-mini", PromptCostPer1000: O1MiniPromptCost, OutputCostPer1000: O1MiniOutputCost},
		{Provider: "anthropic", Model: "claude-3-5-sonnet", PromptCostPer1000: Claude35SonnetPromptCost, OutputCostPer1000: Claude35SonnetOutputCost},
		{Provider: "anthropic", Model: "claude-3-5-haiku", PromptCostPer1000: Claude35HaikuPromptCost, OutputCostPer1000: Claude35HaikuOutputCost},
		{Provider: "google", Model: "gemini-1.5-pro", PromptCostPer1000: Gemini15ProPromptCost, OutputCostPer1000: Gemini15ProOutputCost},
		{Provider: "google", Model: "gemini-1.5-flash", PromptCostPer1000: Gemini15FlashPromptCost, OutputCostPer1000: Gemini15FlashOutputCost},
	}
}

// Cost implements PricingRegistry.
func (r *InMemoryPricingRegistry) Cost(provider, model string, usage transport.NormalizedUsage) (int64, error) {
	r.mu.RLock()
	entry, ok := r.entries[pricingKey(provider, model)]
	r.mu.RUnlock()

	if !ok {
		if r.failClosed {
			return 0, &errors.PricingError{
				Provider: provider,
				Model:    model,
				Reason:   "no pricing data",
			}
		}
		return 0, nil
	}

	prompt := usage.PromptTokens * entry.PromptCostPer1000 / TokensPerPriceUnit
	output := usage.CompletionTokens * entry.OutputCostPer1000 / TokensPerPriceUnit
	return prompt + output, nil
}

// IsAvailable implements PricingRegistry.
func (r *InMemoryPricingRegistry) IsAvailable(provider, model string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[pricingKey(provider, model)]
	return ok
}

// Upsert installs or replaces the rates for one provider/model pair,
// taking effect for subsequent Cost calls.
func (r *InMemoryPricingRegistry) Upsert(entry PricingEntry) error {
	if entry.Provider == "" || entry.Model == "" {
		return fmt.Errorf("pricing entry requires provider and model, got %q/%q", entry.Provider, entry.Model)
	}
	if entry.PromptCostPer1000 < 0 || entry.OutputCostPer1000 < 0 {
		return fmt.Errorf("pricing rates cannot be negative for %s/%s", entry.Provider, entry.Model)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[pricingKey(entry.Provider, entry.Model)] = entry
	return nil
}
