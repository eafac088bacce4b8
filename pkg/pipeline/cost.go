package pipeline

import (
	"github.com/draftforge/draftforge/pkg/adapter"
	"github.com/draftforge/draftforge/pkg/config"
)

// RunCost aggregates estimated spend across all provider calls in a run.
type RunCost struct {
	Currency    string
	TotalAmount float64
	TotalUsage  adapter.Usage
}

// costTracker prices successful provider calls against the pipeline's
// pricing table and accumulates run totals. Calls whose provider or
// model has no pricing entry contribute usage but no amount.
type costTracker struct {
	pricing     config.PricingConfig
	totalUsage  adapter.Usage
	totalAmount float64
}

func newCostTracker(pricing config.PricingConfig) *costTracker {
	return &costTracker{pricing: pricing}
}

// priceReports fills in Cost on each successful report and folds the
// call into the run totals. Failed calls report no usage to price.
func (t *costTracker) priceReports(reports []adapter.CallReport) {
	for i := range reports {
		if reports[i].Error != "" {
			continue
		}
		if cost, ok := estimateCost(t.pricing, reports[i].Provider, reports[i].Model, reports[i].Usage); ok {
			reports[i].Cost = cost
			t.totalAmount += cost.Amount
		}
		t.totalUsage = addUsage(t.totalUsage, reports[i].Usage)
	}
}

func (t *costTracker) total() RunCost {
	return RunCost{
		Currency:    "USD",
		TotalAmount: t.totalAmount,
		TotalUsage:  t.totalUsage,
	}
}

func estimateCost(pricing config.PricingConfig, provider, model string, usage adapter.Usage) (adapter.Cost, bool) {
	entry, ok := pricing.For(provider, model)
	if !ok {
		return adapter.Cost{Currency: "USD"}, false
	}

	promptCost := (float64(usage.PromptTokens) / 1000.0) * entry.PromptPer1K
	completionCost := (float64(usage.CompletionTokens) / 1000.0) * entry.CompletionPer1K
	return adapter.Cost{
		Currency:     "USD",
		Amount:       promptCost + completionCost,
		IsEstimate:   true,
		PricingModel: "per_1k_tokens",
	}, true
}

func addUsage(a adapter.Usage, b adapter.Usage) adapter.Usage {
	return adapter.Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}
