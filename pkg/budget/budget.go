// Package budget folds per-message token usage into the sprint's
// cumulative accounting and decides when the configured budget events
// fire. All functions are pure; the coordinator applies them under the
// state lock and owns the single-fire flags.
package budget

import (
	"strings"

	"github.com/albertnahas/teamclaude/pkg/config"
	"github.com/albertnahas/teamclaude/pkg/models"
)

// Pricing holds per-million-token USD prices for one model family.
type Pricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// Cost returns the estimated USD cost of one usage report.
func (p Pricing) Cost(inputTokens, outputTokens int) float64 {
	return (float64(inputTokens)*p.InputPerMTok + float64(outputTokens)*p.OutputPerMTok) / 1_000_000
}

// DefaultFamily is charged when the configured model matches no known
// family, including the empty string.
const DefaultFamily = "sonnet"

// pricingTable keys are family names; configured models carry full
// vendor strings, so resolution is by substring.
var pricingTable = map[string]Pricing{
	"haiku":  {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	"sonnet": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"opus":   {InputPerMTok: 15.00, OutputPerMTok: 75.00},
}

// FamilyOf resolves a model string to a pricing family by substring
// match, defaulting to sonnet.
func FamilyOf(model string) string {
	model = strings.ToLower(model)
	for family := range pricingTable {
		if strings.Contains(model, family) {
			return family
		}
	}
	return DefaultFamily
}

// PricingFor returns the pricing for a configured model string.
func PricingFor(model string) Pricing {
	return pricingTable[FamilyOf(model)]
}

// Fold accumulates one usage report: totals by input+output, per-agent
// attribution under the inbox recipient, and estimated cost at the
// resolved pricing.
func Fold(u *models.TokenUsage, agent string, inputTokens, outputTokens int, p Pricing) {
	if u.ByAgent == nil {
		u.ByAgent = make(map[string]int)
	}
	tokens := inputTokens + outputTokens
	u.Total += tokens
	u.ByAgent[agent] += tokens
	u.EstimatedCostUSD += p.Cost(inputTokens, outputTokens)
}

// Outcome is the budget event an accumulation triggers.
type Outcome string

const (
	// OutcomeNone fires nothing.
	OutcomeNone Outcome = "none"
	// OutcomeApproaching fires token_budget_approaching once.
	OutcomeApproaching Outcome = "approaching"
	// OutcomeExceeded fires token_budget_exceeded and pauses the sprint.
	OutcomeExceeded Outcome = "exceeded"
)

// Evaluate applies the threshold rules after an accumulation.
// approachingSet and exceededSet are the state's single-fire flags before
// this evaluation: once exceeded fired nothing further fires, and
// approaching fires at most once per sprint.
func Evaluate(usage models.TokenUsage, cfg models.BudgetConfig, approachingSet, exceededSet bool) Outcome {
	if exceededSet || !cfg.Configured() {
		return OutcomeNone
	}
	if reached(usage, cfg, 1.0) {
		return OutcomeExceeded
	}
	if !approachingSet && reached(usage, cfg, 0.8) {
		return OutcomeApproaching
	}
	return OutcomeNone
}

// reached reports whether usage crossed factor × any configured limit.
func reached(usage models.TokenUsage, cfg models.BudgetConfig, factor float64) bool {
	if cfg.TokenLimit > 0 && float64(usage.Total) >= factor*float64(cfg.TokenLimit) {
		return true
	}
	if cfg.USDLimit > 0 && usage.EstimatedCostUSD >= factor*cfg.USDLimit {
		return true
	}
	return false
}

// ConfigFrom maps the .sprint.yml budget keys onto the cached state
// record.
func ConfigFrom(sc config.SprintConfig) models.BudgetConfig {
	return models.BudgetConfig{
		TokenLimit: sc.TokenBudget,
		USDLimit:   sc.TokenBudgetUSD,
	}
}
