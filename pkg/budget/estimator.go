// Package budget estimates prompt token counts and cost against a model's
// context window.
package budget

import (
	"log/slog"

	"github.com/archscribe/archscribe/pkg/models"
	"github.com/archscribe/archscribe/pkg/pricing"
)

// ResponseRatio is the fixed share of prompt tokens assumed for the reply.
const ResponseRatio = 0.5

// ExpectedResponseTokens returns floor(promptTokens * ResponseRatio).
func ExpectedResponseTokens(promptTokens int) int {
	if promptTokens <= 0 {
		return 0
	}
	return promptTokens / 2
}

// Estimator produces TokenStats for prompts. The context-window check is
// advisory: it logs and never blocks.
type Estimator struct {
	tokenizer Tokenizer
	pricing   *pricing.Profile
	logger    *slog.Logger
}

// New creates an Estimator. A nil tokenizer selects DefaultTokenizer; a nil
// logger selects slog.Default().
func New(tok Tokenizer, p *pricing.Profile, logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	if tok == nil {
		var err error
		tok, err = DefaultTokenizer()
		if err != nil {
			logger.Warn("reference tokenizer unavailable, using heuristic counts", "error", err)
		}
	}
	if p == nil {
		p = pricing.FromConfig(pricing.Builtin, 0)
	}
	return &Estimator{tokenizer: tok, pricing: p, logger: logger}
}

// Estimate counts text and prices it for model. Empty text yields zeros.
func (e *Estimator) Estimate(text, model string) models.TokenStats {
	prompt := e.tokenizer.Count(text)
	resp := ExpectedResponseTokens(prompt)
	return models.TokenStats{
		PromptTokens:           prompt,
		ExpectedResponseTokens: resp,
		TotalTokens:            prompt + resp,
		CostEstimate:           e.pricing.Cost(prompt, model),
	}
}

// Check estimates text and logs whether it fits within contextLimit.
func (e *Estimator) Check(text, model string, contextLimit int) models.TokenStats {
	stats := e.Estimate(text, model)
	margin, ok := Fits(stats, contextLimit)
	if !ok {
		e.logger.Warn("estimated tokens exceed context window",
			"total_tokens", stats.TotalTokens,
			"context_limit", contextLimit,
			"overflow", -margin,
		)
	} else {
		e.logger.Info("prompt fits within context window",
			"total_tokens", stats.TotalTokens,
			"margin", margin,
		)
	}
	return stats
}

// Fits returns the remaining margin and whether total tokens stay within limit.
func Fits(stats models.TokenStats, contextLimit int) (margin int, ok bool) {
	margin = contextLimit - stats.TotalTokens
	return margin, stats.TotalTokens <= contextLimit
}

// Pricing exposes the profile the estimator prices with.
func (e *Estimator) Pricing() *pricing.Profile { return e.pricing }

// TokenizerName reports which tokenizer profile produced the counts.
func (e *Estimator) TokenizerName() string { return e.tokenizer.Name() }
