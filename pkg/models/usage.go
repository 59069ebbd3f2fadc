package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenStats is a per-prompt budget estimate. It is never persisted.
type TokenStats struct {
	PromptTokens           int             `json:"prompt_tokens"`
	ExpectedResponseTokens int             `json:"expected_response_tokens"`
	TotalTokens            int             `json:"total_tokens"`
	CostEstimate           decimal.Decimal `json:"cost_estimate"`
}

// UsageRecord is one ledger row. Rows are append-only and identified by
// their position in the ledger.
type UsageRecord struct {
	Timestamp      time.Time       `json:"timestamp"`
	PromptKey      string          `json:"prompt_key"`
	Model          string          `json:"model"`
	PromptTokens   int             `json:"prompt_tokens"`
	ResponseTokens int             `json:"response_tokens"`
	TotalTokens    int             `json:"total_tokens"`
	CostEstimate   decimal.Decimal `json:"cost_estimate"`
}

// PromptSummary aggregates ledger rows sharing a prompt key.
type PromptSummary struct {
	PromptKey           string          `json:"prompt_key"`
	Runs                int             `json:"runs"`
	TotalPromptTokens   int64           `json:"total_prompt_tokens"`
	TotalResponseTokens int64           `json:"total_response_tokens"`
	TotalCost           decimal.Decimal `json:"total_cost"`
}
