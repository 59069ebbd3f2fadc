// Package pricing maps model names to per-1K token rates.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/archscribe/archscribe/pkg/models"
)

var thousand = decimal.NewFromInt(1000)

// DefaultRate applies to models missing from a profile.
var DefaultRate = decimal.RequireFromString("0.002")

// Builtin is the rate table used when the config does not provide one.
var Builtin = []models.ModelPricing{
	{Model: "gpt-3.5-turbo", CostPer1K: 0.0015},
	{Model: "gpt-4", CostPer1K: 0.03},
	{Model: "gpt-4-turbo", CostPer1K: 0.01},
	{Model: "deepseek-coder", CostPer1K: 0.002},
}

// Profile is a read-only rate table. It is safe for concurrent use.
type Profile struct {
	rates map[string]decimal.Decimal
	def   decimal.Decimal
}

// New creates a Profile. The map is copied.
func New(rates map[string]decimal.Decimal, def decimal.Decimal) *Profile {
	m := make(map[string]decimal.Decimal, len(rates))
	for k, v := range rates {
		m[k] = v
	}
	return &Profile{rates: m, def: def}
}

// FromConfig builds a Profile from configured model prices. A non-positive
// defaultRate falls back to DefaultRate.
func FromConfig(prices []models.ModelPricing, defaultRate float64) *Profile {
	m := make(map[string]decimal.Decimal, len(prices))
	for _, p := range prices {
		m[p.Model] = decimal.NewFromFloat(p.CostPer1K)
	}
	def := DefaultRate
	if defaultRate > 0 {
		def = decimal.NewFromFloat(defaultRate)
	}
	return New(m, def)
}

// Rate returns the cost per 1K tokens for model.
func (p *Profile) Rate(model string) decimal.Decimal {
	if r, ok := p.rates[model]; ok {
		return r
	}
	return p.def
}

// Known reports whether model has an explicit rate.
func (p *Profile) Known(model string) bool {
	_, ok := p.rates[model]
	return ok
}

// Cost prices promptTokens at the model's rate. Response tokens are not
// priced.
func (p *Profile) Cost(promptTokens int, model string) decimal.Decimal {
	if promptTokens <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(promptTokens)).Div(thousand).Mul(p.Rate(model))
}
