// Package tracker records per-prompt usage in an append-only ledger and
// summarizes it by prompt key.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/archscribe/archscribe/pkg/budget"
	"github.com/archscribe/archscribe/pkg/models"
	"github.com/archscribe/archscribe/pkg/pricing"
)

// Recorder appends usage rows to a Sink.
type Recorder struct {
	sink    Sink
	pricing *pricing.Profile
	logger  *slog.Logger
	now     func() time.Time
}

// NewRecorder creates a Recorder writing to sink and pricing rows with p.
func NewRecorder(sink Sink, p *pricing.Profile, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if p == nil {
		p = pricing.FromConfig(pricing.Builtin, 0)
	}
	return &Recorder{
		sink:    sink,
		pricing: p,
		logger:  logger,
		now:     time.Now,
	}
}

// Record appends one row for a dispatch attempt. responseTokens is the
// measured reply size; nil falls back to the estimated share of the prompt.
func (r *Recorder) Record(ctx context.Context, promptKey, model string, promptTokens int, responseTokens *int) error {
	resp := budget.ExpectedResponseTokens(promptTokens)
	if responseTokens != nil {
		resp = *responseTokens
	}

	rec := models.UsageRecord{
		Timestamp:      r.now(),
		PromptKey:      promptKey,
		Model:          model,
		PromptTokens:   promptTokens,
		ResponseTokens: resp,
		TotalTokens:    promptTokens + resp,
		CostEstimate:   r.pricing.Cost(promptTokens, model).Round(4),
	}
	if err := r.sink.Append(ctx, rec); err != nil {
		return fmt.Errorf("append usage: %w", err)
	}

	r.logger.Info("prompt analytics logged", "ledger", r.sink.Location(), "prompt_key", promptKey)
	return nil
}

// Summarize groups the ledger by prompt key. It only reads.
func (r *Recorder) Summarize(ctx context.Context) (map[string]models.PromptSummary, error) {
	records, err := r.sink.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	summary := make(map[string]models.PromptSummary)
	for _, rec := range records {
		s := summary[rec.PromptKey]
		s.PromptKey = rec.PromptKey
		s.Runs++
		s.TotalPromptTokens += int64(rec.PromptTokens)
		s.TotalResponseTokens += int64(rec.ResponseTokens)
		s.TotalCost = s.TotalCost.Add(rec.CostEstimate)
		summary[rec.PromptKey] = s
	}
	return summary, nil
}

// SortedSummaries returns the summaries ordered by prompt key.
func SortedSummaries(m map[string]models.PromptSummary) []models.PromptSummary {
	out := make([]models.PromptSummary, 0, len(m))
	for _, s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PromptKey < out[j].PromptKey })
	return out
}

// Sink returns the underlying ledger.
func (r *Recorder) Sink() Sink { return r.sink }
