package tracker

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/archscribe/archscribe/pkg/models"
)

// DefaultCSVPath is the ledger location relative to the working directory.
const DefaultCSVPath = "output/prompt_analytics_log.csv"

const costPrefix = "$"

// CSVSink stores the ledger as a delimited file with a header row.
type CSVSink struct {
	path string
}

// NewCSVSink returns a sink for path. Nothing is created until the first Append.
func NewCSVSink(path string) *CSVSink {
	if path == "" {
		path = DefaultCSVPath
	}
	return &CSVSink{path: path}
}

// Append writes rec, preceded by the header when the file is empty.
func (s *CSVSink) Append(_ context.Context, rec models.UsageRecord) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("write ledger header: %w", err)
		}
	}
	if err := w.Write(encodeRow(rec)); err != nil {
		return fmt.Errorf("write ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}

// Records reads every row after the header.
func (s *CSVSink) Records(_ context.Context) ([]models.UsageRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)

	var records []models.UsageRecord
	line := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read ledger: %w", err)
		}
		if line == 1 && row[0] == Header[0] {
			continue
		}
		rec, err := decodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *CSVSink) Location() string { return s.path }

func (s *CSVSink) Close() error { return nil }

// FormatCost renders a cost with the currency prefix and four decimals.
func FormatCost(d decimal.Decimal) string {
	return costPrefix + d.StringFixed(4)
}

// ParseCost reverses FormatCost. The prefix is optional.
func ParseCost(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(s), costPrefix))
}

func encodeRow(rec models.UsageRecord) []string {
	return []string{
		rec.Timestamp.Format(time.RFC3339Nano),
		rec.PromptKey,
		rec.Model,
		strconv.Itoa(rec.PromptTokens),
		strconv.Itoa(rec.ResponseTokens),
		strconv.Itoa(rec.TotalTokens),
		FormatCost(rec.CostEstimate),
	}
}

func decodeRow(row []string) (models.UsageRecord, error) {
	var rec models.UsageRecord
	var err error

	// Timestamps are informational; an unparsable one is kept as zero.
	rec.Timestamp, _ = time.Parse(time.RFC3339Nano, row[0])
	rec.PromptKey = row[1]
	rec.Model = row[2]
	if rec.PromptTokens, err = strconv.Atoi(row[3]); err != nil {
		return rec, fmt.Errorf("prompt_tokens: %w", err)
	}
	if rec.ResponseTokens, err = strconv.Atoi(row[4]); err != nil {
		return rec, fmt.Errorf("response_tokens: %w", err)
	}
	if rec.TotalTokens, err = strconv.Atoi(row[5]); err != nil {
		return rec, fmt.Errorf("total_tokens: %w", err)
	}
	if rec.CostEstimate, err = ParseCost(row[6]); err != nil {
		return rec, fmt.Errorf("cost_estimate: %w", err)
	}
	return rec, nil
}
