package tracker

import (
	"context"
	"fmt"
	"sync"

	"github.com/archscribe/archscribe/pkg/models"
)

// Header is the fixed column order of the ledger.
var Header = []string{
	"timestamp", "prompt_key", "model", "prompt_tokens",
	"response_tokens", "total_tokens", "cost_estimate",
}

// Sink is the durable ledger backing a Recorder. Rows are append-only and
// returned in the order they were appended. Sinks do not coordinate
// concurrent writers.
type Sink interface {
	// Append writes one row, creating the ledger on first use.
	Append(ctx context.Context, rec models.UsageRecord) error
	// Records returns every row. A ledger that does not exist yet has no rows.
	Records(ctx context.Context) ([]models.UsageRecord, error)
	// Location describes where rows are stored, for logs.
	Location() string
	// Close releases resources.
	Close() error
}

// Ledger backends accepted by OpenSink.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// OpenSink opens the ledger for backend at path.
func OpenSink(backend, path string) (Sink, error) {
	switch backend {
	case BackendCSV, "":
		return NewCSVSink(path), nil
	case BackendSQLite:
		return NewSQLiteSink(path)
	case BackendMemory:
		return NewMemorySink(), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", backend)
	}
}

// MemorySink keeps rows in a slice. It is safe for concurrent use.
type MemorySink struct {
	mu   sync.Mutex
	rows []models.UsageRecord
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Append(_ context.Context, rec models.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rec)
	return nil
}

func (m *MemorySink) Records(_ context.Context) ([]models.UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.UsageRecord, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

// Len returns the number of appended rows.
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *MemorySink) Location() string { return "memory" }

func (m *MemorySink) Close() error { return nil }
