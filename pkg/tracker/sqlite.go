package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/archscribe/archscribe/pkg/models"
)

// SQLiteSink stores the ledger in a SQLite table. Row order is rowid order.
type SQLiteSink struct {
	db   *sql.DB
	path string
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	prompt_key TEXT NOT NULL,
	model TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL,
	response_tokens INTEGER NOT NULL,
	total_tokens INTEGER NOT NULL,
	cost_estimate TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_prompt_key ON usage_records(prompt_key);
`

// NewSQLiteSink opens dbPath and runs auto-migration.
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dbPath+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger db: %w", err)
	}

	return &SQLiteSink{db: db, path: dbPath}, nil
}

// Append inserts one ledger row. Cost is stored as decimal text so sums
// stay exact.
func (s *SQLiteSink) Append(ctx context.Context, rec models.UsageRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records (timestamp, prompt_key, model, prompt_tokens, response_tokens, total_tokens, cost_estimate)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.PromptKey, rec.Model, rec.PromptTokens, rec.ResponseTokens, rec.TotalTokens, rec.CostEstimate.String(),
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Records returns all rows in insertion order.
func (s *SQLiteSink) Records(ctx context.Context) ([]models.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, prompt_key, model, prompt_tokens, response_tokens, total_tokens, cost_estimate
		 FROM usage_records ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		var ts time.Time
		var cost string
		if err := rows.Scan(&ts, &r.PromptKey, &r.Model, &r.PromptTokens, &r.ResponseTokens, &r.TotalTokens, &cost); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		r.Timestamp = ts
		if r.CostEstimate, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("parse cost %q: %w", cost, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteSink) Location() string { return s.path }

// Close releases the database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
