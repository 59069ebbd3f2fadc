// Package audit keeps prompt/response transcripts of dispatches in SQLite.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"github.com/archscribe/archscribe/pkg/models"
)

// DefaultQueryLimit caps Query when opts.Limit is unset.
const DefaultQueryLimit = 100

// Logger writes and queries transcripts in a dedicated SQLite database.
type Logger struct {
	db   *sql.DB
	cfg  models.AuditConfig
	done chan struct{}
	wg   sync.WaitGroup
}

// New opens the audit database, creates the schema and starts the hourly
// retention sweep when RetentionDays is positive.
func New(cfg models.AuditConfig) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	l := &Logger{
		db:   db,
		cfg:  cfg,
		done: make(chan struct{}),
	}

	if cfg.RetentionDays > 0 {
		l.wg.Add(1)
		go l.retentionLoop()
	}

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS transcripts (
		request_id      TEXT PRIMARY KEY,
		prompt_key      TEXT NOT NULL,
		model           TEXT NOT NULL,
		endpoint        TEXT NOT NULL,
		prompt          TEXT,
		response        TEXT,
		failure_reason  TEXT NOT NULL DEFAULT '',
		status_code     INTEGER,
		prompt_tokens   INTEGER,
		response_tokens INTEGER,
		latency_ms      INTEGER,
		created_at      DATETIME NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_transcripts_key ON transcripts(prompt_key)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_transcripts_created ON transcripts(created_at)`)
	return err
}

// Log stores entry, truncating prompt and response to MaxBodySize bytes.
// A nil Logger discards entries.
func (l *Logger) Log(ctx context.Context, entry models.AuditEntry) error {
	if l == nil || l.db == nil {
		return nil
	}

	prompt := truncate(entry.Prompt, l.cfg.MaxBodySize)
	response := truncate(entry.Response, l.cfg.MaxBodySize)

	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO transcripts
		(request_id, prompt_key, model, endpoint, prompt, response, failure_reason,
		 status_code, prompt_tokens, response_tokens, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID, entry.PromptKey, entry.Model, entry.Endpoint,
		prompt, response, entry.FailureReason,
		entry.StatusCode, entry.PromptTokens, entry.ResponseTokens,
		entry.LatencyMs, created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// Query returns transcripts matching opts, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, error) {
	q := `SELECT request_id, prompt_key, model, endpoint, prompt, response, failure_reason,
		status_code, prompt_tokens, response_tokens, latency_ms, created_at
		FROM transcripts WHERE 1=1`
	var args []any

	if opts.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, opts.RequestID)
	}
	if opts.PromptKey != "" {
		q += " AND prompt_key = ?"
		args = append(args, opts.PromptKey)
	}
	if opts.Model != "" {
		q += " AND model = ?"
		args = append(args, opts.Model)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.UTC())
	}
	if opts.Failed {
		q += " AND failure_reason != ''"
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var prompt, response sql.NullString
		if err := rows.Scan(
			&e.RequestID, &e.PromptKey, &e.Model, &e.Endpoint,
			&prompt, &response, &e.FailureReason,
			&e.StatusCode, &e.PromptTokens, &e.ResponseTokens,
			&e.LatencyMs, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		e.Prompt = prompt.String
		e.Response = response.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns transcript and failure counts grouped by prompt key and day.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT prompt_key, date(created_at) AS day, count(*),
		        sum(CASE WHEN failure_reason != '' THEN 1 ELSE 0 END)
		 FROM transcripts GROUP BY prompt_key, day ORDER BY day DESC, prompt_key`)
	if err != nil {
		return nil, fmt.Errorf("transcript stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		var day sql.NullString
		if err := rows.Scan(&s.PromptKey, &day, &s.Count, &s.Failures); err != nil {
			return nil, fmt.Errorf("scan transcript stat: %w", err)
		}
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes transcripts older than the retention period. It is a
// no-op when RetentionDays is not positive.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	if l.cfg.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx, `DELETE FROM transcripts WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("transcript cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}
