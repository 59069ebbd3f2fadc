package models

import "time"

// AuditEntry is the transcript of a single dispatch: the prompt sent and
// whatever came back.
type AuditEntry struct {
	RequestID      string    `json:"request_id"`
	PromptKey      string    `json:"prompt_key"`
	Model          string    `json:"model"`
	Endpoint       string    `json:"endpoint"`
	Prompt         string    `json:"prompt,omitempty"`
	Response       string    `json:"response,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	StatusCode     int       `json:"status_code"`
	PromptTokens   int       `json:"prompt_tokens"`
	ResponseTokens int       `json:"response_tokens"`
	LatencyMs      int64     `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// Succeeded reports whether the dispatch produced text.
func (e AuditEntry) Succeeded() bool {
	return e.FailureReason == ""
}

// AuditConfig controls the transcript store.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxBodySize   int    `yaml:"max_body_size"` // bytes
}

// AuditQueryOpts specifies filters for querying transcript entries.
type AuditQueryOpts struct {
	PromptKey string
	Model     string
	Since     time.Time
	RequestID string
	Failed    bool
	Limit     int
}

// AuditStat holds aggregate transcript counts for a prompt key/day combination.
type AuditStat struct {
	PromptKey string
	Day       string
	Count     int
	Failures  int
}
