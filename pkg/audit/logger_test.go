package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archscribe/archscribe/pkg/models"
)

func tempCfg(t *testing.T) models.AuditConfig {
	t.Helper()
	return models.AuditConfig{
		Enabled:       true,
		DBPath:        filepath.Join(t.TempDir(), "audit_test.db"),
		RetentionDays: 30,
		MaxBodySize:   1024,
	}
}

func mustNew(t *testing.T, cfg models.AuditConfig) *Logger {
	t.Helper()
	l, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func sampleEntry() models.AuditEntry {
	return models.AuditEntry{
		RequestID:      "req-001",
		PromptKey:      "requirements.analyze",
		Model:          "deepseek-coder-v2:latest",
		Endpoint:       "http://localhost:11434",
		Prompt:         "Extract the to-be requirements.",
		Response:       `[{"title":"QR","description":"d","functional":true}]`,
		StatusCode:     200,
		PromptTokens:   8,
		ResponseTokens: 20,
		LatencyMs:      1500,
		CreatedAt:      time.Now(),
	}
}

func TestLogAndQuery(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	require.NoError(t, l.Log(ctx, sampleEntry()))

	entries, err := l.Query(ctx, models.AuditQueryOpts{PromptKey: "requirements.analyze"})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, "req-001", got.RequestID)
	assert.Equal(t, "Extract the to-be requirements.", got.Prompt)
	assert.Equal(t, 200, got.StatusCode)
	assert.Equal(t, int64(1500), got.LatencyMs)
	assert.True(t, got.Succeeded())
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)
}

func TestQueryFilters(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	ok := sampleEntry()
	failed := sampleEntry()
	failed.RequestID = "req-002"
	failed.PromptKey = "diagram.c4.container"
	failed.Response = ""
	failed.FailureReason = "unexpected status 500: model not loaded"
	failed.StatusCode = 500
	old := sampleEntry()
	old.RequestID = "req-003"
	old.CreatedAt = time.Now().Add(-72 * time.Hour)

	for _, e := range []models.AuditEntry{ok, failed, old} {
		require.NoError(t, l.Log(ctx, e))
	}

	byID, err := l.Query(ctx, models.AuditQueryOpts{RequestID: "req-002"})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.False(t, byID[0].Succeeded())

	onlyFailed, err := l.Query(ctx, models.AuditQueryOpts{Failed: true})
	require.NoError(t, err)
	require.Len(t, onlyFailed, 1)
	assert.Equal(t, "req-002", onlyFailed[0].RequestID)

	recent, err := l.Query(ctx, models.AuditQueryOpts{Since: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := l.Query(ctx, models.AuditQueryOpts{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := l.Query(ctx, models.AuditQueryOpts{Model: "gpt-4"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMaxBodySize(t *testing.T) {
	cfg := tempCfg(t)
	cfg.MaxBodySize = 10
	l := mustNew(t, cfg)
	ctx := context.Background()

	e := sampleEntry()
	e.Prompt = strings.Repeat("p", 100)
	e.Response = strings.Repeat("r", 100)
	require.NoError(t, l.Log(ctx, e))

	entries, err := l.Query(ctx, models.AuditQueryOpts{RequestID: e.RequestID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].Prompt, 10)
	assert.Len(t, entries[0].Response, 10)
}

func TestMaxBodySizeKeepsRunesWhole(t *testing.T) {
	cfg := tempCfg(t)
	cfg.MaxBodySize = 11
	l := mustNew(t, cfg)
	ctx := context.Background()

	e := sampleEntry()
	e.Prompt = "Ανάλυση απαιτήσεων"
	e.Response = "ok"
	require.NoError(t, l.Log(ctx, e))

	entries, err := l.Query(ctx, models.AuditQueryOpts{RequestID: e.RequestID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, utf8.ValidString(entries[0].Prompt))
	assert.Equal(t, "Ανάλυ", entries[0].Prompt)
	assert.Equal(t, "ok", entries[0].Response)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"abcdef", 0, "abcdef"},
		{"abcdef", 3, "abc"},
		{"abc", 10, "abc"},
		{"αβγ", 3, "α"},
		{"αβγ", 4, "αβ"},
		{"αβγ", 1, ""},
		{"a€b", 3, "a"},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.max)
		assert.Equalf(t, tt.want, got, "truncate(%q, %d)", tt.in, tt.max)
		assert.Truef(t, utf8.ValidString(got), "truncate(%q, %d)", tt.in, tt.max)
	}
}

func TestStats(t *testing.T) {
	l := mustNew(t, tempCfg(t))
	ctx := context.Background()

	for i, reason := range []string{"", "", "transport error"} {
		e := sampleEntry()
		e.RequestID = "req-" + string(rune('a'+i))
		e.FailureReason = reason
		require.NoError(t, l.Log(ctx, e))
	}

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "requirements.analyze", stats[0].PromptKey)
	assert.Equal(t, time.Now().UTC().Format(time.DateOnly), stats[0].Day)
	assert.Equal(t, 3, stats[0].Count)
	assert.Equal(t, 1, stats[0].Failures)
}

func TestCleanup(t *testing.T) {
	cfg := tempCfg(t)
	cfg.RetentionDays = 1
	l := mustNew(t, cfg)
	ctx := context.Background()

	old := sampleEntry()
	old.RequestID = "old"
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, l.Log(ctx, old))
	require.NoError(t, l.Log(ctx, sampleEntry()))

	n, err := l.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := l.Query(ctx, models.AuditQueryOpts{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "req-001", left[0].RequestID)
}

func TestCleanupDisabled(t *testing.T) {
	cfg := tempCfg(t)
	cfg.RetentionDays = 0
	l := mustNew(t, cfg)

	n, err := l.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNilLoggerDiscards(t *testing.T) {
	var l *Logger
	assert.NoError(t, l.Log(context.Background(), sampleEntry()))
}
