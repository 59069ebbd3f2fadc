// Package dispatch sends prompts to a local Ollama generation endpoint.
//
// Send makes exactly one attempt. Transport failures come back as a
// Failure result, never as an error, and a usage row is recorded whether or
// not generation succeeded.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/archscribe/archscribe/pkg/httpclient"
	"github.com/archscribe/archscribe/pkg/models"
)

// GeneratePath is appended to the endpoint base URL.
const GeneratePath = "/api/generate"

// Checker estimates a prompt against a context window.
type Checker interface {
	Check(text, model string, contextLimit int) models.TokenStats
}

// UsageRecorder appends a usage row for a dispatch attempt.
type UsageRecorder interface {
	Record(ctx context.Context, promptKey, model string, promptTokens int, responseTokens *int) error
}

// Auditor stores the prompt/response transcript of a dispatch.
type Auditor interface {
	Log(ctx context.Context, entry models.AuditEntry) error
}

// Config holds the process-wide endpoint settings.
type Config struct {
	BaseURL string
	Model   string
	// PricingModel names the rate used for estimates and ledger rows.
	// Empty means Model.
	PricingModel string
	ContextLimit int
	// MeasureResponseTokens records the endpoint's eval_count instead of the
	// estimated response size.
	MeasureResponseTokens bool
}

// Request is one prompt to send. Empty Model and BaseURL use the Config
// defaults.
type Request struct {
	Prompt    string
	PromptKey string
	Model     string
	BaseURL   string
}

// Dispatcher sends prompts and records their usage.
type Dispatcher struct {
	cfg       Config
	client    *http.Client
	estimator Checker
	recorder  UsageRecorder
	auditor   Auditor
	logger    *slog.Logger
}

// New creates a Dispatcher. A nil client gets the long-timeout default.
func New(cfg Config, client *http.Client, estimator Checker, recorder UsageRecorder, logger *slog.Logger) *Dispatcher {
	if client == nil {
		client = httpclient.NewHTTPClient(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg:       cfg,
		client:    client,
		estimator: estimator,
		recorder:  recorder,
		logger:    logger,
	}
}

// WithAuditor enables transcript logging.
func (d *Dispatcher) WithAuditor(a Auditor) *Dispatcher {
	d.auditor = a
	return d
}

// Send estimates the prompt, posts it once, records usage and returns the
// outcome. It never returns an error.
func (d *Dispatcher) Send(ctx context.Context, req Request) Result {
	model := req.Model
	if model == "" {
		model = d.cfg.Model
	}
	baseURL := req.BaseURL
	if baseURL == "" {
		baseURL = d.cfg.BaseURL
	}
	pricingModel := d.cfg.PricingModel
	if req.Model != "" || pricingModel == "" {
		pricingModel = model
	}

	stats := d.estimator.Check(req.Prompt, pricingModel, d.cfg.ContextLimit)

	start := time.Now()
	result, status := d.post(ctx, baseURL, model, req.Prompt)
	latency := time.Since(start)

	var measured *int
	switch r := result.(type) {
	case Text:
		d.logger.Debug("prompt to LLM", "prompt_key", req.PromptKey, "prompt", req.Prompt)
		d.logger.Debug("LLM response", "prompt_key", req.PromptKey, "response", r.Content)
		if d.cfg.MeasureResponseTokens && r.EvalCount > 0 {
			n := r.EvalCount
			measured = &n
		}
	case Failure:
		d.logger.Error("error calling generation endpoint",
			"prompt_key", req.PromptKey,
			"endpoint", baseURL,
			"reason", r.String(),
		)
	}

	// Usage is recorded for failed attempts too, and survives caller cancellation.
	recordCtx := context.WithoutCancel(ctx)
	if d.recorder != nil {
		if err := d.recorder.Record(recordCtx, req.PromptKey, pricingModel, stats.PromptTokens, measured); err != nil {
			d.logger.Error("failed to record usage", "prompt_key", req.PromptKey, "error", err)
		}
	}

	if d.auditor != nil {
		entry := models.AuditEntry{
			RequestID:    uuid.NewString(),
			PromptKey:    req.PromptKey,
			Model:        model,
			Endpoint:     baseURL,
			Prompt:       req.Prompt,
			StatusCode:   status,
			PromptTokens: stats.PromptTokens,
			LatencyMs:    latency.Milliseconds(),
			CreatedAt:    time.Now().UTC(),
		}
		switch r := result.(type) {
		case Text:
			entry.Response = r.Content
			entry.ResponseTokens = r.EvalCount
		case Failure:
			entry.FailureReason = r.String()
		}
		if err := d.auditor.Log(recordCtx, entry); err != nil {
			d.logger.Error("audit log error", "error", err)
		}
	}

	return result
}

// post performs the single HTTP attempt and returns the result along with
// the status code (0 when no response arrived).
func (d *Dispatcher) post(ctx context.Context, baseURL, model, prompt string) (Result, int) {
	body, err := json.Marshal(models.GenerateRequest{Model: model, Prompt: prompt, Stream: false})
	if err != nil {
		return Failure{Reason: "encode request", Err: err}, 0
	}

	url := strings.TrimRight(baseURL, "/") + GeneratePath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Failure{Reason: "create request", Err: err}, 0
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return Failure{Reason: "transport error", Err: err}, 0
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Failure{Reason: "read response", StatusCode: resp.StatusCode, Err: err}, resp.StatusCode
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		reason := fmt.Sprintf("unexpected status %d", resp.StatusCode)
		if msg := gjson.GetBytes(respBody, "error"); msg.Type == gjson.String {
			reason += ": " + msg.String()
		}
		return Failure{Reason: reason, StatusCode: resp.StatusCode}, resp.StatusCode
	}

	return parseEnvelope(respBody, resp.StatusCode), resp.StatusCode
}

func parseEnvelope(body []byte, status int) Result {
	if !gjson.ValidBytes(body) {
		return Failure{Reason: "malformed response body", StatusCode: status}
	}
	field := gjson.GetBytes(body, "response")
	if field.Type != gjson.String {
		return Failure{Reason: "response field missing", StatusCode: status}
	}
	return Text{
		Content:   strings.TrimSpace(field.String()),
		EvalCount: int(gjson.GetBytes(body, "eval_count").Int()),
	}
}
