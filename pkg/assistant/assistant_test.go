package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archscribe/archscribe/pkg/budget"
	"github.com/archscribe/archscribe/pkg/dispatch"
	"github.com/archscribe/archscribe/pkg/extract"
	"github.com/archscribe/archscribe/pkg/prompts"
	"github.com/archscribe/archscribe/pkg/tracker"
)

type stubSender struct {
	result dispatch.Result
	reqs   []dispatch.Request
}

func (s *stubSender) Send(_ context.Context, req dispatch.Request) dispatch.Result {
	s.reqs = append(s.reqs, req)
	return s.result
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func countingExtractor(calls *int) ExtractFunc {
	return func(raw string) (extract.Payload, error) {
		*calls++
		return extract.Extract(raw)
	}
}

func ollamaServer(t *testing.T, status int, response string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{"response": response, "done": true})
			return
		}
		_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newDispatcher(url string, sink tracker.Sink) *dispatch.Dispatcher {
	logger := quietLogger()
	return dispatch.New(
		dispatch.Config{BaseURL: url, Model: "deepseek-coder-v2:latest", PricingModel: "deepseek-coder", ContextLimit: 160_000},
		http.DefaultClient,
		budget.New(budget.HeuristicTokenizer{}, nil, logger),
		tracker.NewRecorder(sink, nil, logger),
		logger,
	)
}

func TestDispatchFailureSkipsExtraction(t *testing.T) {
	srv := ollamaServer(t, http.StatusInternalServerError, "")
	sink := tracker.NewMemorySink()

	calls := 0
	svc := New(newDispatcher(srv.URL, sink), quietLogger(), WithExtractor(countingExtractor(&calls)))

	p, err := svc.GenerateStructured(context.Background(), "list the requirements", "requirements.analyze")
	assert.Nil(t, p)
	assert.NoError(t, err)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, sink.Len())
}

func TestGenerateStructuredEndToEnd(t *testing.T) {
	srv := ollamaServer(t, http.StatusOK, "Here you go:\n```json\n[{\"title\":\"QR\",\"description\":\"d\",\"functional\":true}]\n```")
	sink := tracker.NewMemorySink()

	calls := 0
	svc := New(newDispatcher(srv.URL, sink), quietLogger(), WithExtractor(countingExtractor(&calls)))

	p, err := svc.GenerateStructured(context.Background(), "prompt", "k")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, extract.KindArray, p.Kind)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, sink.Len())
}

func TestGenerateStructuredExtractionError(t *testing.T) {
	sender := &stubSender{result: dispatch.Text{Content: "I cannot help with that."}}
	svc := New(sender, quietLogger())

	p, err := svc.GenerateStructured(context.Background(), "prompt", "k")
	assert.Nil(t, p)
	assert.ErrorIs(t, err, extract.ErrNoJSON)

	var extErr *extract.ExtractionError
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "I cannot help with that.", extErr.Raw)
}

func TestAnalyzeRequirements(t *testing.T) {
	sender := &stubSender{result: dispatch.Text{Content: `[{"title":"Ανάληψη με QR","description":"Ο πελάτης κάνει ανάληψη.","functional":true},{"title":"Διαθεσιμότητα","description":"99.9%","functional":false}]`}}
	svc := New(sender, quietLogger())

	reqs, err := svc.AnalyzeRequirements(context.Background(), "έγγραφο")
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "Ανάληψη με QR", reqs[0].Title)
	assert.True(t, reqs[0].Functional)
	assert.False(t, reqs[1].Functional)

	require.Len(t, sender.reqs, 1)
	assert.Equal(t, prompts.RequirementsKey, sender.reqs[0].PromptKey)
	assert.Contains(t, sender.reqs[0].Prompt, "έγγραφο")
}

func TestAnalyzeRequirementsSingleObject(t *testing.T) {
	sender := &stubSender{result: dispatch.Text{Content: `{"title":"t","description":"d","functional":false}`}}
	svc := New(sender, quietLogger(), WithLanguage("English"))

	reqs, err := svc.AnalyzeRequirements(context.Background(), "doc")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "t", reqs[0].Title)
	assert.Contains(t, sender.reqs[0].Prompt, "written in English")
}

func TestAnalyzeRequirementsNoAnswer(t *testing.T) {
	sender := &stubSender{result: dispatch.Failure{Reason: "transport error"}}
	svc := New(sender, quietLogger())

	_, err := svc.AnalyzeRequirements(context.Background(), "doc")
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestGenerateC4Diagram(t *testing.T) {
	sender := &stubSender{result: dispatch.Text{Content: "```json\n{\"diagram\":\"C4Container\\ntitle Shop\",\"explanation\":\"mapped participants to containers\"}\n```"}}
	svc := New(sender, quietLogger())

	d, err := svc.GenerateC4Diagram(context.Background(), "sequenceDiagram\nA->>B: hi", prompts.Container)
	require.NoError(t, err)
	assert.Equal(t, "Container", d.Level)
	assert.Equal(t, "C4Container\ntitle Shop", d.Diagram)
	assert.Equal(t, "mapped participants to containers", d.Explanation)
	assert.Equal(t, "diagram.c4.container", sender.reqs[0].PromptKey)
}

func TestGenerateC4DiagramRejectsArray(t *testing.T) {
	sender := &stubSender{result: dispatch.Text{Content: `[{"diagram":"x"}]`}}
	svc := New(sender, quietLogger())

	_, err := svc.GenerateC4Diagram(context.Background(), "seq", prompts.SystemContext)
	assert.Error(t, err)
}

func TestGenerateC4DiagramInvalidLevel(t *testing.T) {
	sender := &stubSender{}
	svc := New(sender, quietLogger())

	_, err := svc.GenerateC4Diagram(context.Background(), "seq", prompts.C4Level(5))
	assert.ErrorIs(t, err, prompts.ErrInvalidLevel)
	assert.Empty(t, sender.reqs)
}
