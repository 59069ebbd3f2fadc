// Package assistant is the caller-facing layer: it builds prompts, sends
// them through the dispatcher and recovers structured answers.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/archscribe/archscribe/pkg/dispatch"
	"github.com/archscribe/archscribe/pkg/extract"
	"github.com/archscribe/archscribe/pkg/models"
	"github.com/archscribe/archscribe/pkg/prompts"
)

// ErrNoAnswer is returned when the endpoint produced no text, so there was
// nothing to extract from.
var ErrNoAnswer = errors.New("no answer from generation endpoint")

// Sender dispatches one prompt.
type Sender interface {
	Send(ctx context.Context, req dispatch.Request) dispatch.Result
}

// ExtractFunc recovers JSON from model text.
type ExtractFunc func(raw string) (extract.Payload, error)

// Service runs prompts end to end.
type Service struct {
	sender   Sender
	extract  ExtractFunc
	language string
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithExtractor replaces extract.Extract.
func WithExtractor(fn ExtractFunc) Option {
	return func(s *Service) { s.extract = fn }
}

// WithLanguage sets the document language used in requirement prompts.
func WithLanguage(lang string) Option {
	return func(s *Service) { s.language = lang }
}

// New creates a Service.
func New(sender Sender, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		sender:   sender,
		extract:  extract.Extract,
		language: prompts.DefaultLanguage,
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Generate sends prompt and returns the raw result.
func (s *Service) Generate(ctx context.Context, prompt, promptKey string) dispatch.Result {
	return s.sender.Send(ctx, dispatch.Request{Prompt: prompt, PromptKey: promptKey})
}

// GenerateStructured sends prompt and extracts JSON from the answer. It
// returns (nil, nil) when dispatch fails; the extractor is not called in
// that case.
func (s *Service) GenerateStructured(ctx context.Context, prompt, promptKey string) (*extract.Payload, error) {
	res := s.Generate(ctx, prompt, promptKey)
	text, ok := dispatch.TextOf(res)
	if !ok {
		s.logger.Warn("no text to extract", "prompt_key", promptKey, "result", fmt.Sprint(res))
		return nil, nil
	}

	p, err := s.extract(text)
	if err != nil {
		s.logger.Error("failed to extract JSON from response", "prompt_key", promptKey, "error", err)
		return nil, err
	}
	s.logger.Debug("extracted JSON", "prompt_key", promptKey, "kind", p.Kind, "strategy", p.Strategy)
	return &p, nil
}

// AnalyzeRequirements extracts the "to-be" requirements from a business
// document.
func (s *Service) AnalyzeRequirements(ctx context.Context, document string) ([]models.Requirement, error) {
	p, err := s.GenerateStructured(ctx, prompts.RequirementsPrompt(document, s.language), prompts.RequirementsKey)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoAnswer
	}

	if p.Kind == extract.KindObject {
		// A single requirement is accepted as a one-element list.
		one, err := extract.Decode[models.Requirement](*p)
		if err != nil {
			return nil, fmt.Errorf("decode requirement: %w", err)
		}
		return []models.Requirement{one}, nil
	}
	reqs, err := extract.Decode[[]models.Requirement](*p)
	if err != nil {
		return nil, fmt.Errorf("decode requirements: %w", err)
	}
	return reqs, nil
}

// GenerateC4Diagram converts a MermaidJS sequence diagram into a C4 diagram
// at level.
func (s *Service) GenerateC4Diagram(ctx context.Context, sequenceDiagram string, level prompts.C4Level) (*models.C4Diagram, error) {
	prompt, err := prompts.C4Prompt(level, sequenceDiagram)
	if err != nil {
		return nil, err
	}

	p, err := s.GenerateStructured(ctx, prompt, level.PromptKey())
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNoAnswer
	}
	if p.Kind != extract.KindObject {
		return nil, fmt.Errorf("expected a JSON object for the diagram, got %s", p.Kind)
	}

	d, err := extract.Decode[models.C4Diagram](*p)
	if err != nil {
		return nil, fmt.Errorf("decode diagram: %w", err)
	}
	if d.Diagram == "" {
		return nil, fmt.Errorf("diagram field missing from response")
	}
	d.Level = level.String()
	return &d, nil
}
