package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/archscribe/archscribe/pkg/assistant"
	"github.com/archscribe/archscribe/pkg/audit"
	"github.com/archscribe/archscribe/pkg/budget"
	"github.com/archscribe/archscribe/pkg/config"
	"github.com/archscribe/archscribe/pkg/dispatch"
	"github.com/archscribe/archscribe/pkg/httpclient"
	"github.com/archscribe/archscribe/pkg/logging"
	"github.com/archscribe/archscribe/pkg/pricing"
	"github.com/archscribe/archscribe/pkg/tracker"
)

// app holds the components shared by the generation commands.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	estimator  *budget.Estimator
	recorder   *tracker.Recorder
	dispatcher *dispatch.Dispatcher
	service    *assistant.Service
	closers    []func() error
}

func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp wires config, logger, estimator, ledger, dispatcher and the
// optional transcript store. logOut receives console logs.
func newApp(configPath string, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Output: logOut,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, closers: []func() error{closeLog}}

	a.estimator = budget.New(nil, pricing.FromConfig(cfg.Pricing.Models, cfg.Pricing.DefaultRate), logger)

	sink, err := tracker.OpenSink(cfg.Ledger.Backend, cfg.LedgerLocation())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init ledger: %w", err)
	}
	a.closers = append(a.closers, sink.Close)
	a.recorder = tracker.NewRecorder(sink, a.estimator.Pricing(), logger)

	a.dispatcher = dispatch.New(dispatch.Config{
		BaseURL:               cfg.Ollama.URL,
		Model:                 cfg.Ollama.Model,
		PricingModel:          cfg.PricingModel(),
		ContextLimit:          cfg.Ollama.ContextLimit,
		MeasureResponseTokens: cfg.Ollama.MeasureResponseTokens,
	}, httpclient.WithTimeout(cfg.Ollama.Timeout), a.estimator, a.recorder, logger)

	if cfg.Audit.Enabled {
		al, err := audit.New(cfg.Audit)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init audit: %w", err)
		}
		a.closers = append(a.closers, al.Close)
		a.dispatcher.WithAuditor(al)
	}

	a.service = assistant.New(a.dispatcher, logger, assistant.WithLanguage(cfg.Requirements.Language))

	logger.Debug("archscribe ready",
		"endpoint", cfg.Ollama.URL,
		"model", cfg.Ollama.Model,
		"tokenizer", a.estimator.TokenizerName(),
		"ledger", sink.Location(),
	)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// readInput returns the contents of path, or stdin when path is "-".
func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

// writeOutput writes data to path, or to w when path is empty.
func writeOutput(path string, w io.Writer, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
