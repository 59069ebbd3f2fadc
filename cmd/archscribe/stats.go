package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/archscribe/archscribe/pkg/models"
	"github.com/archscribe/archscribe/pkg/pricing"
	"github.com/archscribe/archscribe/pkg/tracker"
)

func newStatsCmd(configPath *string) *cobra.Command {
	var (
		backend string
		path    string
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the usage ledger by prompt key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if backend == "" {
				backend = cfg.Ledger.Backend
			}
			if path == "" {
				cfg.Ledger.Backend = backend
				path = cfg.LedgerLocation()
			}

			sink, err := tracker.OpenSink(backend, path)
			if err != nil {
				return err
			}
			defer func() { _ = sink.Close() }()

			rec := tracker.NewRecorder(sink, pricing.FromConfig(cfg.Pricing.Models, cfg.Pricing.DefaultRate), nil)
			summaries, err := rec.Summarize(cmd.Context())
			if err != nil {
				return err
			}
			return writeSummaries(cmd.OutOrStdout(), tracker.SortedSummaries(summaries))
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "ledger backend: csv or sqlite (default: ledger.backend)")
	cmd.Flags().StringVar(&path, "ledger", "", "ledger file (default from config)")
	return cmd
}

func writeSummaries(out io.Writer, summaries []models.PromptSummary) error {
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No usage data found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROMPT KEY\tRUNS\tPROMPT\tRESPONSE\tTOTAL\tEST. COST")
	var (
		runs  int
		total = decimal.Zero
	)
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\n",
			s.PromptKey, s.Runs, s.TotalPromptTokens, s.TotalResponseTokens,
			s.TotalPromptTokens+s.TotalResponseTokens, tracker.FormatCost(s.TotalCost))
		runs += s.Runs
		total = total.Add(s.TotalCost)
	}
	fmt.Fprintf(w, "TOTAL\t%d\t\t\t\t%s\n", runs, tracker.FormatCost(total))
	return w.Flush()
}
