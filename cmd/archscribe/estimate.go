package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/archscribe/archscribe/pkg/budget"
	"github.com/archscribe/archscribe/pkg/logging"
	"github.com/archscribe/archscribe/pkg/pricing"
	"github.com/archscribe/archscribe/pkg/tracker"
)

func newEstimateCmd(configPath *string) *cobra.Command {
	var (
		model string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "estimate FILE",
		Short: "Estimate tokens and cost of a prompt without sending it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			text, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			logger, closeLog, err := logging.New(logging.Options{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			defer closeLog()

			if model == "" {
				model = cfg.PricingModel()
			}
			if limit <= 0 {
				limit = cfg.Ollama.ContextLimit
			}

			profile := pricing.FromConfig(cfg.Pricing.Models, cfg.Pricing.DefaultRate)
			est := budget.New(nil, profile, logger)
			stats := est.Check(text, model, limit)
			margin, fits := budget.Fits(stats, limit)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "MODEL\t%s\n", model)
			fmt.Fprintf(w, "TOKENIZER\t%s\n", est.TokenizerName())
			fmt.Fprintf(w, "PROMPT TOKENS\t%d\n", stats.PromptTokens)
			fmt.Fprintf(w, "EXPECTED RESPONSE\t%d\n", stats.ExpectedResponseTokens)
			fmt.Fprintf(w, "TOTAL\t%d\n", stats.TotalTokens)
			fmt.Fprintf(w, "CONTEXT LIMIT\t%d\n", limit)
			if fits {
				fmt.Fprintf(w, "MARGIN\t%d\n", margin)
			} else {
				fmt.Fprintf(w, "OVERFLOW\t%d\n", -margin)
			}
			rate := profile.Rate(model).String()
			if !profile.Known(model) {
				rate += " (default rate)"
			}
			fmt.Fprintf(w, "RATE PER 1K\t%s\n", rate)
			fmt.Fprintf(w, "COST ESTIMATE\t%s\n", tracker.FormatCost(stats.CostEstimate))
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "pricing model (default: ollama.pricing_model)")
	cmd.Flags().IntVar(&limit, "context-limit", 0, "context window (default: ollama.context_limit)")
	return cmd
}
