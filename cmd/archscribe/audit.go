package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/archscribe/archscribe/pkg/audit"
	"github.com/archscribe/archscribe/pkg/models"
)

func newAuditCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the prompt/response transcripts",
	}

	cmd.AddCommand(
		newAuditSearchCmd(configPath),
		newAuditShowCmd(configPath),
		newAuditStatsCmd(configPath),
		newAuditCleanupCmd(configPath),
	)
	return cmd
}

func newAuditSearchCmd(configPath *string) *cobra.Command {
	var (
		promptKey string
		model     string
		since     string
		failed    bool
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search transcripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.AuditQueryOpts{
				PromptKey: promptKey,
				Model:     model,
				Failed:    failed,
				Limit:     limit,
			}
			if since != "" {
				t, err := time.Parse(time.DateOnly, since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			entries, err := l.Query(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatAuditEntries(entries))
			return nil
		},
	}

	cmd.Flags().StringVar(&promptKey, "key", "", "filter by prompt key")
	cmd.Flags().StringVar(&model, "model", "", "filter by model")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&failed, "failed", false, "only failed dispatches")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")

	return cmd
}

func newAuditShowCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show REQUEST_ID",
		Short: "Show a single transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			entries, err := l.Query(cmd.Context(), models.AuditQueryOpts{
				RequestID: args[0],
				Limit:     1,
			})
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No transcript found for that request ID.")
				return nil
			}
			writeAuditEntry(cmd.OutOrStdout(), entries[0])
			return nil
		},
	}
	return cmd
}

func newAuditStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show transcript counts by prompt key and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatAuditStats(stats))
			return nil
		},
	}
}

func newAuditCleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete transcripts older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openAuditLogger(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d transcripts.\n", deleted)
			return nil
		},
	}
}

// openAuditLogger opens the transcript store even when audit.enabled is
// false, so old transcripts stay readable.
func openAuditLogger(configPath string) (*audit.Logger, func(), error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	l, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit db: %w", err)
	}
	return l, func() { _ = l.Close() }, nil
}

func writeAuditEntry(w io.Writer, e models.AuditEntry) {
	fmt.Fprintf(w, "Request ID:    %s\n", e.RequestID)
	fmt.Fprintf(w, "Prompt key:    %s\n", e.PromptKey)
	fmt.Fprintf(w, "Model:         %s\n", e.Model)
	fmt.Fprintf(w, "Endpoint:      %s\n", e.Endpoint)
	fmt.Fprintf(w, "Status:        %d\n", e.StatusCode)
	if !e.Succeeded() {
		fmt.Fprintf(w, "Failure:       %s\n", e.FailureReason)
	}
	fmt.Fprintf(w, "Latency:       %dms\n", e.LatencyMs)
	fmt.Fprintf(w, "Tokens:        %d prompt / %d response\n", e.PromptTokens, e.ResponseTokens)
	fmt.Fprintf(w, "Time:          %s\n", e.CreatedAt.Format(time.RFC3339))
	if e.Prompt != "" {
		fmt.Fprintf(w, "\n--- Prompt ---\n%s\n", e.Prompt)
	}
	if e.Response != "" {
		fmt.Fprintf(w, "\n--- Response ---\n%s\n", e.Response)
	}
}

func formatAuditEntries(entries []models.AuditEntry) string {
	if len(entries) == 0 {
		return "No transcripts found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-36s %-26s %-26s %6s %9s %-20s\n",
		"REQUEST ID", "PROMPT KEY", "MODEL", "STATUS", "LATENCY", "TIME")
	b.WriteString(strings.Repeat("-", 130) + "\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%-36s %-26s %-26s %6d %7dms %-20s\n",
			e.RequestID, e.PromptKey, e.Model, e.StatusCode,
			e.LatencyMs, e.CreatedAt.Format(time.DateTime))
	}
	return b.String()
}

func formatAuditStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No transcript stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-28s %-12s %8s %9s\n", "PROMPT KEY", "DAY", "COUNT", "FAILURES")
	b.WriteString(strings.Repeat("-", 60) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-28s %-12s %8d %9d\n", s.PromptKey, s.Day, s.Count, s.Failures)
	}
	return b.String()
}
