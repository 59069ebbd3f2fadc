package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "archscribe",
		Short:         "Requirements and C4 diagrams from a local LLM, with token budgeting and a usage ledger",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to archscribe config file")

	root.AddCommand(
		newRequirementsCmd(&configPath),
		newDiagramCmd(&configPath),
		newGenerateCmd(&configPath),
		newEstimateCmd(&configPath),
		newStatsCmd(&configPath),
		newAuditCmd(&configPath),
	)
	return root
}
