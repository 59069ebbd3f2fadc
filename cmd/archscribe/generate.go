package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/archscribe/archscribe/pkg/assistant"
	"github.com/archscribe/archscribe/pkg/dispatch"
	"github.com/archscribe/archscribe/pkg/prompts"
)

func newRequirementsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requirements",
		Short: "Extract requirements from business documents",
	}

	var out string
	analyzeCmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Extract the to-be requirements of a document as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := newApp(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			reqs, err := a.service.AnalyzeRequirements(cmd.Context(), doc)
			if err != nil {
				return fmt.Errorf("analyze requirements: %w", err)
			}

			data, err := json.MarshalIndent(reqs, "", "  ")
			if err != nil {
				return err
			}
			if out != "" {
				if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
					return err
				}
			}
			return writeOutput(out, cmd.OutOrStdout(), append(data, '\n'))
		},
	}
	analyzeCmd.Flags().StringVarP(&out, "out", "o", "", "write the JSON to a file instead of stdout")

	cmd.AddCommand(analyzeCmd)
	return cmd
}

func newDiagramCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagram",
		Short: "Generate architecture diagrams",
	}

	var (
		level int
		out   string
	)
	c4Cmd := &cobra.Command{
		Use:   "c4 FILE",
		Short: "Convert a MermaidJS sequence diagram into a C4 diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := prompts.ParseC4Level(level)
			if err != nil {
				return err
			}
			seq, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := newApp(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.service.GenerateC4Diagram(cmd.Context(), seq, l)
			if err != nil {
				return fmt.Errorf("generate %s diagram: %w", l, err)
			}

			if out != "" {
				if err := writeOutput(out, nil, []byte(d.Diagram+"\n")); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s diagram to %s\n\n%s\n", d.Level, out, d.Explanation)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n%s\n", d.Diagram, d.Explanation)
			return nil
		},
	}
	c4Cmd.Flags().IntVarP(&level, "level", "l", int(prompts.SystemContext), c4LevelUsage())
	c4Cmd.Flags().StringVarP(&out, "out", "o", "", "write the MermaidJS diagram to a file")

	cmd.AddCommand(c4Cmd)
	return cmd
}

func c4LevelUsage() string {
	levels := prompts.C4Levels()
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = fmt.Sprintf("%d %s", int(l), l)
	}
	return "C4 level: " + strings.Join(names, ", ")
}

func newGenerateCmd(configPath *string) *cobra.Command {
	var (
		key        string
		structured bool
	)

	cmd := &cobra.Command{
		Use:   "generate FILE",
		Short: "Send a prompt file as is and print the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if strings.TrimSpace(prompt) == "" {
				return errors.New("prompt is empty")
			}

			a, err := newApp(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if structured {
				p, err := a.service.GenerateStructured(cmd.Context(), prompt, key)
				if err != nil {
					return err
				}
				if p == nil {
					return assistant.ErrNoAnswer
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(p.Raw))
				return nil
			}

			switch r := a.service.Generate(cmd.Context(), prompt, key).(type) {
			case dispatch.Text:
				fmt.Fprintln(cmd.OutOrStdout(), r.Content)
				return nil
			case dispatch.Failure:
				return fmt.Errorf("%w: %s", assistant.ErrNoAnswer, r)
			default:
				return fmt.Errorf("unexpected result %T", r)
			}
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "adhoc", "prompt key recorded in the ledger")
	cmd.Flags().BoolVar(&structured, "json", false, "extract and print only the JSON payload of the answer")
	return cmd
}
