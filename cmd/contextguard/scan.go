package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tributary-ai-services/ContextGuard/pkg/pipeline"
	"github.com/Tributary-ai-services/ContextGuard/pkg/scan"
)

type scanOptions struct {
	json   bool
	failOn string
	source string
}

func newScanCmd(root *rootOptions) *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan [file]",
		Short: "Scan a file or stdin for sensitive content",
		Long: `Scan reads a file, or stdin when no file or "-" is given, and reports every
finding with its masked value and the policy decision. Raw values are never
printed. The exit code is 1 when a finding reaches --fail-on.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold := scan.SeverityNone
			if !strings.EqualFold(opts.failOn, "none") {
				threshold = scan.ParseSeverity(opts.failOn)
				if !threshold.Valid() {
					return fmt.Errorf("invalid --fail-on %q: want low, medium, high, critical or none", opts.failOn)
				}
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			text, name, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			proc, err := pipeline.NewFromConfig(cfg, root.cliLogger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer proc.Close()

			source := opts.source
			if source == "" {
				source = name
			}
			res, err := proc.Process(cmd.Context(), pipeline.Request{
				Text:    text,
				Source:  source,
				Trigger: pipeline.TriggerInput,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.json {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return fmt.Errorf("encoding result: %w", err)
				}
			} else {
				printResult(out, text, res)
			}

			if threshold.Valid() && scan.HasSeverityAtLeast(res.Findings, threshold) {
				return &exitError{code: 1, msg: fmt.Sprintf("findings at or above %s", threshold)}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "emit the result as JSON")
	cmd.Flags().StringVar(&opts.failOn, "fail-on", "critical", "exit 1 on findings at or above low|medium|high|critical, or none")
	cmd.Flags().StringVar(&opts.source, "source", "", "destination recorded with the scan (defaults to the file name)")
	return cmd
}

func newScrubCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scrub [file]",
		Short: "Print the input with every detected value replaced",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			text, _, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			proc, err := pipeline.NewFromConfig(cfg, root.cliLogger(cfg, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer proc.Close()

			findings, err := proc.Detect(cmd.Context(), text)
			if err != nil {
				return err
			}
			if _, err := io.WriteString(cmd.OutOrStdout(), proc.Redactor().Scrub(text, findings)); err != nil {
				return err
			}
			if n := len(findings); n > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "scrubbed %d value(s)\n", n)
			}
			return nil
		},
	}
}

// readInput returns the text to scan and a name for it.
func readInput(stdin io.Reader, args []string) (string, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "stdin", nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), args[0], nil
}
