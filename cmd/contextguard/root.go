package main

import (
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Tributary-ai-services/ContextGuard/pkg/config"
)

type rootOptions struct {
	configPath string
	noColor    bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "contextguard",
		Short: "Catch secrets and personal data before they reach an AI chat",
		Long: `ContextGuard scans text for credentials, personal data and infrastructure
details, masks or scrubs what it finds, and applies a block/warn/log policy.
Use it on files and pipes, or run it as an HTTP and gRPC service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to contextguard.yaml (defaults apply when empty)")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colorized output")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log scan activity to stderr")

	cmd.AddCommand(
		newScanCmd(opts),
		newScrubCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(o.configPath)
}

// cliLogger keeps one-shot commands quiet unless --verbose is set.
func (o *rootOptions) cliLogger(cfg *config.Config, stderr io.Writer) *slog.Logger {
	if !o.verbose {
		return slog.New(slog.DiscardHandler)
	}
	return config.NewLogger(cfg.Logging, stderr)
}
