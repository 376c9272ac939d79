package main

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/phrazzld/commandq/internal/config"
	"github.com/phrazzld/commandq/internal/platform/logger"
	"github.com/spf13/cobra"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	Format string // "text" | "yaml"

	// loadConfig is replaced in tests.
	loadConfig func() (*config.Config, error)
}

// validFormats defines the allowed output formats.
var validFormats = []string{"text", "yaml"}

func newRootCommand() *cobra.Command {
	return newRootCommandWithOptions(&rootOptions{loadConfig: config.Load})
}

func newRootCommandWithOptions(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commandq",
		Short: "Background command scheduling and execution engine",
		Long: `commandq queues commands against remote timelines, runs them in the
background under connectivity constraints and retries failed work.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|yaml)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newQueuesCommand(opts))
	cmd.AddCommand(newSubmitCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))

	return cmd
}

// setup loads the configuration and builds a logger writing to out.
func (o *rootOptions) setup(out io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, logger.SetupWithWriter(cfg.Server, out), nil
}
