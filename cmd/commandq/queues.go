package main

import (
	"fmt"
	"io"

	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/queue"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// queueListing is the printed form of the persisted queues.
type queueListing struct {
	Queues []queueEntry `yaml:"queues"`
	Total  int          `yaml:"total"`
}

type queueEntry struct {
	Name     string             `yaml:"name"`
	Count    int                `yaml:"count"`
	Commands []*command.Command `yaml:"commands,omitempty"`
}

func newQueuesCommand(opts *rootOptions) *cobra.Command {
	var only string
	var countsOnly bool

	cmd := &cobra.Command{
		Use:   "queues",
		Short: "Print the persisted queues",
		Long: `Print the number of commands in every persisted queue, and the commands
themselves newest first.

Examples:
  commandq queues
  commandq queues --queue error
  commandq queues --counts --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			types := queue.Types
			if only != "" {
				t, err := queue.ParseType(only)
				if err != nil {
					return err
				}
				types = []queue.Type{t}
			}

			cfg, log, err := opts.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			st, closeStore, err := openQueueStore(cmd.Context(), cfg.Store, log)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			if err := st.Load(cmd.Context()); err != nil {
				return err
			}

			listing := buildListing(st, types, countsOnly)
			if opts.Format == "yaml" {
				return writeYAML(cmd.OutOrStdout(), listing)
			}
			return writeQueuesText(cmd.OutOrStdout(), listing)
		},
	}

	cmd.Flags().StringVar(&only, "queue", "", "print only this queue")
	cmd.Flags().BoolVar(&countsOnly, "counts", false, "print counts without commands")
	return cmd
}

func buildListing(st *queue.Store, types []queue.Type, countsOnly bool) queueListing {
	counts := st.Counts()
	var listing queueListing
	for _, t := range types {
		entry := queueEntry{Name: string(t), Count: counts[t]}
		if !countsOnly {
			entry.Commands = st.Snapshot(t)
		}
		listing.Queues = append(listing.Queues, entry)
		listing.Total += entry.Count
	}
	return listing
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

func writeQueuesText(w io.Writer, listing queueListing) error {
	for _, q := range listing.Queues {
		if _, err := fmt.Fprintf(w, "%-10s %d\n", q.Name, q.Count); err != nil {
			return err
		}
		for _, c := range q.Commands {
			if _, err := fmt.Fprintf(w, "  %s  %s  retries_left=%d\n", c, command.DisplayName(c.Kind), c.Result.RetriesLeft); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "%-10s %d\n", "total", listing.Total)
	return err
}
