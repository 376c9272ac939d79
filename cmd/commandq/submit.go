package main

import (
	"fmt"

	"github.com/phrazzld/commandq/internal/command"
	"github.com/phrazzld/commandq/internal/queue"
	"github.com/phrazzld/commandq/internal/service"
	"github.com/spf13/cobra"
)

// submitOptions holds flags for the submit command.
type submitOptions struct {
	Kind         string
	Target       command.TimelineRef
	TimelineType string
	Foreground   bool
}

func newSubmitCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &submitOptions{}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Stage a command for the next engine start",
		Long: `Stage a command in the persisted PRE queue. A running engine does not see
it; the command is picked up the next time the engine loads its queues.
Use the HTTP API to submit to a running engine.

Examples:
  commandq submit --kind fetch-timeline --account 1 --timeline-type home
  commandq submit --kind fetch-attachment --account 1 --item 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := command.ParseKind(opts.Kind)
			if !ok {
				return fmt.Errorf("%w: %q", service.ErrUnknownKind, opts.Kind)
			}
			if kind.IsControl() {
				return fmt.Errorf("%s acts on a running engine and cannot be staged", kind)
			}
			opts.Target.TimelineType = command.TimelineType(opts.TimelineType)

			cfg, log, err := rootOpts.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, closeStore, err := openQueueStore(ctx, cfg.Store, log)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			if err := st.Load(ctx); err != nil {
				return err
			}

			c := command.New(kind, opts.Target, command.Options{
				InForeground:     opts.Foreground,
				ManuallyLaunched: true,
			}, st.Clock(), cfg.Engine.DefaultRetries)
			if st.ContainsPending(c.Key()) {
				return service.ErrDuplicate
			}
			if err := st.Enqueue(c, queue.Pre); err != nil {
				return err
			}
			if err := st.Save(ctx); err != nil {
				return err
			}

			log.Info("command staged", "command_kind", c.Kind, "command_id", c.CreatedAt)
			if rootOpts.Format == "yaml" {
				return writeYAML(cmd.OutOrStdout(), c)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), c.CreatedAt)
			return err
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "command kind (required)")
	_ = cmd.MarkFlagRequired("kind")
	cmd.Flags().Int64Var(&opts.Target.AccountID, "account", 0, "account id")
	cmd.Flags().Int64Var(&opts.Target.TimelineID, "timeline", 0, "timeline id")
	cmd.Flags().StringVar(&opts.TimelineType, "timeline-type", "", "timeline type (home, notifications, search, ...)")
	cmd.Flags().Int64Var(&opts.Target.ActorID, "actor", 0, "actor id")
	cmd.Flags().Int64Var(&opts.Target.OriginID, "origin", 0, "origin id")
	cmd.Flags().Int64Var(&opts.Target.ItemID, "item", 0, "item id (note or attachment)")
	cmd.Flags().BoolVar(&opts.Foreground, "foreground", false, "run ahead of background work")

	return cmd
}
