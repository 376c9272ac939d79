package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version]",
		Short:     "Apply the embedded schema migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := "up"
			if len(args) == 1 {
				direction = args[0]
			}

			cfg, log, err := opts.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if cfg.Store.Driver == "memory" {
				return fmt.Errorf("the memory store has no schema to migrate")
			}

			ctx := cmd.Context()
			db, err := openDB(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := runMigrations(ctx, db, cfg.Store.Driver, direction, log); err != nil {
				return fmt.Errorf("migration %s failed: %w", direction, err)
			}
			log.Info("migrations applied", "command", direction, "driver", cfg.Store.Driver)
			return nil
		},
	}
}
