package main

import (
	"fmt"

	"github.com/phrazzld/commandq/internal/service/auth"
	"github.com/spf13/cobra"
)

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.setup(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			tokens, err := auth.NewTokenService(cfg.Auth)
			if err != nil {
				return fmt.Errorf("auth is not configured: %w", err)
			}
			token, err := tokens.GenerateToken(cmd.Context(), subject)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "subject recorded in the token")
	return cmd
}
