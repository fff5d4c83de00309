package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/ticketry/internal/bootstrap"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixtures.yaml>",
		Short: "Load customers, articles and tickets into the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bootstrap.Seed(cmd.Context(), args[0], a.seeder, a.logger); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %s into %s backend\n", args[0], a.cfg.Backend)
			return nil
		},
	}
}
