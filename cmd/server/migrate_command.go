package main

import (
	"github.com/spf13/cobra"

	"github.com/Priya8975/crm-automation-dispatch/internal/migrate"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and move legacy env settings into configs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.logger()

			backend, closeBackend, err := openBackend(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeBackend()

			n, err := migrate.MoveEnvs(cmd.Context(), backend, migrate.Options{
				ConnString: cfg.ConnString(),
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			cmd.Printf("moved %d env settings into configs\n", n)
			return nil
		},
	}
}
