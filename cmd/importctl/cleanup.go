package main

import (
	app "github.com/mohammadpnp/collaborator-import/internal/application/collaborator"
	infrafile "github.com/mohammadpnp/collaborator-import/internal/infrastructure/file"
	"github.com/mohammadpnp/collaborator-import/internal/infrastructure/repository"
	"github.com/spf13/cobra"
)

func newCleanupCmd(root *rootOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete finished imports older than the retention window and their stored files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("days") {
				days = root.cfg.Import.RetentionDays
			}

			gormDB, err := root.openDB()
			if err != nil {
				return err
			}

			cleanup := app.NewCleanupOldImports(
				repository.NewImportSessionRepository(gormDB),
				infrafile.NewLocalSource(root.cfg.Import.BaseDir),
			)
			out, err := cleanup.Execute(cmd.Context(), app.CleanupOldImportsInput{Days: days})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().IntVar(&days, "days", app.DefaultRetentionDays, "Retention window in days")

	return cmd
}
