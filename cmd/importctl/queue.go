package main

import (
	app "github.com/mohammadpnp/collaborator-import/internal/application/collaborator"
	"github.com/mohammadpnp/collaborator-import/internal/infrastructure/repository"
	"github.com/spf13/cobra"
)

func newQueueCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show queued, running and stale import counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			gormDB, err := root.openDB()
			if err != nil {
				return err
			}

			depth, err := app.NewQueueStats(repository.NewImportSessionRepository(gormDB)).Execute(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), depth)
		},
	}
}
