package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/mohammadpnp/collaborator-import/internal/config"
	"github.com/mohammadpnp/collaborator-import/internal/infrastructure/db"
	"github.com/mohammadpnp/collaborator-import/internal/logging"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "importctl",
		Short:        "Maintenance commands for collaborator imports",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logging.Setup(cfg.Log.Level, cfg.Log.Format)
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(newCleanupCmd(opts))
	cmd.AddCommand(newQueueCmd(opts))
	cmd.AddCommand(newTokenCmd(opts))

	return cmd
}

func (o *rootOptions) openDB() (*gorm.DB, error) {
	return db.Open(o.cfg.Database.URL, o.cfg.Database.LogMode)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
