package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/itturia/internal/store"
)

func migrateCmd(a *app) *cobra.Command {
	var migDir string
	var direction string
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the postgres run store",
		RunE: func(cmd *cobra.Command, args []string) error {
			pg := a.cfg.Storage.Postgres
			if pg.URL == "" && (pg.Host == "" || pg.DBName == "") {
				return fmt.Errorf("postgres not configured (storage.postgres.url or host/dbname)")
			}
			if err := store.Migrate(migDir, pg.DSN(), direction, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations %s: done\n", direction)
			return nil
		},
	}
	cmd.Flags().StringVar(&migDir, "dir", "", "migrations source, e.g. file://migrations (default: built in)")
	cmd.Flags().StringVar(&direction, "direction", "up", "up or down")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return cmd
}
