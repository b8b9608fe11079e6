package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtroode/authkeeper-server/database"
	"github.com/dtroode/authkeeper-server/internal/config"
)

var errMemoryDriver = errors.New("migrations need DATABASE_DRIVER=postgres")

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(
		migrationCmd("up", "Apply all pending migrations", database.Migrate),
		migrationCmd("down", "Roll back the latest migration", database.Rollback),
		migrationCmd("status", "Show the state of every migration", database.Status),
	)

	return cmd
}

func migrationCmd(use, short string, fn func(ctx context.Context, dsn string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("failed to parse config: %w", err)
			}
			if cfg.Database.Driver != "postgres" {
				return errMemoryDriver
			}

			if err := fn(cmd.Context(), cfg.Database.DSN); err != nil {
				return fmt.Errorf("migrate %s: %w", use, err)
			}

			cmd.Printf("migrate %s completed\n", use)
			return nil
		},
	}
}
