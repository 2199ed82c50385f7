// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/votany/internal/config"
	"codeberg.org/oliverandrich/votany/internal/database"
	"codeberg.org/oliverandrich/votany/internal/server"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cmd := &cli.Command{
		Name:    "votany",
		Usage:   "Polling service API",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Manage the database schema",
				Commands: []*cli.Command{
					migrateCommand("up", "Apply all pending migrations", database.RunMigrations),
					migrateCommand("down", "Roll back the last migration", database.MigrateDown),
					migrateCommand("reset", "Roll back all migrations", database.MigrateReset),
					migrateCommand("status", "Show the state of every migration", database.MigrateStatus),
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// migrateCommand runs fn against the configured database and logs the
// resulting schema version.
func migrateCommand(name, usage string, fn func(*sql.DB) error) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := config.NewFromCLI(cmd)

			db, err := database.OpenRaw(cfg.Database.DSN)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = db.Close() }()

			if err := fn(db.DB); err != nil {
				return fmt.Errorf("migrate %s: %w", name, err)
			}

			version, err := database.Version(db.DB)
			if err != nil {
				return err
			}
			slog.Info("migrate_done", "command", name, "version", version)
			return nil
		},
	}
}
