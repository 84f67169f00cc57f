package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	appconfig "github.com/wolfman30/spa-availability/internal/config"
	"github.com/wolfman30/spa-availability/migrations"
	"github.com/wolfman30/spa-availability/pkg/logging"
)

func main() {
	logger := logging.New("info")
	if err := newRootCmd(logger).Execute(); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}
}

// withMigrator opens the configured database and hands a migrator to fn.
func withMigrator(ctx context.Context, logger *logging.Logger, fn func(*migrate.Migrate) error) error {
	cfg := appconfig.Load()
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	m, err := migrations.NewMigrator(db, logger)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()
	return fn(m)
}

func newRootCmd(logger *logging.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply the run ledger and slot archive schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUp(cmd, logger)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runUp(cmd, logger)
			},
		},
		&cobra.Command{
			Use:   "down <steps>",
			Short: "Roll back the given number of migrations",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps, err := strconv.Atoi(args[0])
				if err != nil || steps <= 0 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				return withMigrator(cmd.Context(), logger, func(m *migrate.Migrate) error {
					if err := m.Steps(-steps); err != nil {
						return fmt.Errorf("migrate down: %w", err)
					}
					logger.Info("migrations rolled back", "steps", steps)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Mark the schema as being at version without running it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return withMigrator(cmd.Context(), logger, func(m *migrate.Migrate) error {
					if err := m.Force(version); err != nil {
						return fmt.Errorf("force version: %w", err)
					}
					logger.Info("schema version forced", "version", version)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd.Context(), logger, func(m *migrate.Migrate) error {
					v, dirty, err := m.Version()
					if errors.Is(err, migrate.ErrNilVersion) {
						fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
						return nil
					}
					if err != nil {
						return fmt.Errorf("read version: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", v, dirty)
					return nil
				})
			},
		},
	)

	return root
}

func runUp(cmd *cobra.Command, logger *logging.Logger) error {
	return withMigrator(cmd.Context(), logger, func(m *migrate.Migrate) error {
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			logger.Info("schema already current")
		case err != nil:
			logger.Error("migrate up failed", "error", err)
			return fmt.Errorf("migrate up: %w", err)
		default:
			logger.Info("migrations complete")
		}
		return nil
	})
}
