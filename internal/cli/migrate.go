package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"rashody/internal/backend"
	"rashody/internal/config"
	"rashody/internal/storage"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				dialect, dsn, err := migrationTarget(opts)
				if err != nil {
					return err
				}
				if err := storage.RunMigrations(dialect, dsn); err != nil {
					return err
				}
				return printVersion(cmd, dialect, dsn)
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations (default one step)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}
				dialect, dsn, err := migrationTarget(opts)
				if err != nil {
					return err
				}
				if err := storage.RollbackMigrations(dialect, dsn, steps); err != nil {
					return err
				}
				return printVersion(cmd, dialect, dsn)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				dialect, dsn, err := migrationTarget(opts)
				if err != nil {
					return err
				}
				return printVersion(cmd, dialect, dsn)
			},
		},
	)
	return cmd
}

func migrationTarget(opts *rootOptions) (storage.Dialect, string, error) {
	if err := config.LoadEnvFile(envPaths(opts)...); err != nil {
		return "", "", fmt.Errorf("load env file: %w", err)
	}
	backendCfg, err := backend.FromAppConfig(config.Load())
	if err != nil {
		return "", "", err
	}
	return backend.MigrationTarget(backendCfg)
}

func envPaths(opts *rootOptions) []string {
	if opts.envFile == "" {
		return nil
	}
	return []string{opts.envFile}
}

func printVersion(cmd *cobra.Command, dialect storage.Dialect, dsn string) error {
	version, dirty, err := storage.MigrationVersion(dialect, dsn)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s schema version %d (dirty: %t)\n", dialect, version, dirty)
	return nil
}
