package main

import (
	"fmt"
	"strconv"

	"github.com/BaSui01/agentcoord/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// =============================================================================
// 🗄️ migrate 命令
// =============================================================================

type migrateOptions struct {
	root   *rootOptions
	dbType string
	dbURL  string
}

func newMigrateCmd(root *rootOptions) *cobra.Command {
	opts := &migrateOptions{root: root}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the knowledge store database schema",
		Long: `Manage the schema of the SQL knowledge store (sync.store: sql).

The database comes from the database section of the config unless
--db-type and --db-url are both given.`,
	}
	cmd.PersistentFlags().StringVar(&opts.dbType, "db-type", "", "database type: postgres, mysql, sqlite")
	cmd.PersistentFlags().StringVar(&opts.dbURL, "db-url", "", "database URL in golang-migrate format")

	run := func(fn func(cmd *cobra.Command, cli *migration.CLI, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			m, err := opts.migrator()
			if err != nil {
				return err
			}
			defer m.Close()
			cli := migration.NewCLI(m)
			cli.SetOutput(cmd.OutOrStdout())
			return fn(cmd, cli, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, cli *migration.CLI, _ []string) error {
				return cli.RunUp(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, cli *migration.CLI, _ []string) error {
				return cli.RunDown(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, cli *migration.CLI, _ []string) error {
				return cli.RunDownAll(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "steps <n>",
			Short: "Apply (n > 0) or roll back (n < 0) n migrations",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(cmd *cobra.Command, cli *migration.CLI, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q: %w", args[0], err)
				}
				return cli.RunSteps(cmd.Context(), n)
			}),
		},
		&cobra.Command{
			Use:   "goto <version>",
			Short: "Migrate to a specific version",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(cmd *cobra.Command, cli *migration.CLI, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return cli.RunGoto(cmd.Context(), uint(v))
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force the recorded version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(cmd *cobra.Command, cli *migration.CLI, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return cli.RunForce(cmd.Context(), v)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current migration version",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, cli *migration.CLI, _ []string) error {
				return cli.RunVersion(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, cli *migration.CLI, _ []string) error {
				return cli.RunStatus(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "info",
			Short: "Show a migration summary",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, cli *migration.CLI, _ []string) error {
				return cli.RunInfo(cmd.Context())
			}),
		},
	)
	return cmd
}

// migrator 命令行 URL 优先，否则取配置中的 database 段
func (o *migrateOptions) migrator() (migration.Migrator, error) {
	logger := zap.NewNop()

	if o.dbType != "" && o.dbURL != "" {
		dbType, err := migration.ParseDatabaseType(o.dbType)
		if err != nil {
			return nil, err
		}
		return migration.NewMigrator(&migration.Config{
			DatabaseType: dbType,
			DatabaseURL:  o.dbURL,
			Logger:       logger,
		})
	}

	cfg, err := o.root.loadConfig()
	if err != nil {
		return nil, err
	}
	if o.dbType != "" {
		cfg.Database.Driver = o.dbType
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database, logger)
}
