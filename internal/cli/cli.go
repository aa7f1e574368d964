// Package cli contains the cobra implementation of the sqlbuns command
// set, exactly as the teacher's cmd/smf/main.go builds its subcommands,
// with one difference: model definitions are authored in a host Go
// program (spec.md §1, §6 "Model loader"), so Execute is exported instead
// of being called from this package's own main. cmd/sqlbuns wraps it with
// a thin main(); a host program that wants its models wired in writes its
// own main importing this package directly.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sql-buns-migrate/internal/applylog"
	"sql-buns-migrate/internal/config"
	"sql-buns-migrate/internal/dbconn"
	"sql-buns-migrate/internal/dialect"
	_ "sql-buns-migrate/internal/dialect/mysql"
	_ "sql-buns-migrate/internal/dialect/postgres"
	_ "sql-buns-migrate/internal/dialect/sqlite"
	"sql-buns-migrate/internal/migrate"
	"sql-buns-migrate/internal/rename"
)

// Bootstrapper reconstructs a baseline model set and snapshot from a live
// database, the collaborator inspectdb needs (spec.md §6, SPEC_FULL.md
// §12). The default bootstrapper is unimplemented; a host program that
// wants inspectdb support supplies its own.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, pool *dbconn.Pool) ([]migrate.ModelEntry, error)
}

// ErrNotImplemented is returned by the default Bootstrapper.
var ErrNotImplemented = fmt.Errorf("inspectdb: no Bootstrapper configured for this project")

type defaultBootstrapper struct{}

func (defaultBootstrapper) Bootstrap(context.Context, *dbconn.Pool) ([]migrate.ModelEntry, error) {
	return nil, ErrNotImplemented
}

// Options configures Execute. ModelLoader is required for create (up and
// down do not load models); Bootstrapper is optional and only consulted by
// inspectdb.
type Options struct {
	ModelLoader  func() ([]migrate.ModelEntry, error)
	Bootstrapper Bootstrapper
	// PromptRename is the rename-confirmation prompt used when
	// config.Interactive is true; when it is nil, or Interactive is false,
	// rename.NonInteractive is used.
	PromptRename func(table, oldName, newName, kind string) bool
}

// Execute builds the root cobra command and runs it against os.Args. A
// host program's main should do nothing but call cli.Execute(opts).
func Execute(opts Options) {
	root := &cobra.Command{
		Use:   "sqlbuns",
		Short: "Declarative SQL schema migration tool",
	}

	root.AddCommand(createCmd(opts))
	root.AddCommand(upCmd(opts))
	root.AddCommand(downCmd(opts))
	root.AddCommand(inspectdbCmd(opts))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadDeps(opts Options) (*config.Config, *dbconn.Pool, dialect.Dialect, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sqlbuns: getwd: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, nil, nil, err
	}
	d, err := dialect.GetDialect(cfg.Engine)
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := dbconn.Open(cfg.Engine, cfg.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, pool, d, nil
}

func oracleFor(cfg *config.Config, opts Options) rename.Oracle {
	if cfg.Interactive && opts.PromptRename != nil {
		return rename.Func(opts.PromptRename)
	}
	return rename.NonInteractive{}
}

func createCmd(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Diff the current model set against the last snapshot and write a migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, opts, args[0])
		},
	}
}

func runCreate(cmd *cobra.Command, opts Options, name string) error {
	if opts.ModelLoader == nil {
		return fmt.Errorf("sqlbuns: no ModelLoader configured")
	}
	cfg, pool, d, err := loadDeps(opts)
	if err != nil {
		return err
	}
	defer pool.Close()

	entries, err := opts.ModelLoader()
	if err != nil {
		return fmt.Errorf("sqlbuns: load models: %w", err)
	}

	log := applylog.Open(filepath.Join(cfg.MigrationsDir, applylog.DefaultFileName))
	defer log.Close()

	deps := migrate.Dependencies{Config: cfg, Pool: pool, Dialect: d, Oracle: oracleFor(cfg, opts), Log: log, Out: cmd.OutOrStdout()}
	result, err := migrate.Create(cmd.Context(), deps, entries, name)
	if err != nil {
		return printFatal(cmd, err)
	}
	if result == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "no changes")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s.sql and %s.reverse.sql\n", result.Artifact.Stem, result.Artifact.Stem)
	return nil
}

func upCmd(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply the next pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, pool, d, err := loadDeps(opts)
			if err != nil {
				return err
			}
			defer pool.Close()

			log := applylog.Open(filepath.Join(cfg.MigrationsDir, applylog.DefaultFileName))
			defer log.Close()

			deps := migrate.Dependencies{Config: cfg, Pool: pool, Dialect: d, Log: log, Out: cmd.OutOrStdout()}
			result, err := migrate.Up(cmd.Context(), deps)
			if err != nil {
				return printFatal(cmd, err)
			}
			if result.Applied == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to apply")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", result.Applied)
			return nil
		},
	}
}

func downCmd(opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "down",
		Aliases: []string{"rollback"},
		Short:   "Revert the latest applied migration",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, pool, d, err := loadDeps(opts)
			if err != nil {
				return err
			}
			defer pool.Close()

			log := applylog.Open(filepath.Join(cfg.MigrationsDir, applylog.DefaultFileName))
			defer log.Close()

			deps := migrate.Dependencies{Config: cfg, Pool: pool, Dialect: d, Log: log, Out: cmd.OutOrStdout()}
			result, err := migrate.Down(cmd.Context(), deps)
			if err != nil {
				return printFatal(cmd, err)
			}
			if result.RolledBack == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", result.RolledBack)
			return nil
		},
	}
	return cmd
}

func inspectdbCmd(opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspectdb",
		Short: "Bootstrap models and a baseline snapshot from a live database (out of core; requires a project Bootstrapper)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, pool, _, err := loadDeps(opts)
			if err != nil {
				return err
			}
			defer pool.Close()

			b := opts.Bootstrapper
			if b == nil {
				b = defaultBootstrapper{}
			}
			if _, err := b.Bootstrap(cmd.Context(), pool); err != nil {
				return printFatal(cmd, err)
			}
			return nil
		},
	}
}

// printFatal prints the red-header, single-sentence failure format
// spec.md §7 "User-visible failures" describes, then returns err so cobra
// propagates the non-zero exit code. SchemaDrift additionally prints the
// reconstructed diff for triage (spec.md §7).
func printFatal(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "\033[31mError:\033[0m %s\n", err.Error())
	var drift *migrate.SchemaDriftError
	if errors.As(err, &drift) && len(drift.Diff) > 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "Reconstructed diff:")
		for _, stmt := range drift.Diff {
			fmt.Fprintln(cmd.ErrOrStderr(), stmt)
		}
	}
	return err
}
