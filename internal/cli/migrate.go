package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/kindred/internal/migrate"
	"github.com/roach88/kindred/internal/record"
	"github.com/roach88/kindred/internal/store"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run an offline local to remote migration pass",
		Long: `Merge every record of the local store into the remote-synced store
without starting the server. The pass is idempotent: running it again
changes nothing. Records that fail to migrate are reported and the
command exits with status 1.

Example:
  kindred migrate
  kindred migrate --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(rootOpts, cmd)
		},
	}
}

func runMigrate(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg, logger, err := opts.load(cmd, f)
	if err != nil {
		return err
	}
	pageSize := store.WithPageSize(cfg.PageSize)

	local, err := store.OpenRoleWithRecovery(cfg.DataDir, store.RoleLocal, logger, pageSize)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open local store", err)
	}
	defer local.Close()

	remote, err := store.OpenRoleWithRecovery(cfg.DataDir, store.RoleRemote, logger, pageSize)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open remote store", err)
	}
	defer remote.Close()

	f.VerboseLog("migrating %s -> %s", local.Path(), remote.Path())
	rep, err := migrate.New(migrate.WithLogger(logger)).Run(cmd.Context(), local, remote)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeMigration, "migration failed", err)
	}

	if err := f.Render(rep, func(w io.Writer) error {
		return writeReport(w, rep)
	}); err != nil {
		return err
	}
	if n := rep.Failed(); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d record(s) failed to migrate", n))
	}
	return nil
}

// writeReport prints a migration report as a table.
func writeReport(w io.Writer, rep *migrate.Report) error {
	if _, err := fmt.Fprintf(w, "%-18s %8s %8s %8s %10s %7s\n",
		"KIND", "SCANNED", "CREATED", "MERGED", "UNCHANGED", "FAILED"); err != nil {
		return err
	}
	for _, kind := range record.Kinds {
		kr := rep.Kind(kind)
		if _, err := fmt.Fprintf(w, "%-18s %8d %8d %8d %10d %7d\n",
			kind, kr.Scanned, kr.Created, kr.Merged, kr.Unchanged, kr.Failed); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\nrestored %d, orphaned %d, cleared %d, written %d\n",
		rep.Restored, rep.Orphaned, rep.Cleared, rep.Written())
	return err
}
