package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/kindred/internal/record"
	"github.com/roach88/kindred/internal/store"
)

// StoreStatus describes one store file.
type StoreStatus struct {
	Role   store.Role          `json:"role"`
	Path   string              `json:"path"`
	Exists bool                `json:"exists"`
	Counts map[record.Kind]int `json:"counts,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show record counts in both store files",
		Long: `Show the record count per kind in the local and the remote-synced
store file. Missing files are reported and not created.

Example:
  kindred status
  kindred status --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	cfg, _, err := opts.load(cmd, f)
	if err != nil {
		return err
	}

	var statuses []StoreStatus
	for _, role := range []store.Role{store.RoleLocal, store.RoleRemote} {
		st, err := storeStatus(cmd.Context(), cfg.DataDir, role)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to read %s store", role), err)
		}
		statuses = append(statuses, st)
	}

	return f.Render(statuses, func(w io.Writer) error {
		return writeStatus(w, statuses)
	})
}

func storeStatus(ctx context.Context, dir string, role store.Role) (StoreStatus, error) {
	st := StoreStatus{Role: role, Path: filepath.Join(dir, role.FileName())}
	if _, err := os.Stat(st.Path); errors.Is(err, os.ErrNotExist) {
		return st, nil
	} else if err != nil {
		return st, err
	}
	st.Exists = true

	s, err := store.Open(st.Path)
	if err != nil {
		return st, err
	}
	defer s.Close()

	st.Counts = make(map[record.Kind]int, len(record.Kinds))
	for _, kind := range record.Kinds {
		n, err := s.Count(ctx, kind)
		if err != nil {
			return st, err
		}
		st.Counts[kind] = n
	}
	return st, nil
}

func writeStatus(w io.Writer, statuses []StoreStatus) error {
	for _, st := range statuses {
		if !st.Exists {
			if _, err := fmt.Fprintf(w, "%s: %s (missing)\n", st.Role, st.Path); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(w, "%s: %s\n", st.Role, st.Path); err != nil {
			return err
		}
		for _, kind := range record.Kinds {
			if _, err := fmt.Fprintf(w, "  %-18s %d\n", kind, st.Counts[kind]); err != nil {
				return err
			}
		}
	}
	return nil
}
