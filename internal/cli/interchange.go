package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/kindred/internal/interchange"
	"github.com/roach88/kindred/internal/merge"
	"github.com/roach88/kindred/internal/record"
	"github.com/roach88/kindred/internal/store"
)

// InterchangeOptions holds flags shared by export and import.
type InterchangeOptions struct {
	*RootOptions
	Role   string // "local" | "remote"
	Output string // export only; empty means stdout
}

func (o *InterchangeOptions) role() (store.Role, error) {
	switch store.Role(o.Role) {
	case store.RoleLocal, store.RoleRemote:
		return store.Role(o.Role), nil
	default:
		return "", fmt.Errorf("invalid store %q: must be local or remote", o.Role)
	}
}

// openStore opens the store selected by --store.
func (o *InterchangeOptions) openStore(cmd *cobra.Command, f *OutputFormatter) (*store.Store, *slog.Logger, error) {
	role, err := o.role()
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, ErrCodeStore, "invalid --store flag", err)
	}
	cfg, logger, err := o.load(cmd, f)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.OpenRoleWithRecovery(cfg.DataDir, role, logger, store.WithPageSize(cfg.PageSize))
	if err != nil {
		return nil, nil, f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open %s store", role), err)
	}
	return s, logger, nil
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InterchangeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export contacts|holidays",
		Short: "Export contacts as vCard or holidays as iCalendar",
		Long: `Export every contact as vCard 4.0, or every holiday as an iCalendar
feed of all-day events.

Example:
  kindred export contacts -o contacts.vcf
  kindred export holidays --store remote > holidays.ics`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"contacts", "holidays"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Role, "store", string(store.RoleLocal), "store to read (local|remote)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path (default stdout)")

	return cmd
}

func runExport(opts *InterchangeOptions, what string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	kind, err := record.ParseKind(what)
	if err != nil || (kind != record.KindContact && kind != record.KindHoliday) {
		return f.Fail(ExitCommandError, ErrCodeInterchange, "export supports contacts or holidays", err)
	}

	s, _, err := opts.openStore(cmd, f)
	if err != nil {
		return err
	}
	defer s.Close()

	recs, err := s.Fetch(cmd.Context(), kind, nil)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to read %s", kind), err)
	}

	w := cmd.OutOrStdout()
	if opts.Output != "" {
		file, err := os.Create(opts.Output)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeInterchange, "failed to create output file", err)
		}
		defer file.Close()
		w = file
	}

	if err := exportRecords(w, kind, recs); err != nil {
		return f.Fail(ExitFailure, ErrCodeInterchange, "export failed", err)
	}
	f.VerboseLog("exported %d %s", len(recs), kind)
	return nil
}

func exportRecords(w io.Writer, kind record.Kind, recs []record.Record) error {
	if kind == record.KindHoliday {
		holidays := make([]*record.Holiday, 0, len(recs))
		for _, r := range recs {
			holidays = append(holidays, r.(*record.Holiday))
		}
		return interchange.ExportHolidays(w, holidays, time.Now())
	}
	contacts := make([]*record.Contact, 0, len(recs))
	for _, r := range recs {
		contacts = append(contacts, r.(*record.Contact))
	}
	return interchange.ExportContacts(w, contacts)
}

// ImportResult summarizes a contact import.
type ImportResult struct {
	Created   int      `json:"created"`
	Merged    int      `json:"merged"`
	Unchanged int      `json:"unchanged"`
	Skipped   []string `json:"skipped,omitempty"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InterchangeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import contacts <file.vcf>",
		Short: "Import contacts from a vCard file",
		Long: `Import contacts from a vCard file. A card whose UID matches an existing
contact is merged into it with the same field rules as a migration pass;
other cards are created. Cards with invalid fields are skipped and the
command exits with status 1.

Example:
  kindred import contacts ./phone-export.vcf`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != string(record.KindContact) {
				return opts.formatter(cmd).Fail(ExitCommandError, ErrCodeInterchange,
					"import supports contacts only", nil)
			}
			return runImport(opts, args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Role, "store", string(store.RoleLocal), "store to write (local|remote)")

	return cmd
}

func runImport(opts *InterchangeOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	file, err := os.Open(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInterchange, "failed to open vCard file", err)
	}
	defer file.Close()

	contacts, skipped, err := interchange.ImportContacts(file, record.UUIDv7Generator{})
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeInterchange, "failed to decode vCard file", err)
	}

	s, logger, err := opts.openStore(cmd, f)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := importContacts(cmd.Context(), s, merge.Default(), contacts)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeStore, "failed to write contacts", err)
	}
	for _, e := range skipped {
		logger.Warn("skipped vCard", "error", e)
		res.Skipped = append(res.Skipped, e.Error())
	}

	if err := f.Render(res, func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "created %d, merged %d, unchanged %d, skipped %d\n",
			res.Created, res.Merged, res.Unchanged, len(res.Skipped))
		return err
	}); err != nil {
		return err
	}
	if len(res.Skipped) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d card(s) skipped", len(res.Skipped)))
	}
	return nil
}

// importContacts creates new contacts and merges known ones into s in one
// transaction. Imported cards are the merge source, stored contacts the target.
func importContacts(ctx context.Context, s *store.Store, policies merge.Table, contacts []*record.Contact) (*ImportResult, error) {
	ids := make([]string, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	existing, err := s.Lookup(ctx, record.KindContact, ids)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{}
	var batch store.Batch
	for _, c := range contacts {
		dst, ok := existing[c.ID]
		if !ok {
			batch.Creates = append(batch.Creates, c)
			existing[c.ID] = c
			res.Created++
			continue
		}
		merged, changed, err := policies.Merge(c, dst)
		if err != nil {
			return nil, err
		}
		if !changed {
			res.Unchanged++
			continue
		}
		batch.Updates = append(batch.Updates, merged)
		res.Merged++
	}

	if batch.Len() == 0 {
		return res, nil
	}
	if err := s.Commit(ctx, batch); err != nil {
		return nil, err
	}
	return res, nil
}
