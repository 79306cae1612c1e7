package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/petlog/internal/app"
	"github.com/roach88/petlog/internal/reconcile"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Mode   string
	DryRun bool
}

// ReconcileResult is the output of reconcile.
type ReconcileResult struct {
	Worksheet   string          `json:"worksheet"`
	Mode        string          `json:"mode"`
	DryRun      bool            `json:"dry_run,omitempty"`
	NoChanges   bool            `json:"no_changes"`
	OperationID string          `json:"operation_id,omitempty"`
	Deleted     []int           `json:"deleted"`
	Updated     []int           `json:"updated"`
	Skipped     int             `json:"skipped,omitempty"`
	Changes     []ReconcileEdit `json:"changes,omitempty"`
}

// ReconcileEdit names the columns changed in one row.
type ReconcileEdit struct {
	Index   int      `json:"index"`
	Columns []string `json:"columns"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <worksheet> <edited.yaml>",
		Short: "Apply an edited snapshot to a worksheet",
		Long: `Compare an edited snapshot with the rows it was exported from and
write the difference. Rows dropped from the file are deleted; rows whose
values changed are rewritten.

Rows are matched by index. Rows appended after the snapshot are left
alone. If any exported row changed or moved since the snapshot was taken,
nothing is written; take a new snapshot.

Modes:
  batch         apply every deletion, then every update (default)
  first-change  apply the deletions if any, otherwise only the first change

Examples:
  petlog reconcile feeding feeding.yaml
  petlog reconcile feeding feeding.yaml --dry-run
  petlog reconcile Training training.yaml --mode first-change`,
		Args:          exactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "", "apply mode: batch or first-change (default: from config)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "show the changes without writing")

	return cmd
}

func runReconcile(opts *ReconcileOptions, name, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()

	file, err := ReadSnapshotFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read snapshot", err)
	}

	var extra []app.Option
	if opts.Mode != "" {
		mode, err := reconcile.ParseMode(opts.Mode)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid mode", err)
		}
		extra = append(extra, app.WithMode(mode))
	}

	a, err := opts.open(cmd, extra...)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ws := worksheetName(a, name)
	if file.Worksheet != "" && !strings.EqualFold(file.Worksheet, ws) {
		return NewExitError(ExitCommandError, fmt.Sprintf("snapshot is of %s, not %s", file.Worksheet, ws))
	}

	if file.Digest == "" || file.To < file.From {
		return NewExitError(ExitCommandError, `snapshot has no row range; export it with "petlog snapshot"`)
	}

	all, err := a.Store.Load(ctx, ws)
	if err != nil {
		return WrapExitError(ExitFailure, "read "+ws, err)
	}
	w, err := a.Store.Worksheet(ctx, ws)
	if err != nil {
		return WrapExitError(ExitFailure, "read "+ws, err)
	}
	original := window(all, file.From, file.To)
	digest, err := rowsDigest(a.Store, w, original)
	if err != nil {
		return WrapExitError(ExitFailure, "read "+ws, err)
	}
	if len(original) != file.To-file.From || digest != file.Digest {
		return WrapExitError(ExitFailure, "reconcile "+ws, ErrStaleSnapshot)
	}
	edited := file.rows(a.Store, w, original)

	plan, err := a.Reconciler.Plan(ctx, ws, original, edited)
	if err != nil {
		return WrapExitError(ExitFailure, "reconcile "+ws, err)
	}

	mode := opts.Mode
	if mode == "" {
		mode = a.Config.Reconcile.Mode
	}
	result := ReconcileResult{
		Worksheet: ws,
		Mode:      mode,
		DryRun:    opts.DryRun,
		NoChanges: plan.Empty(),
		Deleted:   []int{},
		Updated:   []int{},
	}
	for _, u := range plan.Updates {
		result.Changes = append(result.Changes, ReconcileEdit{Index: u.Index, Columns: u.Columns()})
	}

	if opts.DryRun {
		result.Deleted = append(result.Deleted, plan.Deletes...)
		for _, u := range plan.Updates {
			result.Updated = append(result.Updated, u.Index)
		}
	} else if !plan.Empty() {
		res, err := a.Reconciler.Apply(ctx, ws, original, edited)
		result.OperationID = res.OperationID
		if err != nil {
			return WrapExitError(ExitFailure,
				fmt.Sprintf("reconcile %s stopped after %d deletion(s) and %d update(s)", ws, len(res.Deleted), len(res.Updated)), err)
		}
		result.Deleted = res.Deleted
		result.Updated = res.Updated
		result.Skipped = res.Skipped
	}

	return opts.formatter(cmd).Render(result, func(out io.Writer) {
		printReconcile(out, result)
	})
}

func printReconcile(out io.Writer, r ReconcileResult) {
	if r.NoChanges {
		fmt.Fprintf(out, "%s: no changes\n", r.Worksheet)
		return
	}
	verb := "Applied"
	if r.DryRun {
		verb = "Would apply"
	}
	fmt.Fprintf(out, "%s to %s (%s):\n", verb, r.Worksheet, r.Mode)
	for _, idx := range r.Deleted {
		fmt.Fprintf(out, "  delete row %d\n", idx)
	}
	columns := make(map[int][]string, len(r.Changes))
	for _, c := range r.Changes {
		columns[c.Index] = c.Columns
	}
	for _, idx := range r.Updated {
		fmt.Fprintf(out, "  update row %d: %s\n", idx, strings.Join(columns[idx], ", "))
	}
	if r.Skipped > 0 {
		fmt.Fprintf(out, "  %d change(s) left for the next run\n", r.Skipped)
	}
}
