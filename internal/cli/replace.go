package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/petlog/internal/records"
	"github.com/roach88/petlog/internal/sheet"
)

// ReplaceResult is the output of replace.
type ReplaceResult struct {
	Worksheet string   `json:"worksheet"`
	Header    []string `json:"header"`
	Rows      int      `json:"rows"`
}

// NewReplaceCommand creates the replace command.
func NewReplaceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replace <worksheet> <file.yaml>",
		Short: "Overwrite a worksheet with the rows of a file",
		Long: `Clear a worksheet and write the rows of a YAML file in the snapshot
format. Row indices in the file are ignored; rows are written in file order.
An optional header list changes the column layout.

Examples:
  petlog replace tasks tasks.yaml`,
		Args:          exactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplace(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runReplace(opts *RootOptions, name, path string, cmd *cobra.Command) error {
	ctx := cmd.Context()

	file, err := ReadSnapshotFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read rows", err)
	}

	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ws := worksheetName(a, name)
	if file.Worksheet != "" && !strings.EqualFold(file.Worksheet, ws) {
		return NewExitError(ExitCommandError, fmt.Sprintf("file is for %s, not %s", file.Worksheet, ws))
	}

	header := file.Header
	if len(header) == 0 {
		declared, ok := a.Registry.Lookup(ws)
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("%s has no declared layout; list a header in the file", ws))
		}
		header = declared.Header()
	}
	w := a.Registry.Resolve(ws, header)

	recs := make([]records.Record, len(file.Rows))
	for i, r := range file.Rows {
		recs[i] = a.Store.Decode(w, r.Fields)
	}

	if _, declared := a.Registry.Lookup(ws); declared {
		if _, err := a.Store.Ensure(ctx, ws); err != nil {
			return WrapExitError(ExitFailure, "ensure "+ws, err)
		}
	}
	if err := a.Store.ReplaceAll(ctx, ws, header, recs); err != nil {
		if sheet.IsPartialWrite(err) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s may be partially written; check it before retrying\n", ws)
		}
		return WrapExitError(ExitFailure, "replace "+ws, err)
	}

	result := ReplaceResult{Worksheet: ws, Header: header, Rows: len(recs)}
	return opts.formatter(cmd).Render(result, func(out io.Writer) {
		fmt.Fprintf(out, "✓ Replaced %s with %d row(s)\n", ws, len(recs))
	})
}
