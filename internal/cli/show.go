package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Last int
}

// ShowResult is the output of show.
type ShowResult struct {
	Worksheet string        `json:"worksheet"`
	Header    []string      `json:"header"`
	Rows      []SnapshotRow `json:"rows"`
	// Warning is set when the worksheet could not be read.
	Warning string `json:"warning,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <worksheet>",
		Short: "Print the rows of a worksheet",
		Long: `Print every row of a worksheet with its index. A worksheet that
cannot be read is shown empty with a warning.

Examples:
  petlog show feeding
  petlog show Training --last 5 --format json`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Last, "last", "n", 0, "show only the last N rows")

	return cmd
}

func runShow(opts *ShowOptions, name string, cmd *cobra.Command) error {
	ctx := cmd.Context()

	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ws := worksheetName(a, name)
	rows := a.Store.ReadAll(ctx, ws)
	result := ShowResult{Worksheet: ws, Header: []string{}, Rows: []SnapshotRow{}}

	if readErr := a.Store.LastReadError(ws); readErr != nil {
		result.Warning = readErr.Error()
	} else if w, err := a.Store.Worksheet(ctx, ws); err == nil {
		result.Header = w.Header()
		if opts.Last > 0 && len(rows) > opts.Last {
			rows = rows[len(rows)-opts.Last:]
		}
		for _, row := range rows {
			result.Rows = append(result.Rows, SnapshotRow{Index: row.Index, Fields: a.Store.Text(w, row.Record)})
		}
	}

	return opts.formatter(cmd).Render(result, func(out io.Writer) {
		if result.Warning != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", result.Warning)
		}
		if len(result.Rows) == 0 {
			fmt.Fprintf(out, "%s: no rows\n", ws)
			return
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "#\t%s\n", strings.Join(result.Header, "\t"))
		for _, row := range result.Rows {
			cells := make([]string, len(result.Header))
			for i, col := range result.Header {
				cells[i] = row.Fields[col]
			}
			fmt.Fprintf(tw, "%d\t%s\n", row.Index, strings.Join(cells, "\t"))
		}
		tw.Flush()
	})
}
