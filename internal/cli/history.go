package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/petlog/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Worksheet string
	Operation string
	Limit     int
}

// HistoryResult is the output of history.
type HistoryResult struct {
	Entries []journal.Entry `json:"entries"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled writes",
		Long: `List the writes recorded in the journal, oldest first. Entries of
one reconcile share an operation id.

Examples:
  petlog history
  petlog history --worksheet Feeding --limit 20
  petlog history --operation 0190f1c2-...`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Worksheet, "worksheet", "w", "", "only entries of this worksheet")
	cmd.Flags().StringVar(&opts.Operation, "operation", "", "only entries of this operation id")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "only the most recent N entries")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if a.Journal == nil {
		return NewExitError(ExitCommandError, "journal is disabled (set journal.path in the config)")
	}

	var entries []journal.Entry
	if opts.Operation != "" {
		entries, err = a.Journal.Operation(ctx, opts.Operation)
	} else {
		ws := opts.Worksheet
		if ws != "" {
			ws = worksheetName(a, ws)
		}
		entries, err = a.Journal.List(ctx, journal.Filter{Worksheet: ws, Limit: opts.Limit})
	}
	if err != nil {
		return WrapExitError(ExitFailure, "read journal", err)
	}

	result := HistoryResult{Entries: entries}
	return opts.formatter(cmd).Render(result, func(out io.Writer) {
		if len(entries) == 0 {
			fmt.Fprintln(out, "No entries")
			return
		}
		for _, e := range entries {
			fmt.Fprintf(out, "[%d] %s %-7s %s", e.Seq, e.RecordedAt.Format("2006-01-02 15:04:05"), e.Kind, e.Worksheet)
			if e.RowIndex != journal.NoIndex {
				fmt.Fprintf(out, " row %d", e.RowIndex)
			}
			if e.OperationID != e.ID {
				fmt.Fprintf(out, " (op %s)", e.OperationID)
			}
			fmt.Fprintln(out)
		}
	})
}
