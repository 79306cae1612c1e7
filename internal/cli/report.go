package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/petlog/internal/coerce"
	"github.com/roach88/petlog/internal/logbook"
	"github.com/roach88/petlog/internal/schema"
)

// FeedingReport is the output of report feeding.
type FeedingReport struct {
	Days []logbook.DailyTotal `json:"days"`
}

// TrainingReport is the output of report training.
type TrainingReport struct {
	Sessions []logbook.Point `json:"sessions"`
	Summary  logbook.Summary `json:"summary"`
}

// TaskReport summarizes the success scores of one active task.
type TaskReport struct {
	Task    string          `json:"task"`
	Summary logbook.Summary `json:"summary"`
}

// TasksReport is the output of report tasks.
type TasksReport struct {
	Tasks []TaskReport `json:"tasks"`
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the logbook",
		Long: `Aggregate worksheet rows into series. Rows with unreadable dates are
left out; unreadable feeding amounts count as zero.

Examples:
  petlog report feeding
  petlog report training --format json
  petlog report tasks`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "feeding",
		Short:         "Grams eaten per day",
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportFeeding(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "training",
		Short:         "Alone-time durations over time",
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportTraining(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "tasks",
		Short:         "Success scores of the active tasks",
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportTasks(rootOpts, cmd)
		},
	})

	return cmd
}

func runReportFeeding(opts *RootOptions, cmd *cobra.Command) error {
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	rows, err := a.Store.Load(cmd.Context(), schema.Feeding)
	if err != nil {
		return WrapExitError(ExitFailure, "read "+schema.Feeding, err)
	}
	report := FeedingReport{Days: logbook.DailyFeeding(rows)}

	return opts.formatter(cmd).Render(report, func(out io.Writer) {
		if len(report.Days) == 0 {
			fmt.Fprintln(out, "No feedings logged")
			return
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Date\tMeals\tGrams\t")
		for _, d := range report.Days {
			fmt.Fprintf(tw, "%s\t%d\t%g\t\n", d.Date.Format(coerce.DateLayout), d.Meals, d.Amount)
		}
		tw.Flush()
	})
}

func runReportTraining(opts *RootOptions, cmd *cobra.Command) error {
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	rows, err := a.Store.Load(cmd.Context(), schema.Training)
	if err != nil {
		return WrapExitError(ExitFailure, "read "+schema.Training, err)
	}
	points := logbook.TrainingSeries(rows)
	report := TrainingReport{Sessions: points, Summary: logbook.Summarize(points)}

	return opts.formatter(cmd).Render(report, func(out io.Writer) {
		if len(points) == 0 {
			fmt.Fprintln(out, "No training sessions logged")
			return
		}
		for _, p := range points {
			fmt.Fprintf(out, "%s  %g min\n", p.Date.Format(coerce.DateLayout), p.Value)
		}
		printSummary(out, report.Summary, "min")
	})
}

func runReportTasks(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	tasks, err := a.Store.Load(ctx, schema.Tasks)
	if err != nil {
		return WrapExitError(ExitFailure, "read "+schema.Tasks, err)
	}
	logs, err := a.Store.Load(ctx, schema.TaskLogs)
	if err != nil {
		return WrapExitError(ExitFailure, "read "+schema.TaskLogs, err)
	}

	report := TasksReport{Tasks: []TaskReport{}}
	for _, name := range logbook.ActiveTasks(tasks) {
		report.Tasks = append(report.Tasks, TaskReport{
			Task:    name,
			Summary: logbook.Summarize(logbook.TaskSuccess(logs, name)),
		})
	}

	return opts.formatter(cmd).Render(report, func(out io.Writer) {
		if len(report.Tasks) == 0 {
			fmt.Fprintln(out, "No active tasks")
			return
		}
		for _, t := range report.Tasks {
			fmt.Fprintf(out, "%s:\n", t.Task)
			printSummary(out, t.Summary, "/5")
		}
	})
}

func printSummary(out io.Writer, s logbook.Summary, unit string) {
	if s.Count == 0 {
		fmt.Fprintln(out, "  not logged yet")
		return
	}
	fmt.Fprintf(out, "  %d entries, %s to %s\n", s.Count, s.First.Format(coerce.DateLayout), s.Last.Format(coerce.DateLayout))
	fmt.Fprintf(out, "  min %g%s  max %g%s  mean %.1f%s\n", s.Min, unit, s.Max, unit, s.Mean, unit)
}
