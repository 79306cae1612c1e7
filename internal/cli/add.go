package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/petlog/internal/app"
	"github.com/roach88/petlog/internal/coerce"
	"github.com/roach88/petlog/internal/logbook"
	"github.com/roach88/petlog/internal/records"
	"github.com/roach88/petlog/internal/schema"
)

// mealAliases maps English meal names to the sheet's meal types.
var mealAliases = map[string]string{
	"morning": logbook.MealMorning,
	"evening": logbook.MealEvening,
	"other":   logbook.MealOther,
}

// AddResult is the output of every add subcommand.
type AddResult struct {
	Worksheet string            `json:"worksheet"`
	Fields    map[string]string `json:"fields"`
}

// NewAddCommand creates the add command and its entry subcommands.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append one entry to the logbook",
		Long: `Append one typed entry. Entries are validated before anything is
written; dates default to today.

Examples:
  petlog add training --duration 12 --stress 2
  petlog add feeding --type morning --amount 95
  petlog add task --name "Place" --frequency daily
  petlog add tasklog --task Place --success 4`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newAddTrainingCommand(rootOpts))
	cmd.AddCommand(newAddFeedingCommand(rootOpts))
	cmd.AddCommand(newAddTaskCommand(rootOpts))
	cmd.AddCommand(newAddTaskLogCommand(rootOpts))

	return cmd
}

func newAddTrainingCommand(rootOpts *RootOptions) *cobra.Command {
	var date, notes string
	var duration float64
	var stress int

	cmd := &cobra.Command{
		Use:           "training",
		Short:         "Log an alone-time training session",
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(rootOpts, cmd, schema.Training, func(a *app.App) (entry, error) {
				day, err := parseDay(date, a.Now())
				if err != nil {
					return nil, err
				}
				return logbook.Training{Date: day, Duration: duration, StressLevel: stress, Notes: notes}, nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "session date (default today)")
	cmd.Flags().Float64Var(&duration, "duration", 0, "minutes alone")
	cmd.Flags().IntVar(&stress, "stress", 0, "stress level 1-5")
	cmd.Flags().StringVar(&notes, "notes", "", "free-text notes")
	_ = cmd.MarkFlagRequired("duration")
	_ = cmd.MarkFlagRequired("stress")

	return cmd
}

func newAddFeedingCommand(rootOpts *RootOptions) *cobra.Command {
	var date, clock, meal, notes string
	var amount float64
	var finished bool

	cmd := &cobra.Command{
		Use:   "feeding",
		Short: "Log a meal",
		Long: `Log a meal. Without --amount the amount of the previous feeding is
used, or 100 g when there is none.`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(rootOpts, cmd, schema.Feeding, func(a *app.App) (entry, error) {
				now := a.Now()
				day, err := parseDay(date, now)
				if err != nil {
					return nil, err
				}
				at := now
				if clock != "" {
					t, ok := coerce.ParseTime(clock)
					if !ok {
						return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid time %q (want HH:MM)", clock))
					}
					at = t
				}
				if !cmd.Flags().Changed("amount") {
					rows, err := a.Store.Load(cmd.Context(), schema.Feeding)
					if err != nil {
						return nil, WrapExitError(ExitFailure, "read Feeding", err)
					}
					amount = float64(logbook.LastFeedingAmount(rows, logbook.DefaultFeedingAmount))
				}
				if alias, ok := mealAliases[strings.ToLower(meal)]; ok {
					meal = alias
				}
				return logbook.Feeding{Date: day, Time: at, Type: meal, Amount: amount, Finished: finished, Notes: notes}, nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "meal date (default today)")
	cmd.Flags().StringVar(&clock, "time", "", "meal time HH:MM (default now)")
	cmd.Flags().StringVar(&meal, "type", "morning", "meal type: morning, evening or other")
	cmd.Flags().Float64Var(&amount, "amount", 0, "grams served (default: previous feeding)")
	cmd.Flags().BoolVar(&finished, "finished", true, "whether the bowl was finished")
	cmd.Flags().StringVar(&notes, "notes", "", "free-text notes")

	return cmd
}

func newAddTaskCommand(rootOpts *RootOptions) *cobra.Command {
	var name, frequency, description string

	cmd := &cobra.Command{
		Use:           "task",
		Short:         "Define a homework task",
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(rootOpts, cmd, schema.Tasks, func(a *app.App) (entry, error) {
				return logbook.NewTask(name, frequency, description), nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&frequency, "frequency", "", "how often to practice")
	cmd.Flags().StringVar(&description, "description", "", "what the task involves")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newAddTaskLogCommand(rootOpts *RootOptions) *cobra.Command {
	var date, task, notes string
	var success int

	cmd := &cobra.Command{
		Use:           "tasklog",
		Short:         "Log a practice of an active task",
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(rootOpts, cmd, schema.TaskLogs, func(a *app.App) (entry, error) {
				day, err := parseDay(date, a.Now())
				if err != nil {
					return nil, err
				}
				tasks, err := a.Store.Load(cmd.Context(), schema.Tasks)
				if err != nil {
					return nil, WrapExitError(ExitFailure, "read Tasks", err)
				}
				if active := logbook.ActiveTasks(tasks); !slices.Contains(active, task) {
					return nil, NewExitError(ExitFailure, fmt.Sprintf("task %q is not active (active: %s)", task, strings.Join(active, ", ")))
				}
				return logbook.TaskLog{Date: day, TaskName: task, Success: success, Notes: notes}, nil
			})
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "practice date (default today)")
	cmd.Flags().StringVar(&task, "task", "", "name of an active task")
	cmd.Flags().IntVar(&success, "success", 0, "success score 1-5")
	cmd.Flags().StringVar(&notes, "notes", "", "free-text notes")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("success")

	return cmd
}

// entry is a typed logbook entry.
type entry interface {
	Validate() []logbook.ValidationError
	ToRecord() records.Record
}

func runAdd(opts *RootOptions, cmd *cobra.Command, ws string, build func(*app.App) (entry, error)) error {
	ctx := cmd.Context()

	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if _, err := a.Store.Ensure(ctx, ws); err != nil {
		return WrapExitError(ExitFailure, "ensure "+ws, err)
	}

	e, err := build(a)
	if err != nil {
		return err
	}
	if err := logbook.Join(e.Validate()); err != nil {
		return WrapExitError(ExitFailure, "invalid "+ws+" entry", err)
	}

	rec := e.ToRecord()
	if err := a.Store.Append(ctx, ws, rec); err != nil {
		return WrapExitError(ExitFailure, "append "+ws, err)
	}

	w, err := a.Store.Worksheet(ctx, ws)
	if err != nil {
		return WrapExitError(ExitFailure, "read "+ws, err)
	}
	result := AddResult{Worksheet: ws, Fields: a.Store.Text(w, rec)}

	return opts.formatter(cmd).Render(result, func(out io.Writer) {
		fmt.Fprintf(out, "✓ Added to %s\n", ws)
		for _, col := range w.Header() {
			if v := result.Fields[col]; v != "" {
				fmt.Fprintf(out, "  %s: %s\n", col, v)
			}
		}
	})
}

// parseDay reads a --date flag. Empty and "today" mean now.
func parseDay(raw string, now time.Time) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "today":
		return now, nil
	case "yesterday":
		return now.AddDate(0, 0, -1), nil
	}
	day, ok := coerce.ParseDate(raw)
	if !ok {
		return time.Time{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid date %q (want YYYY-MM-DD)", raw))
	}
	return day, nil
}
