package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/petlog/internal/app"
	"github.com/roach88/petlog/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string

	// appOptions are passed to every app.New; tests inject clocks here.
	appOptions []app.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the petlog CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand(&RootOptions{})
	return cmd
}

func newRootCommand(opts *RootOptions) (*cobra.Command, *RootOptions) {
	cmd := &cobra.Command{
		Use:   "petlog",
		Short: "petlog - pet-care logbook",
		Long: `Keep a dog's training, feeding and homework records in a spreadsheet.

Rows live in a workbook on local disk or in S3; every write is recorded
in a local journal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", config.DefaultFile, "path to config file")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewReplaceCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))

	return cmd, opts
}

// Execute runs the CLI with args and reports any error in the selected
// format. It returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, &RootOptions{}, args, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: stderr, Verbose: opts.Verbose}
	if opts.Format == "json" {
		formatter.Writer = stdout
	}
	var details interface{}
	if ves := validationDetails(err); len(ves) > 0 {
		details = ves
	}
	_ = formatter.Error(ErrorCode(err), err.Error(), details)
	return GetExitCode(err)
}

// open loads the config and builds a session.
func (o *RootOptions) open(cmd *cobra.Command, extra ...app.Option) (*app.App, error) {
	logger := newLogger(o.Verbose, cmd.ErrOrStderr())

	explicit := false
	if f := cmd.Flag("config"); f != nil {
		explicit = f.Changed
	}
	cfg, err := config.Load(o.Config, explicit)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger.Debug("config loaded", "path", o.Config, "backend", cfg.Backend, "resource", cfg.Resource)

	a, err := app.New(cfg, logger, append(append([]app.Option{}, o.appOptions...), extra...)...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open logbook", err)
	}
	return a, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// newLogger configures slog for the session: info by default, debug with
// --verbose.
func newLogger(verbose bool, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		a.Logger.Error("error closing journal", "error", err)
	}
}

// worksheetName matches name case-insensitively against the declared
// worksheets. Unknown names are returned unchanged.
func worksheetName(a *app.App, name string) string {
	for _, ws := range a.Registry.Names() {
		if strings.EqualFold(ws, name) {
			return ws
		}
	}
	return name
}

// exactArgs is cobra.ExactArgs with a command-error exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
