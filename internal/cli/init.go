package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/petlog/internal/config"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	WriteConfig bool
}

// InitResult is the output of init.
type InitResult struct {
	Created       []string `json:"created"`
	ConfigWritten string   `json:"config_written,omitempty"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the logbook worksheets",
		Long: `Create every declared worksheet that does not exist yet, with its
header row. Existing worksheets are left alone.

Examples:
  petlog init
  petlog init --write-config --config ./maple.yaml`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.WriteConfig, "write-config", false, "write the default config file if it does not exist")

	return cmd
}

func runInit(opts *InitOptions, cmd *cobra.Command) error {
	result := InitResult{}

	if opts.WriteConfig {
		if _, err := os.Stat(opts.Config); os.IsNotExist(err) {
			if err := config.Default().Save(opts.Config); err != nil {
				return WrapExitError(ExitCommandError, "failed to write config", err)
			}
			result.ConfigWritten = opts.Config
		}
	}

	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	created, err := a.Init(cmd.Context())
	result.Created = created
	if err != nil {
		return WrapExitError(ExitFailure, "init failed", err)
	}

	return opts.formatter(cmd).Render(result, func(w io.Writer) {
		if result.ConfigWritten != "" {
			fmt.Fprintf(w, "Wrote %s\n", result.ConfigWritten)
		}
		if len(created) == 0 {
			fmt.Fprintln(w, "All worksheets already exist")
			return
		}
		for _, ws := range created {
			fmt.Fprintf(w, "Created %s\n", ws)
		}
	})
}
