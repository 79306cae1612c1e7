package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/fvbommel/sortorder"
	"github.com/spf13/cobra"
)

// CheckResult is the output of check.
type CheckResult struct {
	Resource   string   `json:"resource"`
	Backend    string   `json:"backend"`
	Worksheets []string `json:"worksheets"`
	// Missing lists declared worksheets not found on the backend.
	Missing []string `json:"missing"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the backend connection",
		Long: `Connect to the configured backend, verify credentials and list the
worksheets of the logbook. For S3 the caller identity is checked first.`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, cmd)
		},
	}
}

func runCheck(opts *RootOptions, cmd *cobra.Command) error {
	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	names, err := a.Check(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "check failed", err)
	}
	sort.Sort(sortorder.Natural(names))

	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	result := CheckResult{
		Resource:   a.Config.Resource,
		Backend:    a.Config.Backend,
		Worksheets: names,
		Missing:    []string{},
	}
	for _, ws := range a.Registry.Names() {
		if !present[ws] {
			result.Missing = append(result.Missing, ws)
		}
	}

	return opts.formatter(cmd).Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s (%s): %d worksheet(s)\n", result.Resource, result.Backend, len(names))
		for _, n := range names {
			fmt.Fprintf(w, "  %s\n", n)
		}
		if len(result.Missing) > 0 {
			fmt.Fprintf(w, "Missing: %v (run petlog init)\n", result.Missing)
		}
	})
}
