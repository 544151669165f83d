package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/draftline/draftline/internal/engine"
	"github.com/draftline/draftline/internal/harness"
)

// Error codes for run command output.
const (
	ErrCodeScenarioLoad = "E101" // scenario file missing or malformed
	ErrCodeCycleFailed  = "E102" // save cycle ended in failure
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var deadline time.Duration

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Execute one save cycle for a scenario and report the outcome",
		Long: `Run loads a scenario file, registers its scripted units, marks the dirty
ones, executes a single save-all cycle, and prints the resulting report.

Exits 1 when the cycle did not end in success, so scenarios double as
shell-level assertions.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(rootOpts, args[0], deadline, cmd)
		},
	}

	cmd.Flags().DurationVar(&deadline, "deadline", 0,
		"optional save deadline; pending units become synthetic failures on expiry")

	return cmd
}

func runScenario(opts *RootOptions, path string, deadline time.Duration, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sc, err := harness.Load(path)
	if err != nil {
		_ = formatter.Error(ErrCodeScenarioLoad, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load scenario", err)
	}

	formatter.VerboseLog("Loaded scenario %q with %d unit(s)", sc.Name, len(sc.Units))

	var engineOpts []engine.Option
	if deadline > 0 {
		engineOpts = append(engineOpts, engine.WithSaveDeadline(deadline))
	}

	report, err := harness.Run(cmd.Context(), sc, engineOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeCycleFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "run scenario", err)
	}

	if formatter.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		fmt.Fprint(formatter.Writer, report.Text())
	}

	if !report.Saved {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s: save cycle failed", sc.Name))
	}
	return nil
}
