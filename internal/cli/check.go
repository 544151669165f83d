package cli

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/spf13/cobra"
)

//go:embed scenario_schema.cue
var scenarioSchema string

// Error codes for check command output.
const (
	ErrCodeFileRead = "E201" // scenario file unreadable
	ErrCodeSchema   = "E202" // scenario violates the schema
)

// SchemaError is one schema violation with its source position.
type SchemaError struct {
	Line    int    `json:"line,omitempty"`
	Message string `json:"message"`
}

// CheckResult holds schema check results.
type CheckResult struct {
	Valid  bool          `json:"valid"`
	Errors []SchemaError `json:"errors,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <scenario.yaml>",
		Short: "Check a scenario file against the schema without running it",
		Long: `Check validates scenario YAML against the embedded CUE schema: required
fields, submit outcome names, non-negative settle times, unit shape. Faster
feedback than running the scenario and failing halfway through.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodeFileRead, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read scenario", err)
	}

	schemaErrs, err := CheckScenarioBytes(path, data)
	if err != nil {
		_ = formatter.Error(ErrCodeSchema, err.Error(), nil)
		return WrapExitError(ExitCommandError, "check scenario", err)
	}

	if len(schemaErrs) == 0 {
		if formatter.Format == "json" {
			return formatter.Success(CheckResult{Valid: true})
		}
		fmt.Fprintln(formatter.Writer, "✓ Scenario valid")
		return nil
	}

	if formatter.Format == "json" {
		resp := CLIResponse{
			Status: "error",
			Data:   CheckResult{Valid: false, Errors: schemaErrs},
			Error: &CLIError{
				Code:    ErrCodeSchema,
				Message: schemaErrs[0].Message,
			},
		}
		if err := formatter.Success(resp); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(formatter.Writer, "✗ Scenario invalid")
		fmt.Fprintln(formatter.Writer)
		for _, e := range schemaErrs {
			if e.Line > 0 {
				fmt.Fprintf(formatter.Writer, "  line %d: %s\n", e.Line, e.Message)
			} else {
				fmt.Fprintf(formatter.Writer, "  %s\n", e.Message)
			}
		}
	}

	return NewExitError(ExitFailure, fmt.Sprintf("schema check failed with %d error(s)", len(schemaErrs)))
}

// CheckScenarioBytes validates scenario YAML against the embedded CUE
// schema. The returned slice is empty for a conforming scenario; a non-nil
// error marks a problem with the schema or the YAML itself, not a violation.
func CheckScenarioBytes(filename string, data []byte) ([]SchemaError, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(scenarioSchema, cue.Filename("scenario_schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Scenario"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Scenario: %w", err)
	}

	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return []SchemaError{{Message: fmt.Sprintf("parse yaml: %v", err)}}, nil
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return []SchemaError{{Message: fmt.Sprintf("build yaml: %v", err)}}, nil
	}

	unified := def.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		var out []SchemaError
		for _, e := range cueerrors.Errors(err) {
			se := SchemaError{Message: e.Error()}
			if pos := e.Position(); pos.IsValid() {
				se.Line = pos.Line()
			}
			out = append(out, se)
		}
		return out, nil
	}

	return nil, nil
}
