package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strataengine/strata/internal/harness"
)

// NewTestCommand creates the test command. It runs scenario files
// through the conformance harness and reports per-scenario results.
func NewTestCommand(opts *RootOptions) *cobra.Command {
	var checkDeterminism bool

	cmd := &cobra.Command{
		Use:   "test <scenario.yaml> [more...]",
		Short: "Run conformance scenarios",
		Long: `Test executes scenario YAML files against the engine. Each scenario
names a schema document, a fixed timestamp, and a sequence of intents
with expectations. Exit code 1 means at least one expectation failed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}
			return runTest(out, args, checkDeterminism)
		},
	}

	cmd.Flags().BoolVar(&checkDeterminism, "determinism", false, "run each scenario twice and compare state hashes")
	return cmd
}

type testReport struct {
	Path     string   `json:"path"`
	Scenario string   `json:"scenario"`
	Pass     bool     `json:"pass"`
	Steps    int      `json:"steps"`
	Errors   []string `json:"errors,omitempty"`
}

func runTest(out *OutputFormatter, paths []string, checkDeterminism bool) error {
	reports := make([]testReport, 0, len(paths))
	failed := false

	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			out.Error(ErrCodeParse, fmt.Sprintf("load %s: %v", path, err), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("load %s", path), err)
		}

		result, err := harness.Run(scenario)
		if err != nil {
			out.Error(ErrCodeExecution, fmt.Sprintf("run %s: %v", path, err), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("run %s", path), err)
		}

		report := testReport{
			Path:     path,
			Scenario: scenario.Name,
			Pass:     result.Pass,
			Steps:    len(result.Trace),
			Errors:   result.Errors,
		}

		if checkDeterminism && report.Pass {
			if err := harness.VerifyDeterminism(scenario); err != nil {
				report.Pass = false
				report.Errors = append(report.Errors, err.Error())
			}
		}

		if !report.Pass {
			failed = true
		}
		reports = append(reports, report)
	}

	if out.Format == "json" {
		if err := out.Success(reports); err != nil {
			return err
		}
	} else {
		for _, report := range reports {
			if report.Pass {
				fmt.Fprintf(out.Writer, "PASS %s (%s, %d steps)\n", report.Path, report.Scenario, report.Steps)
				continue
			}
			fmt.Fprintf(out.Writer, "FAIL %s (%s)\n", report.Path, report.Scenario)
			for _, msg := range report.Errors {
				fmt.Fprintf(out.Writer, "  %s\n", msg)
			}
		}
	}

	if failed {
		return NewExitError(ExitFailure, "scenario failures")
	}
	return nil
}
