package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strataengine/strata/internal/ir"
	"github.com/strataengine/strata/internal/validator"
)

// NewValidateCommand creates the validate command. It runs the full
// static analysis over one or more schema documents and reports every
// error found, not just the first.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema.json> [more...]",
		Short: "Validate schema documents",
		Long: `Validate runs static analysis over schema JSON documents:
structural shape, id/version grammar, content hash integrity, computed
dependency completeness and acyclicity, path scoping, and call-graph
acyclicity. Exit code 1 means at least one schema is invalid.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}
			return runValidate(out, args)
		},
	}
	return cmd
}

type validateReport struct {
	Path   string                      `json:"path"`
	Valid  bool                        `json:"valid"`
	Errors []validator.ValidationError `json:"errors,omitempty"`
}

func runValidate(out *OutputFormatter, paths []string) error {
	reports := make([]validateReport, 0, len(paths))
	failed := false

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			out.Error(ErrCodeNotFound, fmt.Sprintf("read %s: %v", path, err), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("read %s", path))
		}
		doc, err := ir.DecodeValue(data)
		if err != nil {
			out.Error(ErrCodeParse, fmt.Sprintf("parse %s: %v", path, err), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("parse %s", path))
		}

		verdict := validator.Validate(doc)
		reports = append(reports, validateReport{
			Path:   path,
			Valid:  verdict.Valid,
			Errors: verdict.Errors,
		})
		if !verdict.Valid {
			failed = true
		}
	}

	if out.Format == "json" {
		if err := out.Success(reports); err != nil {
			return err
		}
	} else {
		for _, report := range reports {
			if report.Valid {
				fmt.Fprintf(out.Writer, "%s: valid\n", report.Path)
				continue
			}
			fmt.Fprintf(out.Writer, "%s: INVALID (%d errors)\n", report.Path, len(report.Errors))
			for _, verr := range report.Errors {
				fmt.Fprintf(out.Writer, "  %s\n", formatValidationError(verr))
			}
		}
	}

	if failed {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

func formatValidationError(verr validator.ValidationError) string {
	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(verr.Code)
	sb.WriteString("]")
	if verr.Path != "" {
		sb.WriteString(" ")
		sb.WriteString(verr.Path)
		sb.WriteString(":")
	}
	sb.WriteString(" ")
	sb.WriteString(verr.Message)
	return sb.String()
}
