package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strataengine/strata/internal/compiler"
	"github.com/strataengine/strata/internal/ir"
	"github.com/strataengine/strata/internal/validator"
)

// NewCompileCommand creates the compile command. It evaluates CUE
// domain definitions, stamps canonical hashes, validates the result,
// and writes one schema JSON document per declared schema.
func NewCompileCommand(opts *RootOptions) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "compile <definitions-dir>",
		Short: "Compile CUE domain definitions into schema documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}
			return runCompile(out, args[0], outDir)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory for schema JSON files")
	return cmd
}

type compileReport struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Hash    string `json:"hash"`
	Output  string `json:"output"`
}

func runCompile(out *OutputFormatter, dir, outDir string) error {
	schemas, err := compiler.LoadDir(dir)
	if err != nil {
		out.Error(ErrCodeCompile, err.Error(), nil)
		return WrapExitError(ExitCommandError, "compile", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		out.Error(ErrCodeWriteFailed, fmt.Sprintf("create %s: %v", outDir, err), nil)
		return WrapExitError(ExitCommandError, "compile", err)
	}

	reports := make([]compileReport, 0, len(schemas))
	for _, schema := range schemas {
		verdict := validator.Validate(schema.Raw)
		if !verdict.Valid {
			out.Error(ErrCodeInvalid, fmt.Sprintf("schema %s failed validation", schema.ID), verdict.Errors)
			return NewExitError(ExitFailure, fmt.Sprintf("schema %s invalid", schema.ID))
		}

		document, err := ir.MarshalCanonical(schema.Raw)
		if err != nil {
			out.Error(ErrCodeGeneric, fmt.Sprintf("serialize %s: %v", schema.ID, err), nil)
			return WrapExitError(ExitCommandError, "compile", err)
		}

		path := filepath.Join(outDir, schemaFileName(schema))
		if err := os.WriteFile(path, append(document, '\n'), 0o644); err != nil {
			out.Error(ErrCodeWriteFailed, fmt.Sprintf("write %s: %v", path, err), nil)
			return WrapExitError(ExitCommandError, "compile", err)
		}

		reports = append(reports, compileReport{
			ID:      schema.ID,
			Version: schema.Version,
			Hash:    schema.Hash,
			Output:  path,
		})
		out.VerboseLog("compiled %s %s -> %s", schema.ID, schema.Version, path)
	}

	if out.Format == "json" {
		return out.Success(reports)
	}
	for _, report := range reports {
		fmt.Fprintf(out.Writer, "%s %s  %s  %s\n", report.ID, report.Version, report.Hash, report.Output)
	}
	return nil
}

// schemaFileName derives a filesystem-safe name from the schema id.
func schemaFileName(schema *ir.DomainSchema) string {
	name := schema.ID
	if i := strings.Index(name, "://"); i >= 0 {
		name = name[i+3:]
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	return name + ".json"
}
