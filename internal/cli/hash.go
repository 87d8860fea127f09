package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strataengine/strata/internal/ir"
)

// NewHashCommand creates the hash command. It exposes the canonical
// hashing primitive: given a JSON document it prints the schema content
// hash (computed with any top-level hash field removed), optionally the
// canonical serialization itself.
func NewHashCommand(opts *RootOptions) *cobra.Command {
	var printCanonical bool

	cmd := &cobra.Command{
		Use:   "hash <document.json>",
		Short: "Compute the canonical content hash of a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}
			return runHash(out, args[0], printCanonical)
		},
	}

	cmd.Flags().BoolVar(&printCanonical, "canonical", false, "also print the canonical serialization")
	return cmd
}

type hashReport struct {
	Path      string `json:"path"`
	Hash      string `json:"hash"`
	Canonical string `json:"canonical,omitempty"`
}

func runHash(out *OutputFormatter, path string, printCanonical bool) error {
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

	hash, err := ir.SchemaHash(doc)
	if err != nil {
		out.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "hash", err)
	}

	report := hashReport{Path: path, Hash: hash}
	if printCanonical {
		canonical, err := ir.MarshalCanonical(doc)
		if err != nil {
			out.Error(ErrCodeGeneric, err.Error(), nil)
			return WrapExitError(ExitCommandError, "hash", err)
		}
		report.Canonical = string(canonical)
	}

	if out.Format == "json" {
		return out.Success(report)
	}
	fmt.Fprintln(out.Writer, report.Hash)
	if printCanonical {
		fmt.Fprintln(out.Writer, report.Canonical)
	}
	return nil
}
