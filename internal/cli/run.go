package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/strataengine/strata/internal/engine"
	"github.com/strataengine/strata/internal/ir"
	"github.com/strataengine/strata/internal/store"
	"github.com/strataengine/strata/internal/validator"
)

// NewRunCommand creates the run command. It executes one intent against
// a run's head snapshot and appends the result to the lineage store.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	var (
		dbPath     string
		schemaPath string
		runID      string
		inputJSON  string
	)

	cmd := &cobra.Command{
		Use:   "run <action>",
		Short: "Execute an action against a run's head snapshot",
		Long: `Run loads a schema, executes one intent against the head snapshot of
the named run, and appends the resulting snapshot and trace to the
lineage store. A missing run is created at version 0 first; omit --run
to start a fresh run with a generated id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}
			return runRun(cmd, out, dbPath, schemaPath, runID, args[0], inputJSON)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "strata.db", "lineage store path")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema JSON document (required)")
	cmd.Flags().StringVar(&runID, "run", "", "run id (generated when omitted)")
	cmd.Flags().StringVar(&inputJSON, "input", "", "intent input as a JSON object")
	cmd.MarkFlagRequired("schema")
	return cmd
}

type runReport struct {
	RunID         string `json:"run_id"`
	Status        string `json:"status"`
	ResultVersion int64  `json:"result_version"`
	TerminatedBy  string `json:"terminated_by"`
	StateHash     string `json:"state_hash"`
	ErrorCode     string `json:"error_code,omitempty"`
	Requirement   string `json:"requirement,omitempty"`
}

func runRun(cmd *cobra.Command, out *OutputFormatter, dbPath, schemaPath, runID, action, inputJSON string) error {
	schema, err := loadValidatedSchema(out, schemaPath)
	if err != nil {
		return err
	}

	input, err := parseInput(inputJSON)
	if err != nil {
		out.Error(ErrCodeParse, fmt.Sprintf("input: %v", err), nil)
		return NewExitError(ExitCommandError, "parse input")
	}

	db, err := store.Open(dbPath)
	if err != nil {
		out.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if err := db.WriteSchema(ctx, schema); err != nil {
		out.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "store schema", err)
	}

	if runID == "" {
		runID = uuid.NewString()
	}
	snap, err := db.ReadHead(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		snap, err = db.CreateRun(ctx, runID, schema.Hash, time.Now().UTC())
	}
	if err != nil {
		out.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load run", err)
	}

	eng := engine.New()
	result, err := eng.Compute(schema, snap, ir.Intent{Type: action, Input: input})
	if err != nil {
		out.Error(ErrCodeExecution, err.Error(), nil)
		return WrapExitError(ExitCommandError, "compute", err)
	}

	trace := store.TraceRecord{
		Intent:        result.Trace.Intent,
		BaseVersion:   result.Trace.BaseVersion,
		ResultVersion: result.Trace.ResultVersion,
		DurationMs:    result.Trace.DurationMs,
		TerminatedBy:  result.Trace.TerminatedBy,
	}
	if err := db.AppendResult(ctx, runID, result.Snapshot, trace); err != nil {
		out.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "append result", err)
	}

	stateHash, err := ir.StateHash(result.Snapshot.Data, result.Snapshot.Computed)
	if err != nil {
		out.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "state hash", err)
	}

	report := runReport{
		RunID:         runID,
		Status:        string(result.Status),
		ResultVersion: result.Trace.ResultVersion,
		TerminatedBy:  result.Trace.TerminatedBy,
		StateHash:     stateHash,
	}
	if result.Snapshot.System.LastError != nil && result.Status == ir.StatusError {
		report.ErrorCode = result.Snapshot.System.LastError.Code
	}
	if len(result.Snapshot.System.PendingRequirements) > 0 {
		report.Requirement = result.Snapshot.System.PendingRequirements[0].Type
	}

	if out.Format == "json" {
		return out.Success(report)
	}
	fmt.Fprintf(out.Writer, "run %s  v%d  %s (%s)\n", report.RunID, report.ResultVersion, report.Status, report.TerminatedBy)
	if report.ErrorCode != "" {
		fmt.Fprintf(out.Writer, "  error: %s\n", report.ErrorCode)
	}
	if report.Requirement != "" {
		fmt.Fprintf(out.Writer, "  pending requirement: %s\n", report.Requirement)
	}
	fmt.Fprintf(out.Writer, "  state hash: %s\n", report.StateHash)
	return nil
}

func loadValidatedSchema(out *OutputFormatter, path string) (*ir.DomainSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		out.Error(ErrCodeNotFound, fmt.Sprintf("read %s: %v", path, err), nil)
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("read %s", path))
	}
	doc, err := ir.DecodeValue(data)
	if err != nil {
		out.Error(ErrCodeParse, fmt.Sprintf("parse %s: %v", path, err), nil)
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("parse %s", path))
	}

	verdict := validator.Validate(doc)
	if !verdict.Valid {
		out.Error(ErrCodeInvalid, fmt.Sprintf("schema %s failed validation", path), verdict.Errors)
		return nil, NewExitError(ExitFailure, "schema invalid")
	}

	schema, err := ir.DecodeSchema(data)
	if err != nil {
		out.Error(ErrCodeParse, fmt.Sprintf("decode %s: %v", path, err), nil)
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("decode %s", path))
	}
	return schema, nil
}

func parseInput(inputJSON string) (map[string]any, error) {
	if inputJSON == "" {
		return nil, nil
	}
	var raw any
	if err := json.Unmarshal([]byte(inputJSON), &raw); err != nil {
		return nil, err
	}
	normalized, err := ir.NormalizeValue(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := normalized.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("input is %s, want object", ir.ValueType(normalized))
	}
	return obj, nil
}
