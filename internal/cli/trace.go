package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strataengine/strata/internal/store"
)

// NewTraceCommand creates the trace command. It lists the execution
// traces of a run, optionally filtered by action, status, or
// termination reason.
func NewTraceCommand(opts *RootOptions) *cobra.Command {
	var (
		dbPath string
		runID  string
		filter store.TraceFilter
	)

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List a run's execution traces",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}
			return runTrace(cmd, out, dbPath, runID, filter)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "strata.db", "lineage store path")
	cmd.Flags().StringVar(&runID, "run", "", "run id (required)")
	cmd.Flags().StringVar(&filter.Action, "action", "", "only traces for this action")
	cmd.Flags().StringVar(&filter.Status, "status", "", "only traces whose snapshot has this status")
	cmd.Flags().StringVar(&filter.TerminatedBy, "terminated-by", "", "only traces with this termination reason")
	cmd.Flags().Int64Var(&filter.SinceVersion, "since", 0, "only traces at or after this version")
	cmd.MarkFlagRequired("run")
	return cmd
}

type traceReport struct {
	Action        string  `json:"action"`
	BaseVersion   int64   `json:"base_version"`
	ResultVersion int64   `json:"result_version"`
	DurationMs    float64 `json:"duration_ms"`
	TerminatedBy  string  `json:"terminated_by"`
}

func runTrace(cmd *cobra.Command, out *OutputFormatter, dbPath, runID string, filter store.TraceFilter) error {
	db, err := store.Open(dbPath)
	if err != nil {
		out.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open store", err)
	}
	defer db.Close()

	traces, err := db.QueryTraces(cmd.Context(), runID, filter)
	if err != nil {
		out.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "query traces", err)
	}

	reports := make([]traceReport, 0, len(traces))
	for _, trace := range traces {
		reports = append(reports, traceReport{
			Action:        trace.Intent.Type,
			BaseVersion:   trace.BaseVersion,
			ResultVersion: trace.ResultVersion,
			DurationMs:    trace.DurationMs,
			TerminatedBy:  trace.TerminatedBy,
		})
	}

	if out.Format == "json" {
		return out.Success(reports)
	}
	if len(reports) == 0 {
		fmt.Fprintf(out.Writer, "no traces for run %s\n", runID)
		return nil
	}
	for _, report := range reports {
		fmt.Fprintf(out.Writer, "v%d -> v%d  %-20s %s  %.1fms\n",
			report.BaseVersion, report.ResultVersion, report.Action, report.TerminatedBy, report.DurationMs)
	}
	return nil
}
