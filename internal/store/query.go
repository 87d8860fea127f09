package store

import (
	"context"
	"fmt"
	"strings"
)

// TraceFilter narrows a trace listing. Zero-valued fields are ignored.
type TraceFilter struct {
	// Action matches traces whose intent ran this action.
	Action string

	// TerminatedBy matches the trace's termination reason.
	TerminatedBy string

	// Status matches the status of the snapshot the trace produced.
	Status string

	// SinceVersion keeps only traces with result_version >= this value.
	SinceVersion int64
}

// QueryTraces lists a run's traces in version order, optionally
// filtered. The filter compiles to a WHERE clause with bound
// parameters; no user input is interpolated into the SQL text.
func (s *Store) QueryTraces(ctx context.Context, runID string, filter TraceFilter) ([]TraceRecord, error) {
	var (
		conds = []string{"t.run_id = ?"}
		args  = []any{runID}
	)
	if filter.Action != "" {
		// The intent is stored as canonical JSON with sorted keys, so
		// the type field is matchable with a deterministic fragment.
		conds = append(conds, "json_extract(t.intent, '$.type') = ?")
		args = append(args, filter.Action)
	}
	if filter.TerminatedBy != "" {
		conds = append(conds, "t.terminated_by = ?")
		args = append(args, filter.TerminatedBy)
	}
	if filter.Status != "" {
		conds = append(conds, "s.status = ?")
		args = append(args, filter.Status)
	}
	if filter.SinceVersion > 0 {
		conds = append(conds, "t.result_version >= ?")
		args = append(args, filter.SinceVersion)
	}

	query := fmt.Sprintf(`
		SELECT t.intent, t.base_version, t.result_version, t.duration_ms, t.terminated_by
		FROM traces t
		JOIN snapshots s ON s.run_id = t.run_id AND s.version = t.result_version
		WHERE %s
		ORDER BY t.result_version
	`, strings.Join(conds, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	var traces []TraceRecord
	for rows.Next() {
		var trace TraceRecord
		var intentJSON string
		if err := rows.Scan(&intentJSON, &trace.BaseVersion, &trace.ResultVersion, &trace.DurationMs, &trace.TerminatedBy); err != nil {
			return nil, fmt.Errorf("query traces: scan: %w", err)
		}
		if err := unmarshalIntent(intentJSON, &trace.Intent); err != nil {
			return nil, fmt.Errorf("query traces: %w", err)
		}
		traces = append(traces, trace)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	return traces, nil
}
