package store

import (
	"context"
	"testing"

	"github.com/strataengine/strata/internal/ir"
)

// appendTrace stores one compute result with full trace control.
func appendTrace(t *testing.T, s *Store, runID string, version int64, action string, status ir.Status, terminatedBy string) {
	t.Helper()
	snap := ir.NewSnapshot("hash")
	snap.Meta.Version = version
	snap.System.Status = status
	snap.Data = map[string]any{"v": float64(version)}

	trace := TraceRecord{
		Intent:        ir.Intent{Type: action},
		BaseVersion:   version - 1,
		ResultVersion: version,
		DurationMs:    1.25,
		TerminatedBy:  terminatedBy,
	}
	if err := s.AppendResult(context.Background(), runID, snap, trace); err != nil {
		t.Fatalf("AppendResult v%d failed: %v", version, err)
	}
}

func setupTraceHistory(t *testing.T, s *Store) string {
	t.Helper()
	runID := setupRun(t, s)
	appendTrace(t, s, runID, 1, "increment", ir.StatusComplete, "end")
	appendTrace(t, s, runID, 2, "notify", ir.StatusPending, "effect")
	appendTrace(t, s, runID, 3, "notify", ir.StatusComplete, "end")
	appendTrace(t, s, runID, 4, "reset", ir.StatusError, "fail")
	return runID
}

func TestQueryTraces_NoFilter(t *testing.T) {
	s := openTestStore(t)
	runID := setupTraceHistory(t, s)

	traces, err := s.QueryTraces(context.Background(), runID, TraceFilter{})
	if err != nil {
		t.Fatalf("QueryTraces() failed: %v", err)
	}
	if len(traces) != 4 {
		t.Fatalf("want 4 traces, got %d", len(traces))
	}
	for i, trace := range traces {
		if trace.ResultVersion != int64(i+1) {
			t.Errorf("traces out of version order: %+v", traces)
			break
		}
	}
}

func TestQueryTraces_ByAction(t *testing.T) {
	s := openTestStore(t)
	runID := setupTraceHistory(t, s)

	traces, err := s.QueryTraces(context.Background(), runID, TraceFilter{Action: "notify"})
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 2 {
		t.Fatalf("want 2 notify traces, got %d", len(traces))
	}
	if traces[0].ResultVersion != 2 || traces[1].ResultVersion != 3 {
		t.Errorf("unexpected versions: %+v", traces)
	}
}

func TestQueryTraces_ByStatus(t *testing.T) {
	s := openTestStore(t)
	runID := setupTraceHistory(t, s)

	traces, err := s.QueryTraces(context.Background(), runID, TraceFilter{Status: "pending"})
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 1 || traces[0].ResultVersion != 2 {
		t.Errorf("unexpected traces: %+v", traces)
	}
}

func TestQueryTraces_ByTerminatedBy(t *testing.T) {
	s := openTestStore(t)
	runID := setupTraceHistory(t, s)

	traces, err := s.QueryTraces(context.Background(), runID, TraceFilter{TerminatedBy: "fail"})
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 1 || traces[0].Intent.Type != "reset" {
		t.Errorf("unexpected traces: %+v", traces)
	}
}

func TestQueryTraces_SinceVersion(t *testing.T) {
	s := openTestStore(t)
	runID := setupTraceHistory(t, s)

	traces, err := s.QueryTraces(context.Background(), runID, TraceFilter{SinceVersion: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 2 || traces[0].ResultVersion != 3 {
		t.Errorf("unexpected traces: %+v", traces)
	}
}

func TestQueryTraces_CombinedFilters(t *testing.T) {
	s := openTestStore(t)
	runID := setupTraceHistory(t, s)

	traces, err := s.QueryTraces(context.Background(), runID, TraceFilter{
		Action:       "notify",
		Status:       "complete",
		TerminatedBy: "end",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 1 || traces[0].ResultVersion != 3 {
		t.Errorf("unexpected traces: %+v", traces)
	}
}

func TestQueryTraces_EmptyResult(t *testing.T) {
	s := openTestStore(t)
	runID := setupRun(t, s)

	traces, err := s.QueryTraces(context.Background(), runID, TraceFilter{Action: "nothing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 0 {
		t.Errorf("want no traces, got %+v", traces)
	}
}
