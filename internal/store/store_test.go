package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/strataengine/strata/internal/ir"
	"github.com/strataengine/strata/internal/testutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSchema() *ir.DomainSchema {
	return testutil.NewSchema("strata://test/counter", "1.0.0").
		NumberField("count").
		Action("increment", testutil.Set("state.count", testutil.Num(1))).
		Build()
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}
}

func TestWriteSchema_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	schema := testSchema()

	if err := s.WriteSchema(ctx, schema); err != nil {
		t.Fatalf("WriteSchema() failed: %v", err)
	}
	// Same hash again is a no-op, not an error.
	if err := s.WriteSchema(ctx, schema); err != nil {
		t.Fatalf("second WriteSchema() failed: %v", err)
	}

	got, err := s.ReadSchema(ctx, schema.Hash)
	if err != nil {
		t.Fatalf("ReadSchema() failed: %v", err)
	}
	if got.ID != schema.ID || got.Version != schema.Version || got.Hash != schema.Hash {
		t.Errorf("round trip mismatch: got %s %s %s", got.ID, got.Version, got.Hash)
	}
	if got.Action("increment") == nil {
		t.Error("stored schema lost its action")
	}
}

func TestReadSchema_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ReadSchema(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestCreateRun_WritesVersionZero(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	schema := testSchema()
	if err := s.WriteSchema(ctx, schema); err != nil {
		t.Fatal(err)
	}

	createdAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	snap, err := s.CreateRun(ctx, "run-1", schema.Hash, createdAt)
	if err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}
	if snap.Meta.Version != 0 {
		t.Errorf("want version 0, got %d", snap.Meta.Version)
	}

	info, err := s.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadRun() failed: %v", err)
	}
	if info.SchemaHash != schema.Hash || info.HeadVersion != 0 {
		t.Errorf("run info mismatch: %+v", info)
	}

	head, err := s.ReadHead(ctx, "run-1")
	if err != nil {
		t.Fatalf("ReadHead() failed: %v", err)
	}
	if head.Meta.Version != 0 || head.System.Status != ir.StatusIdle {
		t.Errorf("head mismatch: v%d %s", head.Meta.Version, head.System.Status)
	}
}

func TestReadRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.ReadRun(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
	if _, err := s.ReadHead(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	schema := testSchema()
	if err := s.WriteSchema(ctx, schema); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b"} {
		if _, err := s.CreateRun(ctx, id, schema.Hash, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-a" || runs[1].ID != "run-b" {
		t.Errorf("unexpected runs: %+v", runs)
	}
}

// appendVersion stores one synthetic compute result.
func appendVersion(t *testing.T, s *Store, runID string, version int64, action string, status ir.Status, data map[string]any) {
	t.Helper()
	snap := ir.NewSnapshot("hash")
	snap.Meta.Version = version
	snap.System.Status = status
	snap.Data = data

	trace := TraceRecord{
		Intent:        ir.Intent{Type: action},
		BaseVersion:   version - 1,
		ResultVersion: version,
		DurationMs:    0.5,
		TerminatedBy:  "end",
	}
	if err := s.AppendResult(context.Background(), runID, snap, trace); err != nil {
		t.Fatalf("AppendResult v%d failed: %v", version, err)
	}
}

func setupRun(t *testing.T, s *Store) string {
	t.Helper()
	ctx := context.Background()
	schema := testSchema()
	if err := s.WriteSchema(ctx, schema); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateRun(ctx, "run-1", schema.Hash, time.Now().UTC()); err != nil {
		t.Fatal(err)
	}
	return "run-1"
}

func TestAppendResult_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	runID := setupRun(t, s)
	ctx := context.Background()

	appendVersion(t, s, runID, 1, "increment", ir.StatusComplete, map[string]any{"count": 1.0})

	snap, err := s.ReadSnapshot(ctx, runID, 1)
	if err != nil {
		t.Fatalf("ReadSnapshot() failed: %v", err)
	}
	if snap.Data["count"] != 1.0 || snap.System.Status != ir.StatusComplete {
		t.Errorf("snapshot mismatch: %+v", snap)
	}

	trace, err := s.ReadTrace(ctx, runID, 1)
	if err != nil {
		t.Fatalf("ReadTrace() failed: %v", err)
	}
	if trace.Intent.Type != "increment" || trace.BaseVersion != 0 || trace.TerminatedBy != "end" {
		t.Errorf("trace mismatch: %+v", trace)
	}

	head, err := s.ReadHead(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if head.Meta.Version != 1 {
		t.Errorf("want head v1, got v%d", head.Meta.Version)
	}
}

func TestAppendResult_Idempotent(t *testing.T) {
	s := openTestStore(t)
	runID := setupRun(t, s)

	appendVersion(t, s, runID, 1, "increment", ir.StatusComplete, map[string]any{"count": 1.0})
	// A replayed append of the same version is ignored, not an error.
	appendVersion(t, s, runID, 1, "increment", ir.StatusComplete, map[string]any{"count": 999.0})

	snap, err := s.ReadSnapshot(context.Background(), runID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Data["count"] != 1.0 {
		t.Errorf("first write must win, got %v", snap.Data["count"])
	}
}

func TestReadSnapshot_NotFound(t *testing.T) {
	s := openTestStore(t)
	runID := setupRun(t, s)
	if _, err := s.ReadSnapshot(context.Background(), runID, 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}
