package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/strataengine/strata/internal/ir"
)

// ErrNotFound is returned when a schema, run, or snapshot does not
// exist in the store.
var ErrNotFound = errors.New("not found")

// ReadSchema loads a stored schema document by content hash.
func (s *Store) ReadSchema(ctx context.Context, hash string) (*ir.DomainSchema, error) {
	var document string
	err := s.db.QueryRowContext(ctx, `
		SELECT document FROM schemas WHERE hash = ?
	`, hash).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schema %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", hash, err)
	}

	schema, err := ir.DecodeSchema([]byte(document))
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", hash, err)
	}
	return schema, nil
}

// RunInfo describes one stored run.
type RunInfo struct {
	ID          string
	SchemaHash  string
	CreatedAt   string
	HeadVersion int64
}

// ReadRun loads a run's registration and current head version.
func (s *Store) ReadRun(ctx context.Context, runID string) (*RunInfo, error) {
	var info RunInfo
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.schema_hash, r.created_at,
		       (SELECT MAX(version) FROM snapshots WHERE run_id = r.id)
		FROM runs r WHERE r.id = ?
	`, runID).Scan(&info.ID, &info.SchemaHash, &info.CreatedAt, &info.HeadVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read run %s: %w", runID, err)
	}
	return &info, nil
}

// ListRuns returns all runs in creation order.
func (s *Store) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.schema_hash, r.created_at,
		       (SELECT MAX(version) FROM snapshots WHERE run_id = r.id)
		FROM runs r ORDER BY r.created_at, r.id
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var info RunInfo
		if err := rows.Scan(&info.ID, &info.SchemaHash, &info.CreatedAt, &info.HeadVersion); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		runs = append(runs, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ReadSnapshot loads one stored snapshot by run and version.
func (s *Store) ReadSnapshot(ctx context.Context, runID string, version int64) (*ir.Snapshot, error) {
	var dataJSON, computedJSON, systemJSON, metaJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT data, computed, system, meta
		FROM snapshots WHERE run_id = ? AND version = ?
	`, runID, version).Scan(&dataJSON, &computedJSON, &systemJSON, &metaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s v%d: %w", runID, version, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s v%d: %w", runID, version, err)
	}
	return decodeSnapshot(dataJSON, computedJSON, systemJSON, metaJSON)
}

// ReadHead loads the highest-versioned snapshot of a run.
func (s *Store) ReadHead(ctx context.Context, runID string) (*ir.Snapshot, error) {
	info, err := s.ReadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.ReadSnapshot(ctx, runID, info.HeadVersion)
}

// ReadTrace loads the trace that produced a given snapshot version.
func (s *Store) ReadTrace(ctx context.Context, runID string, resultVersion int64) (*TraceRecord, error) {
	var trace TraceRecord
	var intentJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT intent, base_version, result_version, duration_ms, terminated_by
		FROM traces WHERE run_id = ? AND result_version = ?
	`, runID, resultVersion).Scan(
		&intentJSON,
		&trace.BaseVersion,
		&trace.ResultVersion,
		&trace.DurationMs,
		&trace.TerminatedBy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trace %s v%d: %w", runID, resultVersion, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read trace %s v%d: %w", runID, resultVersion, err)
	}
	if err := json.Unmarshal([]byte(intentJSON), &trace.Intent); err != nil {
		return nil, fmt.Errorf("read trace %s v%d: intent: %w", runID, resultVersion, err)
	}
	return &trace, nil
}

func decodeSnapshot(dataJSON, computedJSON, systemJSON, metaJSON string) (*ir.Snapshot, error) {
	data, err := unmarshalData(dataJSON)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	computed, err := unmarshalData(computedJSON)
	if err != nil {
		return nil, fmt.Errorf("computed: %w", err)
	}

	snap := &ir.Snapshot{Data: data, Computed: computed}
	if err := json.Unmarshal([]byte(systemJSON), &snap.System); err != nil {
		return nil, fmt.Errorf("system: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &snap.Meta); err != nil {
		return nil, fmt.Errorf("meta: %w", err)
	}
	return snap, nil
}
