package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/strataengine/strata/internal/ir"
)

// TraceRecord is the stored form of one compute call's trace.
type TraceRecord struct {
	Intent        ir.Intent
	BaseVersion   int64
	ResultVersion int64
	DurationMs    float64
	TerminatedBy  string
}

// WriteSchema stores a schema document keyed by its content hash.
// Idempotent: a hash that already exists is silently ignored, which is
// correct because the hash is derived from the document.
func (s *Store) WriteSchema(ctx context.Context, schema *ir.DomainSchema) error {
	doc := schema.Raw
	if doc == nil {
		return fmt.Errorf("write schema %s: no source document", schema.Hash)
	}
	document, err := ir.MarshalCanonical(doc)
	if err != nil {
		return fmt.Errorf("write schema %s: %w", schema.Hash, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schemas (hash, id, version, document)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, schema.Hash, schema.ID, schema.Version, string(document))
	if err != nil {
		return fmt.Errorf("write schema %s: %w", schema.Hash, err)
	}
	return nil
}

// CreateRun registers a new lineage under a stored schema and writes
// its version-0 snapshot atomically, so a run never exists without a
// starting point.
func (s *Store) CreateRun(ctx context.Context, runID, schemaHash string, createdAt time.Time) (*ir.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create run %s: begin tx: %w", runID, err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, schema_hash, created_at)
		VALUES (?, ?, ?)
	`, runID, schemaHash, createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("create run %s: %w", runID, err)
	}

	snap := ir.NewSnapshot(schemaHash)
	if err := writeSnapshotTx(ctx, tx, runID, snap); err != nil {
		return nil, fmt.Errorf("create run %s: %w", runID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create run %s: commit: %w", runID, err)
	}
	return snap, nil
}

// AppendResult writes a compute call's snapshot and trace in a single
// transaction, so a crash never leaves a snapshot without its trace.
// Idempotent on (run, version): re-appending an already stored version
// is silently ignored.
func (s *Store) AppendResult(ctx context.Context, runID string, snap *ir.Snapshot, trace TraceRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append result: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := writeSnapshotTx(ctx, tx, runID, snap); err != nil {
		return fmt.Errorf("append result: %w", err)
	}

	intentJSON, err := marshalJSON(trace.Intent)
	if err != nil {
		return fmt.Errorf("append result: intent: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO traces
		(run_id, result_version, intent, base_version, duration_ms, terminated_by)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, result_version) DO NOTHING
	`,
		runID,
		trace.ResultVersion,
		intentJSON,
		trace.BaseVersion,
		trace.DurationMs,
		trace.TerminatedBy,
	)
	if err != nil {
		return fmt.Errorf("append result: write trace: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append result: commit: %w", err)
	}
	return nil
}

func writeSnapshotTx(ctx context.Context, tx *sql.Tx, runID string, snap *ir.Snapshot) error {
	dataJSON, err := marshalData(snap.Data)
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	computedJSON, err := marshalData(snap.Computed)
	if err != nil {
		return fmt.Errorf("computed: %w", err)
	}
	systemJSON, err := marshalJSON(snap.System)
	if err != nil {
		return fmt.Errorf("system: %w", err)
	}
	metaJSON, err := marshalJSON(snap.Meta)
	if err != nil {
		return fmt.Errorf("meta: %w", err)
	}
	stateHash, err := ir.StateHash(snap.Data, snap.Computed)
	if err != nil {
		return fmt.Errorf("state hash: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots
		(run_id, version, status, data, computed, system, meta, state_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, version) DO NOTHING
	`,
		runID,
		snap.Meta.Version,
		string(snap.System.Status),
		dataJSON,
		computedJSON,
		systemJSON,
		metaJSON,
		stateHash,
	)
	if err != nil {
		return fmt.Errorf("write snapshot v%d: %w", snap.Meta.Version, err)
	}
	return nil
}
