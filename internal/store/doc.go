// Package store provides durable storage for run lineages.
//
// A run is one snapshot lineage under a single schema: every compute
// call appends the resulting snapshot and its trace, keyed by
// (run, version). The engine itself never touches the store; callers
// (the CLI, the scenario harness) persist results after each call, so
// the execution core stays pure.
//
// Uses SQLite with WAL mode for concurrent read access. Snapshot data
// and computed maps are serialized to canonical JSON, so a stored row
// can be re-hashed and compared against its recorded state hash during
// replay verification.
package store
