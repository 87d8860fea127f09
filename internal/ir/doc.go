// Package ir provides the compiled intermediate representation for strata
// domain schemas and the runtime records the engine operates on.
//
// This package contains type definitions, path utilities, and canonical
// serialization only. All other internal packages import ir; ir imports
// nothing internal. This keeps IR the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - Runtime values are JSON-shaped: nil, bool, float64, string,
//     []any, map[string]any. Decoders normalize to these six shapes.
//   - ExprNode and FlowNode are sealed sum types; every traversal
//     dispatches over the full set and treats an unknown node as an error.
//   - Snapshots are immutable value objects; mutation always goes through
//     Clone and produces a new Snapshot.
//   - Content identity uses canonical JSON (UTF-16 key order, NFC
//     normalized strings, no HTML escaping) hashed with domain separation.
package ir
