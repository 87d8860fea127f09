// Package engine executes actions against snapshots.
//
// Compute is the single entry point: given {schema, snapshot, intent}
// it interprets the action's flow against a working copy of the
// snapshot's data, applying patches as they occur, and returns a result
// envelope with one of four terminal statuses (complete, error,
// pending, halted). The call is pure and synchronous; the engine holds
// no state between calls, and determinism follows from evaluating
// everything against explicit arguments.
//
// The engine assumes the schema already passed validation. Validation
// is a separate, explicit call made once per schema, not per execution.
package engine
