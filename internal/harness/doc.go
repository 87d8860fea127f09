// Package harness runs YAML-defined conformance scenarios.
//
// A scenario names a schema document, a sequence of intents with
// expected outcomes, and optional effect-resolution patches applied
// between calls. The harness validates the schema, executes the steps
// through the engine with a fixed clock, checks each step's
// expectations, and produces a deterministic trace suitable for golden
// comparison.
package harness
