// Package validator performs static analysis over a candidate domain
// schema before any execution is attempted.
//
// Validate never panics and never fails fast: every check runs (except
// where one depends on structural well-formedness) and all detected
// errors are merged into a single Result with stable codes, so tooling
// can point at the exact offending path or cycle.
//
// Error codes:
//
//	V-001        unknown path / missing declared dependency
//	V-002        cyclic computed-field dependency graph
//	V-003        forbidden path scope
//	V-004        unknown call target
//	V-005        cyclic action call graph
//	V-008        content hash mismatch
//	SCHEMA_ERROR structural defect
package validator
