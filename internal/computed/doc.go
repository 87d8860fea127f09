// Package computed recomputes derived fields after a data mutation.
//
// The resolver assumes the schema already passed validation, so the
// dependency graph is acyclic and every field's expression is well
// formed. Fields evaluate in topological order of their declared
// dependencies; an absent dependency evaluates through the expression
// evaluator's null-propagation rules rather than failing.
package computed
