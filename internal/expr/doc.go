// Package expr evaluates the pure expression sublanguage.
//
// Evaluation is a recursive descent keyed on node kind against a
// read-only Context of four namespaces (state, computed, input, meta)
// plus the implicit item slot bound by collection operators. It is a
// pure function: same context, same result. A get on a missing path
// yields null rather than erroring, so null-propagation via
// coalesce/isNull is the idiomatic guard; malformed input (wrong arity,
// non-numeric operand, and so on) yields an EvalError that the flow
// interpreter converts into a fail outcome.
package expr
